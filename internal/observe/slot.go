// Package observe provides a single-value, multi-subscriber state cell.
//
// Published values reach observers on one dispatch goroutine, in publish
// order. The only exception is the replay of the latest value, which
// Subscribe delivers on the caller's goroutine before it returns; values
// published after that replay follow it in order. Publishing from inside a
// callback queues the value for a later turn of the dispatch loop instead
// of recursing.
package observe

import (
	"sync"
	"sync/atomic"

	"github.com/AlexZinkM/wallet-crypter/internal/logging"

	"go.uber.org/zap"
)

// Observer receives published values
type Observer[T any] func(T)

// Option configures a Slot
type Option func(*options)

type options struct {
	log *zap.Logger
}

// WithLogger sets the logger used for observer panics and late publishes
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		o.log = l
	}
}

// Slot holds the latest published value and broadcasts changes
type Slot[T any] struct {
	mu        sync.Mutex
	latest    T
	hasLatest bool
	seq       uint64
	subs      map[uint64]*subscriber[T]
	nextID    uint64
	queue     []job[T]
	closed    bool

	wake chan struct{}
	done chan struct{}
	log  *zap.Logger
}

type subscriber[T any] struct {
	id     uint64
	fn     Observer[T]
	active atomic.Bool

	// since is the seq of the value replayed on Subscribe
	since uint64
	// mu serializes deliveries to fn
	mu sync.Mutex
}

type job[T any] struct {
	value T
	seq   uint64
}

// NewSlot creates a Slot and starts its dispatch goroutine.
// Call Close to stop it.
func NewSlot[T any](opts ...Option) *Slot[T] {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	s := &Slot[T]{
		subs: make(map[uint64]*subscriber[T]),
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
		log:  logging.OrNop(o.log),
	}
	go s.run()
	return s
}

// Publish replaces the current value and queues it for every subscriber.
// It never waits for observers.
func (s *Slot[T]) Publish(v T) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.log.Debug("publish on closed slot ignored")
		return
	}
	s.seq++
	s.latest = v
	s.hasLatest = true
	s.queue = append(s.queue, job[T]{value: v, seq: s.seq})
	s.mu.Unlock()
	s.signal()
}

// Subscribe registers fn. If a value has already been published, fn
// receives the latest one before Subscribe returns, then every value
// published after it.
func (s *Slot[T]) Subscribe(fn Observer[T]) *Subscription {
	sub := &subscriber[T]{fn: fn}
	sub.active.Store(true)

	s.mu.Lock()
	s.nextID++
	sub.id = s.nextID
	sub.since = s.seq
	v, replay := s.latest, s.hasLatest
	if !s.closed {
		s.subs[sub.id] = sub
	}
	// held until the replay is done so the dispatcher cannot overtake it
	sub.mu.Lock()
	s.mu.Unlock()

	if replay {
		s.deliver(sub, v)
	}
	sub.mu.Unlock()

	return &Subscription{unsubscribe: func() { s.remove(sub) }}
}

// Current returns the latest published value
func (s *Slot[T]) Current() (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest, s.hasLatest
}

// Close delivers everything already queued, then stops the dispatch goroutine.
// Publishes after Close are dropped. Must not be called from an observer.
func (s *Slot[T]) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		<-s.done
		return
	}
	s.closed = true
	s.mu.Unlock()
	s.signal()
	<-s.done
}

func (s *Slot[T]) remove(sub *subscriber[T]) {
	sub.active.Store(false)
	s.mu.Lock()
	delete(s.subs, sub.id)
	s.mu.Unlock()
}

func (s *Slot[T]) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Slot[T]) run() {
	defer close(s.done)

	for {
		s.mu.Lock()
		for len(s.queue) == 0 {
			if s.closed {
				s.mu.Unlock()
				return
			}
			s.mu.Unlock()
			<-s.wake
			s.mu.Lock()
		}

		j := s.queue[0]
		s.queue[0] = job[T]{}
		s.queue = s.queue[1:]

		targets := make([]*subscriber[T], 0, len(s.subs))
		for _, sub := range s.subs {
			// subscribers that joined later already got this value or a newer one
			if sub.since < j.seq {
				targets = append(targets, sub)
			}
		}
		s.mu.Unlock()

		for _, sub := range targets {
			sub.mu.Lock()
			if sub.active.Load() {
				s.deliver(sub, j.value)
			}
			sub.mu.Unlock()
		}
	}
}

// deliver calls the observer; callers hold sub.mu
func (s *Slot[T]) deliver(sub *subscriber[T], v T) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("observer panicked", zap.Uint64("subscriber", sub.id), zap.Any("panic", r))
		}
	}()
	sub.fn(v)
}

// Subscription is returned by Subscribe
type Subscription struct {
	once        sync.Once
	unsubscribe func()
}

// Unsubscribe stops further notifications. Safe to call more than once,
// including from inside the observer.
func (s *Subscription) Unsubscribe() {
	s.once.Do(s.unsubscribe)
}
