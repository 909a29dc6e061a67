// Package coordinator runs passphrase operations against a single wallet.
//
// Encrypt and CheckPassphrase each admit at most one task at a time. A call
// made while a task of the same kind is running is ignored and returns
// ErrAlreadyInProgress; calls after Close return ErrClosed. Admitted tasks
// run on their own goroutine; progress and outcome are published to a state
// slot as Loading followed by exactly one Success or Error.
package coordinator

import (
	"bytes"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/AlexZinkM/wallet-crypter/internal/crypto"
	"github.com/AlexZinkM/wallet-crypter/internal/logging"
	"github.com/AlexZinkM/wallet-crypter/internal/model"
	"github.com/AlexZinkM/wallet-crypter/internal/observe"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrAlreadyInProgress is returned when a task of the same kind has not settled yet.
// Nothing is published for a rejected call.
var ErrAlreadyInProgress = errors.New("operation already in progress")

// ErrClosed is returned for calls made after Close
var ErrClosed = errors.New("coordinator is closed")

// Persister flushes the wallet to durable storage after it was encrypted
type Persister interface {
	FlushAndFinalize(w *model.Wallet) error
}

// State is the observable outcome of wallet operations
type State = observe.Slot[model.Resource[*model.Wallet]]

// Kind names an operation
type Kind string

const (
	KindEncrypt         Kind = "encrypt"
	KindCheckPassphrase Kind = "check_passphrase"
)

type task struct {
	id         uuid.UUID
	kind       Kind
	workFactor int
	admitted   time.Time
}

// Option configures a Coordinator
type Option func(*Coordinator)

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(c *Coordinator) {
		c.log = l
	}
}

// WithState publishes into an existing slot instead of a private one.
// The caller keeps ownership and must close it.
func WithState(s *State) Option {
	return func(c *Coordinator) {
		c.state = s
	}
}

// Coordinator owns the wallet for the length of a wallet session
type Coordinator struct {
	deriver   crypto.KeyDeriver
	crypter   crypto.WalletCrypter
	persister Persister
	log       *zap.Logger

	state     *State
	ownsState bool

	// walletMu serializes every read and write of the wallet's encryption state
	walletMu sync.Mutex
	wallet   *model.Wallet
	snapshot atomic.Pointer[model.Wallet]

	// admitMu pairs each slot change with its publish so the state slot
	// never sees a terminal envelope after the next task's Loading
	admitMu     sync.Mutex
	closed      bool
	encryptSlot atomic.Pointer[task]
	verifySlot  atomic.Pointer[task]

	wg sync.WaitGroup
}

// New creates a Coordinator for wallet
func New(wallet *model.Wallet, deriver crypto.KeyDeriver, crypter crypto.WalletCrypter, persister Persister, opts ...Option) (*Coordinator, error) {
	if wallet == nil {
		return nil, errors.New("wallet is required")
	}
	if deriver == nil || crypter == nil || persister == nil {
		return nil, errors.New("key deriver, wallet crypter and persister are required")
	}

	c := &Coordinator{
		deriver:   deriver,
		crypter:   crypter,
		persister: persister,
		wallet:    wallet,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = logging.OrNop(c.log)
	if c.state == nil {
		c.state = observe.NewSlot[model.Resource[*model.Wallet]](observe.WithLogger(c.log))
		c.ownsState = true
	}
	c.snapshot.Store(wallet.Clone())
	return c, nil
}

// Encrypt encrypts the wallet with a key derived from passphrase using
// workFactor as the scrypt cost. It returns right after admission.
// The passphrase is copied; the caller may clear its buffer afterwards.
func (c *Coordinator) Encrypt(passphrase []byte, workFactor int) error {
	t := &task{id: uuid.New(), kind: KindEncrypt, workFactor: workFactor}
	if err := c.admit(&c.encryptSlot, t); err != nil {
		return err
	}

	pass := bytes.Clone(passphrase)
	go c.run(&c.encryptSlot, t, func() (*model.Wallet, error) {
		defer clear(pass)
		return c.encrypt(t, pass)
	})
	return nil
}

// CheckPassphrase verifies passphrase by decrypting the wallet with a key
// derived from the wallet's recorded scrypt parameters. On success the
// wallet is left unencrypted in memory.
func (c *Coordinator) CheckPassphrase(passphrase []byte) error {
	t := &task{id: uuid.New(), kind: KindCheckPassphrase}
	if err := c.admit(&c.verifySlot, t); err != nil {
		return err
	}

	pass := bytes.Clone(passphrase)
	go c.run(&c.verifySlot, t, func() (*model.Wallet, error) {
		defer clear(pass)
		return c.checkPassphrase(t, pass)
	})
	return nil
}

// State returns the slot receiving operation envelopes
func (c *Coordinator) State() *State {
	return c.state
}

// Subscribe registers fn for operation envelopes, replaying the latest one
func (c *Coordinator) Subscribe(fn observe.Observer[model.Resource[*model.Wallet]]) *observe.Subscription {
	return c.state.Subscribe(fn)
}

// Wallet returns a copy of the wallet as of the last settled operation
func (c *Coordinator) Wallet() *model.Wallet {
	return c.snapshot.Load().Clone()
}

// Busy reports which operation kinds currently hold their slot
func (c *Coordinator) Busy() (encrypting, verifying bool) {
	return c.encryptSlot.Load() != nil, c.verifySlot.Load() != nil
}

// Wait blocks until every admitted task has settled
func (c *Coordinator) Wait() {
	c.wg.Wait()
}

// Close rejects further calls with ErrClosed, waits for admitted tasks and
// closes the state slot if the Coordinator created it
func (c *Coordinator) Close() {
	c.admitMu.Lock()
	c.closed = true
	c.admitMu.Unlock()

	c.Wait()
	if c.ownsState {
		c.state.Close()
	}
}

func (c *Coordinator) admit(slot *atomic.Pointer[task], t *task) error {
	c.admitMu.Lock()
	defer c.admitMu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if !slot.CompareAndSwap(nil, t) {
		c.log.Debug("wallet operation already in progress, request ignored", zap.String("kind", string(t.kind)))
		return ErrAlreadyInProgress
	}
	t.admitted = time.Now()
	c.wg.Add(1)
	c.state.Publish(model.Loading[*model.Wallet]())
	c.log.Debug("wallet operation admitted", zap.String("kind", string(t.kind)), zap.Stringer("task", t.id))
	return nil
}

// run executes an admitted task and settles it. The slot is cleared on
// every path, panics included.
func (c *Coordinator) run(slot *atomic.Pointer[task], t *task, execute func() (*model.Wallet, error)) {
	defer c.wg.Done()

	var result model.Resource[*model.Wallet]
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("wallet operation panicked",
				zap.String("kind", string(t.kind)),
				zap.Stringer("task", t.id),
				zap.Any("panic", r),
			)
			result = model.Error[*model.Wallet](fmt.Sprintf("unexpected failure: %v", r), nil)
		}
		c.settle(slot, t, result)
	}()

	w, err := execute()
	if err != nil {
		c.logFailure(t, err)
		result = model.Error[*model.Wallet](err.Error(), nil)
		return
	}
	result = model.Success(w)
}

func (c *Coordinator) settle(slot *atomic.Pointer[task], t *task, result model.Resource[*model.Wallet]) {
	c.admitMu.Lock()
	defer c.admitMu.Unlock()

	slot.CompareAndSwap(t, nil)
	c.state.Publish(result)
	c.log.Debug("wallet operation settled",
		zap.String("kind", string(t.kind)),
		zap.Stringer("task", t.id),
		zap.Stringer("status", result.Status()),
		zap.Duration("took", time.Since(t.admitted)),
	)
}

func (c *Coordinator) encrypt(t *task, passphrase []byte) (*model.Wallet, error) {
	c.walletMu.Lock()
	defer c.walletMu.Unlock()

	// For the new key, create new scrypt parameters according to the desired work factor.
	params, err := c.deriver.NewParams(t.workFactor)
	if err != nil {
		return nil, err
	}
	key, err := c.deriver.DeriveKey(passphrase, params)
	if err != nil {
		return nil, err
	}
	defer clear(key)

	if err := c.crypter.Encrypt(c.wallet, key, params); err != nil {
		return nil, err
	}
	c.snapshot.Store(c.wallet.Clone())

	// Persistence is best effort once the key material is encrypted
	if err := c.flush(); err != nil {
		c.log.Error("failed to save wallet after encryption", zap.Stringer("task", t.id), zap.Error(err))
	}

	c.log.Info("wallet successfully encrypted, using key derived by new spending password",
		zap.Int("scrypt_iterations", params.N),
		zap.Stringer("task", t.id),
	)
	return c.wallet.Clone(), nil
}

// flush hands the wallet to the persister, turning a panic into an error
func (c *Coordinator) flush() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("persister panicked: %v", r)
		}
	}()
	return c.persister.FlushAndFinalize(c.wallet)
}

func (c *Coordinator) checkPassphrase(t *task, passphrase []byte) (*model.Wallet, error) {
	c.walletMu.Lock()
	defer c.walletMu.Unlock()

	if !c.wallet.IsEncrypted() {
		return nil, &crypto.KeyCrypterError{Message: "wallet is not encrypted"}
	}

	key, err := c.deriver.DeriveKey(passphrase, *c.wallet.Crypter)
	if err != nil {
		return nil, err
	}
	defer clear(key)

	if err := c.crypter.Decrypt(c.wallet, key); err != nil {
		return nil, err
	}
	c.snapshot.Store(c.wallet.Clone())

	c.log.Info("wallet passphrase verified, wallet decrypted", zap.Stringer("task", t.id))
	return c.wallet.Clone(), nil
}

func (c *Coordinator) logFailure(t *task, err error) {
	fields := []zap.Field{
		zap.String("kind", string(t.kind)),
		zap.Stringer("task", t.id),
		zap.Error(err),
	}
	switch {
	case crypto.IsDerivationError(err), crypto.IsKeyCrypterError(err):
		c.log.Warn("wallet operation failed", fields...)
	default:
		c.log.Error("wallet operation failed unexpectedly", fields...)
	}
}
