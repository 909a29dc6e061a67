package model

// Status is the stage of an asynchronous wallet operation
type Status int

const (
	StatusLoading Status = iota + 1
	StatusSuccess
	StatusError
)

// String returns the lower-case status name used in API responses
func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Resource carries the progress or outcome of an operation.
// Fields are unexported: use Loading, Success or Error to build one.
// A Resource is never modified after construction.
type Resource[T any] struct {
	status  Status
	data    T
	message string
}

// Loading reports an operation that has been admitted and not settled yet
func Loading[T any]() Resource[T] {
	return Resource[T]{status: StatusLoading}
}

// Success reports a completed operation with its payload
func Success[T any](data T) Resource[T] {
	return Resource[T]{status: StatusSuccess, data: data}
}

// Error reports a failed operation. data is an optional partial payload.
func Error[T any](message string, data T) Resource[T] {
	return Resource[T]{status: StatusError, data: data, message: message}
}

func (r Resource[T]) Status() Status { return r.status }

// Data returns the payload. Only meaningful for StatusSuccess.
func (r Resource[T]) Data() T { return r.data }

// Message returns the failure description. Empty unless StatusError.
func (r Resource[T]) Message() string { return r.message }

// IsZero reports whether r was not built by one of the constructors
func (r Resource[T]) IsZero() bool { return r.status == 0 }

// IsTerminal reports whether r settles an operation (success or error)
func (r Resource[T]) IsTerminal() bool {
	return r.status == StatusSuccess || r.status == StatusError
}
