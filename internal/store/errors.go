package store

import "fmt"

// Kind classifies a persistence failure. The service layer translates kinds
// into coded domain errors; the store itself knows nothing about HTTP.
type Kind uint8

const (
	KindNotFound Kind = iota + 1
	KindAlreadyExists
	KindInvalidInput
	// KindStatusChanged reports a conditional status update whose expected
	// prior status no longer matched the row.
	KindStatusChanged
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not found"
	case KindAlreadyExists:
		return "already exists"
	case KindInvalidInput:
		return "invalid input"
	case KindStatusChanged:
		return "status changed concurrently"
	default:
		return fmt.Sprintf("store error %d", uint8(k))
	}
}

// Error is a classified persistence error.
type Error struct {
	Kind Kind
	// Detail names the row involved, e.g. "book b-1". Empty for sentinels.
	Detail string
	Err    error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Detail != "" {
		msg = e.Detail + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any store error of the same kind, so errors derived from a
// sentinel still satisfy errors.Is against it.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// About returns a copy of e that names the row involved.
func (e *Error) About(format string, args ...any) *Error {
	return &Error{Kind: e.Kind, Detail: fmt.Sprintf(format, args...), Err: e.Err}
}

// WithCause returns a copy of e wrapping the driver error.
func (e *Error) WithCause(err error) *Error {
	return &Error{Kind: e.Kind, Detail: e.Detail, Err: err}
}

// Sentinels for errors.Is checks.
var (
	ErrNotFound      = &Error{Kind: KindNotFound}
	ErrAlreadyExists = &Error{Kind: KindAlreadyExists}
	ErrInvalidInput  = &Error{Kind: KindInvalidInput}
	ErrStatusChanged = &Error{Kind: KindStatusChanged}
)
