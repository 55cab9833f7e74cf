// Package errs defines the error taxonomy shared by the task service, the
// HTTP layer and the offline client.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies an error for propagation and presentation.
type Kind string

const (
	Validation Kind = "validation"
	Permission Kind = "permission"
	State      Kind = "state"
	Capacity   Kind = "capacity"
	Duplicate  Kind = "duplicate"
	NotFound   Kind = "not_found"
	Network    Kind = "network"
	Storage    Kind = "storage"
	Internal   Kind = "internal"
)

// Error carries a Kind and a message that is safe to show to the user.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is makes errors.Is(err, errs.New(kind, "")) match on kind alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Kind == e.Kind
}

// New builds an error of the given kind.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Newf builds an error of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to an underlying error.
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// Sentinels for errors.Is checks.
var (
	ErrValidation = &Error{Kind: Validation}
	ErrPermission = &Error{Kind: Permission}
	ErrState      = &Error{Kind: State}
	ErrCapacity   = &Error{Kind: Capacity}
	ErrDuplicate  = &Error{Kind: Duplicate}
	ErrNotFound   = &Error{Kind: NotFound}
	ErrNetwork    = &Error{Kind: Network}
	ErrStorage    = &Error{Kind: Storage}
)

// KindOf returns the kind of err, or Internal when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Message returns the user-facing message of err.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal error"
}

// Retryable reports whether err is a transient failure worth retrying.
func Retryable(err error) bool {
	return KindOf(err) == Network
}
