// Package errs defines the error taxonomy shared across the public operation
// surface. Every failure crossing a service boundary carries a stable Kind
// string so callers (and the HTTP layer) can branch deterministically.
package errs

import (
	"errors"
	"fmt"
)

type Kind string

const (
	Validation        Kind = "ValidationError"
	InvalidTransition Kind = "InvalidTransitionError"
	AlreadyBooked     Kind = "AlreadyBookedError"
	InvalidCode       Kind = "InvalidCodeError"
	SelfReferral      Kind = "SelfReferralError"
	DuplicateReferral Kind = "DuplicateReferralError"
	NotFound          Kind = "NotFoundError"
	Dependency        Kind = "DependencyError"
)

type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind to an underlying cause. The cause is kept for
// server-side logging; the HTTP layer only exposes kind and message.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf extracts the kind from err, or "" when err carries none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool { return KindOf(err) == kind }
