// Package errdefs defines the error taxonomy shared across the service.
// Every error that crosses a package boundary carries a Kind so the API
// layer can map it to a transport status without inspecting messages.
package errdefs

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies an error for propagation and status mapping.
type Kind int

const (
	// KindInternal is the zero-value fallback for unexpected failures.
	KindInternal Kind = iota
	// KindInvalidArgument marks malformed or out-of-range caller input.
	KindInvalidArgument
	// KindNotFound marks lookups of unknown document ids.
	KindNotFound
	// KindUnavailable marks dependencies unreachable after retries.
	KindUnavailable
	// KindDeadlineExceeded marks request-level or inner-call timeouts.
	KindDeadlineExceeded
)

func (k Kind) String() string {
	switch k {
	case KindInvalidArgument:
		return "invalid_argument"
	case KindNotFound:
		return "not_found"
	case KindUnavailable:
		return "unavailable"
	case KindDeadlineExceeded:
		return "deadline_exceeded"
	default:
		return "internal"
	}
}

// Error wraps an underlying error with its kind and the operation that
// produced it.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a classified error from an operation and cause.
func New(kind Kind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Newf creates a classified error from a format string.
func Newf(kind Kind, op, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf extracts the kind from an error chain. Context cancellation
// and deadline errors classify as DeadlineExceeded; anything untagged
// is Internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return KindDeadlineExceeded
	}
	return KindInternal
}

// IsKind reports whether the error chain carries the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
