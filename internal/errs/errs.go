// Package errs defines the typed error kinds surfaced by the cascade engine.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies an error so callers can branch on it with errors.Is.
type Kind int

const (
	// KindValidation covers bad input: malformed timestamps, unknown
	// semantics, unsupported cycle lengths, unknown result types.
	KindValidation Kind = iota
	// KindNotFound covers references to absent snapshots, projects, or
	// simulations.
	KindNotFound
	// KindPrecondition covers state invariants the caller violated:
	// exact probability on a cyclic graph, an incomplete simulation
	// batch, aggregated mode with RAW.
	KindPrecondition
	// KindStore covers errors propagated unchanged from the persistence
	// layer.
	KindStore
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindPrecondition:
		return "precondition"
	case KindStore:
		return "store"
	default:
		return "unknown"
	}
}

// Error is a typed, wrappable error carrying a Kind.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error with the same Kind, so
// errors.Is(err, errs.Validation("")) style checks work without comparing
// messages.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Kind == other.Kind
	}
	return false
}

func newf(kind Kind, op string, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// Validation builds a KindValidation error.
func Validation(op, format string, args ...interface{}) *Error {
	return newf(KindValidation, op, format, args...)
}

// NotFound builds a KindNotFound error.
func NotFound(op, format string, args ...interface{}) *Error {
	return newf(KindNotFound, op, format, args...)
}

// Precondition builds a KindPrecondition error.
func Precondition(op, format string, args ...interface{}) *Error {
	return newf(KindPrecondition, op, format, args...)
}

// Store wraps an error from the persistence layer unchanged, tagging it
// KindStore so it can still be classified by callers.
func Store(op string, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: KindStore, Op: op, Err: err}
}

// Is reports whether err is (or wraps) an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
