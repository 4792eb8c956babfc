package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a record does not exist for the calling
	// owner. Records of other owners are indistinguishable from absent ones.
	ErrNotFound = errors.New("not found")
	// ErrUnauthenticated is returned when an operation runs without a session identity.
	ErrUnauthenticated = errors.New("authentication required")
)

// AuthError reports rejected credentials or a failed identity gateway call.
type AuthError struct {
	Reason string
	Err    error
}

func (e *AuthError) Error() string {
	if e.Reason != "" {
		return e.Reason
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "authentication failed"
}

func (e *AuthError) Unwrap() error { return e.Err }

// ValidationError reports a missing or invalid input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

// StoreError wraps a persistence failure with the operation that caused it.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// Kind classifies errors for presentation.
type Kind int

const (
	KindNone Kind = iota
	KindUnauthenticated
	KindAuth
	KindValidation
	KindNotFound
	KindStore
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindUnauthenticated:
		return "unauthenticated"
	case KindAuth:
		return "auth"
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	default:
		return "store"
	}
}

// KindOf returns the kind of err. Unclassified errors are treated as store failures.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	var authErr *AuthError
	var validationErr *ValidationError
	switch {
	case errors.Is(err, ErrUnauthenticated):
		return KindUnauthenticated
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.As(err, &authErr):
		return KindAuth
	case errors.As(err, &validationErr):
		return KindValidation
	default:
		return KindStore
	}
}
