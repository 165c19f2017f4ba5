// Package apperrors defines the error taxonomy surfaced by the fridge services.
//
// Every error that leaves a service carries a Kind and a stable code; the
// underlying storage cause is kept for logging but never rendered to callers.
package apperrors

import (
	"errors"
	"fmt"
)

// Kind classifies a failure
type Kind int

const (
	KindUnknown Kind = iota
	KindInvalidArgument
	KindNotFound
	KindConflict
	KindUnauthorized
	KindExhaustedRetries
	KindStorageFailure
)

// Code returns the stable, user visible code of the kind
func (k Kind) Code() string {
	switch k {
	case KindInvalidArgument:
		return "INVALID_ARGUMENT"
	case KindNotFound:
		return "NOT_FOUND"
	case KindConflict:
		return "CONFLICT"
	case KindUnauthorized:
		return "UNAUTHORIZED"
	case KindExhaustedRetries:
		return "EXHAUSTED_RETRIES"
	case KindStorageFailure:
		return "STORAGE_FAILURE"
	default:
		return "INTERNAL_ERROR"
	}
}

func (k Kind) String() string {
	return k.Code()
}

// Error is a classified service error
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind.Code(), e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind.Code(), e.Message)
}

// Unwrap exposes the cause to errors.Is and errors.As
func (e *Error) Unwrap() error {
	return e.Err
}

// Code returns the stable code of the error
func (e *Error) Code() string {
	return e.Kind.Code()
}

func newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// InvalidArgument reports missing or malformed input
func InvalidArgument(format string, args ...interface{}) *Error {
	return newf(KindInvalidArgument, format, args...)
}

// NotFound reports an absent order line, delivery, product or item
func NotFound(format string, args ...interface{}) *Error {
	return newf(KindNotFound, format, args...)
}

// Conflict reports a duplicate or an already applied state change
func Conflict(format string, args ...interface{}) *Error {
	return newf(KindConflict, format, args...)
}

// Unauthorized reports an invalid or spent access code
func Unauthorized(format string, args ...interface{}) *Error {
	return newf(KindUnauthorized, format, args...)
}

// ExhaustedRetries reports a bounded retry loop that found no answer
func ExhaustedRetries(format string, args ...interface{}) *Error {
	return newf(KindExhaustedRetries, format, args...)
}

// Storage wraps a query or transaction failure
func Storage(err error, message string) *Error {
	return &Error{Kind: KindStorageFailure, Message: message, Err: err}
}

// KindOf returns the kind of err, or KindUnknown when err is not classified
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindUnknown
}

// IsKind reports whether err is classified as kind
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// IsNotFound reports whether err is a NotFound error
func IsNotFound(err error) bool { return IsKind(err, KindNotFound) }

// IsConflict reports whether err is a Conflict error
func IsConflict(err error) bool { return IsKind(err, KindConflict) }

// IsInvalidArgument reports whether err is an InvalidArgument error
func IsInvalidArgument(err error) bool { return IsKind(err, KindInvalidArgument) }

// PublicMessage returns the message safe to show to callers
func PublicMessage(err error) string {
	var appErr *Error
	if !errors.As(err, &appErr) {
		return "We ran into an error, try again later."
	}
	if appErr.Kind == KindStorageFailure {
		return appErr.Message + ". Please try again later."
	}
	return appErr.Message
}
