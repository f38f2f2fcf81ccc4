package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an application error. Each kind maps onto exactly one
// HTTP status.
type Kind string

const (
	KindValidation   Kind = "validation"
	KindAvailability Kind = "availability"
	KindConflict     Kind = "conflict"
	KindNotFound     Kind = "not_found"
	KindDuplicate    Kind = "duplicate"
	KindInternal     Kind = "internal"
)

// Error is the error type returned across service boundaries. Message is
// safe to show to API callers; Err carries the underlying cause and is only
// ever logged.
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

func (e *Error) Unwrap() error {
	return e.Err
}

// Validation reports a missing or malformed field, or a policy violation.
func Validation(format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// Availability reports a slot outside the professional's resolved availability.
func Availability(format string, args ...interface{}) *Error {
	return &Error{Kind: KindAvailability, Message: fmt.Sprintf(format, args...)}
}

// Conflict reports a double-booking or a write that lost a race.
func Conflict(format string, args ...interface{}) *Error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...interface{}) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// Duplicate reports a unique-constraint violation.
func Duplicate(format string, args ...interface{}) *Error {
	return &Error{Kind: KindDuplicate, Message: fmt.Sprintf(format, args...)}
}

// Internal wraps an unexpected failure. The message is replaced by a generic
// one before it reaches the caller.
func Internal(message string, err error) *Error {
	return &Error{Kind: KindInternal, Message: message, Err: err}
}

// KindOf returns the kind of err, or KindInternal when err is not an *Error.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// HTTPStatus maps a kind onto its response status.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindValidation, KindAvailability:
		return http.StatusBadRequest
	case KindConflict, KindDuplicate:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
