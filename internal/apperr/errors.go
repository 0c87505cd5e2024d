package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure so callers can react without string matching.
type Kind string

const (
	KindValidation   Kind = "validation"
	KindPrecondition Kind = "precondition"
	KindConflict     Kind = "conflict"
	KindNotFound     Kind = "not_found"
	KindForbidden    Kind = "forbidden"
	KindInternal     Kind = "internal"
)

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

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Validation reports malformed or missing input, e.g. a reference to a table that does not exist.
func Validation(format string, args ...interface{}) *Error {
	return newError(KindValidation, format, args...)
}

// Precondition reports that a required prior state is absent, e.g. an unconfirmed cash session.
func Precondition(format string, args ...interface{}) *Error {
	return newError(KindPrecondition, format, args...)
}

// Conflict reports that a guarded transition's precondition did not hold at write time.
func Conflict(format string, args ...interface{}) *Error {
	return newError(KindConflict, format, args...)
}

// NotFound reports an absent entity, or one whose status is disjoint from the requested transition.
func NotFound(format string, args ...interface{}) *Error {
	return newError(KindNotFound, format, args...)
}

func Forbidden(format string, args ...interface{}) *Error {
	return newError(KindForbidden, format, args...)
}

func Internal(err error, format string, args ...interface{}) *Error {
	e := newError(KindInternal, format, args...)
	e.Err = err
	return e
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

func Is(err error, kind Kind) bool {
	if err == nil {
		return false
	}
	var appErr *Error
	return errors.As(err, &appErr) && appErr.Kind == kind
}

// Message returns the user-facing message of err, without wrapped storage details.
func Message(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}

func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation, KindPrecondition, KindConflict:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
