// Package errs defines the error kinds the HTTP boundary maps to
// status codes.
package errs

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for transport mapping.
type Kind int

const (
	Internal Kind = iota
	InvalidInput
	NotFound
	Unauthenticated
	Unauthorized
	Conflict
	DeadlineExceeded
	Transient
)

// Error is a kinded error.
type Error struct {
	kind Kind
	msg  string
	err  error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.err)
	}
	return e.msg
}

func (e *Error) Unwrap() error { return e.err }

// KindOf returns the kind of an error, Internal for unknown errors.
func KindOf(err error) Kind {
	var kinded *Error
	if errors.As(err, &kinded) {
		return kinded.kind
	}
	return Internal
}

// New creates a kinded error.
func New(kind Kind, msg string) error {
	return &Error{kind: kind, msg: msg}
}

// Newf creates a kinded error with formatting.
func Newf(kind Kind, format string, args ...any) error {
	return &Error{kind: kind, msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind to an underlying error.
func Wrap(kind Kind, msg string, err error) error {
	return &Error{kind: kind, msg: msg, err: err}
}

// HTTPStatus maps an error to its transport status code.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case InvalidInput:
		return http.StatusBadRequest
	case NotFound:
		return http.StatusNotFound
	case Unauthenticated:
		return http.StatusUnauthorized
	case Unauthorized:
		return http.StatusForbidden
	case Conflict:
		return http.StatusConflict
	case Transient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
