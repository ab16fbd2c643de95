// Package apperr defines the application error kinds surfaced to clients
// and stored in the event log.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an application error.
type Kind int

const (
	// KindServer is anything not covered by a more specific kind.
	KindServer Kind = iota
	// KindBadRequest covers malformed parameters and unknown tool names.
	KindBadRequest
	// KindNotFound covers missing sessions, files, sandboxes, MCP servers.
	KindNotFound
	// KindValidation covers schema validation failures on inputs.
	KindValidation
	// KindTooManyRequests covers throttling from upstream dependencies.
	KindTooManyRequests
)

// Error is an application error with a classification.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// New returns an error of the given kind.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap returns an error of the given kind wrapping err.
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// BadRequest returns a bad-request error.
func BadRequest(format string, args ...any) *Error {
	return New(KindBadRequest, fmt.Sprintf(format, args...))
}

// NotFound returns a not-found error.
func NotFound(format string, args ...any) *Error {
	return New(KindNotFound, fmt.Sprintf(format, args...))
}

// Validation returns a validation error.
func Validation(format string, args ...any) *Error {
	return New(KindValidation, fmt.Sprintf(format, args...))
}

// Server returns a server error.
func Server(format string, args ...any) *Error {
	return New(KindServer, fmt.Sprintf(format, args...))
}

// KindOf returns the kind of err, defaulting to KindServer for errors that
// are not application errors.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindServer
}

// HTTPStatus maps an error to the HTTP status code reported to clients.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindBadRequest:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindValidation:
		return http.StatusUnprocessableEntity
	case KindTooManyRequests:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
