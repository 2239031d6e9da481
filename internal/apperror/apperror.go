// Package apperror defines the error taxonomy surfaced to HTTP clients.
// Each Error carries a Kind that fixes its status code and error label; the
// message is safe to show to the caller.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for the response envelope.
type Kind int

const (
	KindInternal Kind = iota
	KindBadRequest
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindConflict
	KindTooManyRequests
	KindServiceUnavailable
	// KindFatal is an internal error after which the process must not keep serving.
	KindFatal
)

// Status returns the HTTP status code for k.
func (k Kind) Status() int {
	switch k {
	case KindBadRequest:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindTooManyRequests:
		return http.StatusTooManyRequests
	case KindServiceUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Label returns the error label written in the "error" field of the envelope.
func (k Kind) Label() string {
	switch k {
	case KindBadRequest:
		return "Bad Request"
	case KindUnauthorized:
		return "Unauthorized"
	case KindForbidden:
		return "Forbidden"
	case KindNotFound:
		return "Not Found"
	case KindConflict:
		return "Conflict"
	case KindTooManyRequests:
		return "Too Many Requests"
	case KindServiceUnavailable:
		return "Service Unavailable"
	default:
		return "Internal Server Error"
	}
}

// Error is a classified error. Err, when set, is the underlying cause and is
// never written to the response.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind.Label(), e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind.Label(), e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Status returns the HTTP status code of e.
func (e *Error) Status() int { return e.Kind.Status() }

// New returns an Error of kind with message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap returns an Error of kind with message and cause err.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func BadRequest(message string) *Error   { return New(KindBadRequest, message) }
func Unauthorized(message string) *Error { return New(KindUnauthorized, message) }
func Forbidden(message string) *Error    { return New(KindForbidden, message) }
func NotFound(message string) *Error     { return New(KindNotFound, message) }
func Conflict(message string) *Error     { return New(KindConflict, message) }

// Internal wraps err as an internal error with a generic message.
func Internal(err error) *Error {
	return Wrap(KindInternal, "Internal server error", err)
}

// From returns err as an *Error when it is (or wraps) one.
func From(err error) (*Error, bool) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// KindOf returns the Kind of err, or KindInternal when err is not classified.
func KindOf(err error) Kind {
	if ae, ok := From(err); ok {
		return ae.Kind
	}
	return KindInternal
}

// IsFatal reports whether err is classified as fatal.
func IsFatal(err error) bool {
	return KindOf(err) == KindFatal
}
