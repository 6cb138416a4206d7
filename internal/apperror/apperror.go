// Package apperror defines the closed set of error kinds surfaced by the API
// and their single mapping to HTTP status codes.
package apperror

import (
	"errors"
	"net/http"
)

// Kind classifies an application error.
type Kind int

const (
	// KindUpstream covers store or dependency failures. It is the zero value so
	// that unclassified errors are treated as internal.
	KindUpstream Kind = iota
	KindValidation
	KindAuthentication
	KindAuthorization
	KindNotFound
	KindConflict
)

// String returns the kind name used in logs.
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthentication:
		return "authentication"
	case KindAuthorization:
		return "authorization"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	default:
		return "upstream"
	}
}

// HTTPStatus maps a kind to its transport status code.
func HTTPStatus(k Kind) int {
	switch k {
	case KindValidation, KindConflict:
		return http.StatusBadRequest
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindAuthorization:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Error is an error carrying a Kind and a client-safe message.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports a match when target is an *Error of the same kind with either an
// empty message or the same message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

// New creates an Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates an Error of the given kind that wraps cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

// Validation returns a 400-class error.
func Validation(message string) *Error {
	return New(KindValidation, message)
}

// Authentication returns a 401-class error.
func Authentication(message string) *Error {
	return New(KindAuthentication, message)
}

// Authorization returns a 403-class error.
func Authorization(message string) *Error {
	return New(KindAuthorization, message)
}

// NotFound returns a 404-class error.
func NotFound(message string) *Error {
	return New(KindNotFound, message)
}

// Conflict returns an error for a uniqueness violation.
func Conflict(message string) *Error {
	return New(KindConflict, message)
}

// Upstream wraps a dependency failure. The cause is kept for logs only.
func Upstream(cause error) *Error {
	return Wrap(KindUpstream, "Internal Server Error", cause)
}

// KindOf returns the kind of err, or KindUpstream when err carries none.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindUpstream
}

// PublicMessage returns the message that may be shown to clients.
func PublicMessage(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) && appErr.Kind != KindUpstream {
		return appErr.Message
	}
	return "Internal Server Error"
}
