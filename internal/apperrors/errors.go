package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error into the closed set used across the invite, OTP,
// and credential services. Handlers map kinds to HTTP statuses; services
// never hand raw storage errors to a caller.
type Kind string

const (
	KindValidation   Kind = "validation"
	KindUnauthorized Kind = "unauthorized"
	KindForbidden    Kind = "forbidden"
	KindConflict     Kind = "conflict"
	KindExpired      Kind = "expired"
	KindTransient    Kind = "transient"
	KindInternal     Kind = "internal"
)

// Error is the tagged error type shared by all services. Message is safe to
// show to a caller; Err carries the underlying cause for server-side logs.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a tagged error with a caller-safe message.
func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Wrap tags an underlying error. The cause is logged, never surfaced.
func Wrap(err error, kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message, Err: err}
}

// Internal wraps an unexpected error with a generic caller-safe message.
func Internal(err error) *Error {
	return Wrap(err, KindInternal, "internal_error", "Something went wrong")
}

// KindOf extracts the kind from an error chain, defaulting to internal.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// CodeOf extracts the stable error code from an error chain.
func CodeOf(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return "internal_error"
}

// MessageOf extracts the caller-safe message from an error chain.
func MessageOf(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "Something went wrong"
}

// HTTPStatus maps an error kind to its HTTP status code.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindConflict:
		return http.StatusConflict
	case KindExpired:
		// Expiry is collapsed with not-found on purpose; a 410 would confirm
		// that a token once existed.
		return http.StatusNotFound
	case KindTransient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
