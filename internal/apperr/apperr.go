// Package apperr is the error taxonomy shared by the mutation engine and
// the HTTP layer. Stores return kinded errors; handlers translate them to
// status codes in one place instead of sniffing strings.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	KindUnknown Kind = iota
	// KindValidation: missing or malformed required fields.
	KindValidation
	// KindUnauthorized: missing or bad credential on an HTTP path.
	KindUnauthorized
	// KindForbidden: valid credential, insufficient role.
	KindForbidden
	// KindNotFound: entity absent, or present but owned by another
	// tenant. The two cases are deliberately indistinguishable to the
	// caller so cross-tenant existence never leaks.
	KindNotFound
	// KindConflict: unique-constraint violation (duplicate slug, email,
	// team name).
	KindConflict
	// KindStorage: transaction or connection failure. The transaction
	// has been rolled back in full; retryable.
	KindStorage
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

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap attaches a kind and message while preserving the chain for
// errors.Is/As.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func Validation(message string) *Error   { return New(KindValidation, message) }
func Unauthorized(message string) *Error { return New(KindUnauthorized, message) }
func Forbidden(message string) *Error    { return New(KindForbidden, message) }
func NotFound(message string) *Error     { return New(KindNotFound, message) }
func Conflict(message string) *Error     { return New(KindConflict, message) }

// Storage wraps a database failure. Always means full rollback, never a
// partial commit.
func Storage(message string, err error) *Error {
	return Wrap(KindStorage, message, err)
}

// KindOf extracts the kind from anywhere in the chain. Unwrapped errors
// report KindUnknown and are treated as internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// HTTPStatus maps an error to the status code the request boundary
// should answer with.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Public returns the message safe to show the caller. Storage and
// unknown failures get a generic message; their detail goes to the log,
// not the response.
func Public(err error) string {
	switch KindOf(err) {
	case KindStorage, KindUnknown:
		return "internal server error"
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal server error"
}
