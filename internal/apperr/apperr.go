// Package apperr defines the error taxonomy shared by the taskd services and
// the HTTP layer.
//
// Services return *Error values carrying a Kind; the HTTP error handler maps
// the Kind to a status code. Store drivers only ever return the two sentinels
// ErrRecordNotFound and ErrDuplicate (possibly wrapped) or opaque driver
// errors, which services turn into Internal errors.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an application error.
type Kind int

const (
	// KindInternal is a store or unexpected failure (500).
	KindInternal Kind = iota
	// KindValidation is a missing or malformed input (400).
	KindValidation
	// KindUnauthorized is a missing, malformed or expired token (401).
	KindUnauthorized
	// KindNotFound is a missing record, or one owned by another user (404).
	KindNotFound
	// KindConflict is a uniqueness violation such as a duplicate email (409).
	KindConflict
)

// String returns the client-facing name of the kind.
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "Bad Request"
	case KindUnauthorized:
		return "Unauthorized"
	case KindNotFound:
		return "Not Found"
	case KindConflict:
		return "Conflict"
	default:
		return "Internal Server Error"
	}
}

// Status returns the HTTP status code for the kind.
func (k Kind) Status() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Store-level sentinels.
var (
	// ErrRecordNotFound is returned by store drivers when no document has the
	// requested key.
	ErrRecordNotFound = errors.New("record not found")

	// ErrDuplicate is returned by store drivers when a unique key already exists.
	ErrDuplicate = errors.New("duplicate record")
)

// Error is a classified application error.
type Error struct {
	Kind    Kind
	Message string // client-safe message
	Err     error  // underlying cause, never shown to clients in production
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Validation returns a KindValidation error.
func Validation(msg string) *Error {
	return &Error{Kind: KindValidation, Message: msg}
}

// Unauthorized returns a KindUnauthorized error.
func Unauthorized(msg string) *Error {
	return &Error{Kind: KindUnauthorized, Message: msg}
}

// NotFound returns a KindNotFound error.
func NotFound(msg string) *Error {
	return &Error{Kind: KindNotFound, Message: msg}
}

// Conflict returns a KindConflict error.
func Conflict(msg string) *Error {
	return &Error{Kind: KindConflict, Message: msg}
}

// Internal wraps err as a KindInternal error with a generic message.
func Internal(op string, err error) *Error {
	return &Error{Kind: KindInternal, Message: "internal server error", Err: fmt.Errorf("%s: %w", op, err)}
}

// KindOf reports the Kind of err. Errors that are not *Error are internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}
