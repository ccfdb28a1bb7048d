// Package domainerrors carries classified errors across component boundaries.
//
// Services return *Error values with a Code; transports translate the code into
// a status and decide how much of the message is safe to show the caller.
// Infrastructure facts (not found, conflict) live in pkg/platform/sentinel and
// are translated into codes by the service that observes them.
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies an error for the transport layer.
type Code string

const (
	CodeValidation         Code = "validation_error"
	CodeBadRequest         Code = "bad_request"
	CodeInvalidInput       Code = "invalid_input"
	CodeInvalidRequest     Code = "invalid_request"
	CodeConflict           Code = "conflict"
	CodeNotFound           Code = "not_found"
	CodeUnavailable        Code = "unavailable"
	CodeTimeout            Code = "timeout"
	CodeInvariantViolation Code = "invariant_violation"
	CodeInternal           Code = "internal_error"
)

// Error is a coded domain error. Message is written for the caller; the
// wrapped cause is for logs only.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New creates a coded error without a cause.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and caller-facing message to an underlying cause.
func Wrap(err error, code Code, message string) error {
	return &Error{Code: code, Message: message, Err: err}
}

// Is reports whether err is a domain error. It mirrors errors.As for callers
// that only need the typed value.
func Is(err error) (*Error, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// HasCode reports whether the outermost domain error in err's chain has code.
func HasCode(err error, code Code) bool {
	de, ok := Is(err)
	return ok && de.Code == code
}

// CodeOf returns the code of err, or CodeInternal for unclassified errors.
func CodeOf(err error) Code {
	if de, ok := Is(err); ok {
		return de.Code
	}
	return CodeInternal
}

// MessageOf returns the caller-facing message of a domain error, or fallback.
func MessageOf(err error, fallback string) string {
	if de, ok := Is(err); ok && de.Message != "" {
		return de.Message
	}
	return fallback
}

// IsClientError reports whether code describes a problem with the caller's input.
func IsClientError(code Code) bool {
	switch code {
	case CodeValidation, CodeBadRequest, CodeInvalidInput, CodeInvalidRequest, CodeConflict, CodeNotFound:
		return true
	default:
		return false
	}
}

// HTTPStatus maps a code onto a response status. Conflicts map to 400.
func HTTPStatus(code Code) int {
	if code == CodeNotFound {
		return http.StatusNotFound
	}
	if IsClientError(code) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
