// Package apperr defines the error taxonomy visible at the public boundary
// (HTTP surface, CLI). Business-rule violations inside C2/C3/C4/C8 are
// constructed with New; Store faults are wrapped as Internal by callers.
package apperr

import (
	"errors"
	"fmt"
)

// Code is one of the fixed kinds spec.md §7 names.
type Code string

const (
	NotFound      Code = "NOT_FOUND"
	AlreadyExists Code = "ALREADY_EXISTS"
	InvalidState  Code = "INVALID_STATE"
	BadRequest    Code = "BAD_REQUEST"
	Unauthorized  Code = "UNAUTHORIZED"
	Forbidden     Code = "FORBIDDEN"
	Internal      Code = "INTERNAL"
)

// Error pairs a taxonomy code with a human-readable message and an
// optional wrapped cause.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds a taxonomy error with no wrapped cause.
func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds a taxonomy error around an underlying cause.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// CodeOf extracts the taxonomy code from err, defaulting to Internal for
// anything that isn't an *Error (e.g. a raw Store fault).
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return Internal
}

func NotFoundf(format string, args ...any) *Error      { return New(NotFound, format, args...) }
func AlreadyExistsf(format string, args ...any) *Error { return New(AlreadyExists, format, args...) }
func InvalidStatef(format string, args ...any) *Error  { return New(InvalidState, format, args...) }
func BadRequestf(format string, args ...any) *Error    { return New(BadRequest, format, args...) }
