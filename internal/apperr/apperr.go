// Package apperr defines the application error taxonomy. Every operation
// failure maps to exactly one code, and the HTTP layer derives its status
// from the code alone.
package apperr

import (
	"errors"
	"net/http"
)

// Code classifies an operation failure
type Code string

const (
	CodeUnauthenticated Code = "UNAUTHENTICATED"
	CodeForbidden       Code = "FORBIDDEN"
	CodeTenantInactive  Code = "TENANT_INACTIVE"
	CodeNotFound        Code = "NOT_FOUND"
	CodeConflict        Code = "CONFLICT"
	CodeValidation      Code = "VALIDATION"
	CodeUpstream        Code = "UPSTREAM"
	CodeInternal        Code = "INTERNAL"
)

// HTTPStatus maps the code to its response status
func (c Code) HTTPStatus() int {
	switch c {
	case CodeUnauthenticated:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeTenantInactive, CodeValidation:
		return http.StatusBadRequest
	case CodeUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Error is a coded application error, optionally wrapping a cause
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// Unwrap exposes the cause for errors.Is / errors.As
func (e *Error) Unwrap() error {
	return e.Err
}

// Unauthenticated rejects a missing or invalid credential
func Unauthenticated(msg string) *Error {
	return &Error{Code: CodeUnauthenticated, Message: msg}
}

// Forbidden rejects an authenticated caller lacking the required role or
// company membership
func Forbidden(msg string) *Error {
	return &Error{Code: CodeForbidden, Message: msg}
}

// TenantInactive rejects an operation on a suspended company
func TenantInactive(msg string) *Error {
	return &Error{Code: CodeTenantInactive, Message: msg}
}

// NotFound reports a missing record. Cross-company lookups also map here so
// record existence never leaks across tenants.
func NotFound(msg string) *Error {
	return &Error{Code: CodeNotFound, Message: msg}
}

// Conflict reports a uniqueness violation
func Conflict(msg string) *Error {
	return &Error{Code: CodeConflict, Message: msg}
}

// Validation rejects a malformed or state-incompatible request
func Validation(msg string) *Error {
	return &Error{Code: CodeValidation, Message: msg}
}

// Upstream reports a failure in an external collaborator
func Upstream(msg string, err error) *Error {
	return &Error{Code: CodeUpstream, Message: msg, Err: err}
}

// Internal wraps an unexpected failure
func Internal(err error) *Error {
	return &Error{Code: CodeInternal, Message: "internal error", Err: err}
}

// From coerces any error into an *Error, downgrading unknowns to internal
func From(err error) *Error {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal(err)
}
