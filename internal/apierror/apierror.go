// Package apierror centralizes the error taxonomy of the collection and
// decision pipeline (transient network, upstream-session, upstream-shape
// drift, input validation, persistence conflict, persistence transient,
// unknown) into a single type callers can map to an HTTP status without
// re-deriving the mapping at every handler.
package apierror

import "net/http"

// Code identifies the category of error, independent of the status code it
// currently maps to.
type Code string

const (
	CodeValidation  Code = "validation_error"
	CodeConflict    Code = "conflict"
	CodeNotFound    Code = "not_found"
	CodeUnauthorized Code = "unauthorized"
	CodeUpstream    Code = "upstream_error"
	CodeDatabase    Code = "database_error"
	CodeInternal    Code = "internal_error"
)

// statusByCode mirrors §7's policy table.
var statusByCode = map[Code]int{
	CodeValidation:   http.StatusBadRequest,
	CodeConflict:     http.StatusConflict,
	CodeNotFound:     http.StatusNotFound,
	CodeUnauthorized: http.StatusUnauthorized,
	CodeUpstream:     http.StatusBadGateway,
	CodeDatabase:     http.StatusInternalServerError,
	CodeInternal:     http.StatusInternalServerError,
}

// Error is a structured API error carrying both a machine-readable code and
// a human message, plus optional details (e.g. validation field errors).
type Error struct {
	Code    Code
	Message string
	Details any
}

func (e *Error) Error() string { return e.Message }

// Status returns the HTTP status code this error's Code maps to.
func (e *Error) Status() int {
	if s, ok := statusByCode[e.Code]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// New constructs an Error.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Validation constructs a validation error with field-level details.
func Validation(message string, details any) *Error {
	return &Error{Code: CodeValidation, Message: message, Details: details}
}

// Conflict constructs a 409-class error, echoing the conflicting key in details.
func Conflict(message string, details any) *Error {
	return &Error{Code: CodeConflict, Message: message, Details: details}
}
