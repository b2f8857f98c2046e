// Package apperrors holds the error taxonomy shared by the case lifecycle and the
// HTTP handlers. Every AppError carries the HTTP status it should be rendered with.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Code identifies a class of failure.
type Code string

// Error codes
const (
	CodeValidation    Code = "VALIDATION_ERROR"
	CodeMalformedID   Code = "MALFORMED_ID"
	CodeNotFound      Code = "NOT_FOUND"
	CodeUnauthorized  Code = "UNAUTHORIZED"
	CodeForbidden     Code = "FORBIDDEN"
	CodeInvalidStatus Code = "INVALID_STATUS"
	CodeConflict      Code = "CONFLICT"
	CodeInternal      Code = "INTERNAL_ERROR"
)

// Sentinels returned by the persistence layer. They are translated into AppErrors by
// the lifecycle manager and the handlers.
var (
	ErrNotFound     = errors.New("document not found")
	ErrDuplicateKey = errors.New("duplicate key")
)

// AppError is a classified error.
type AppError struct {
	Code       Code
	Message    string
	Fields     []string
	HTTPStatus int
	Err        error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches another AppError with the same code, so errors.Is(err, apperrors.Forbidden(""))
// style checks work regardless of message.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

func newError(code Code, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
	}
}

// Validation reports missing or malformed input fields.
func Validation(message string, fields ...string) *AppError {
	e := newError(CodeValidation, message)
	e.Fields = fields
	return e
}

// MissingFields builds the validation error for absent required fields.
func MissingFields(fields ...string) *AppError {
	return Validation("Missing required fields: "+strings.Join(fields, ", "), fields...)
}

// MalformedID reports an identifier that is not a 24 character hex object id.
func MalformedID(resource string) *AppError {
	return newError(CodeMalformedID, fmt.Sprintf("Invalid %s ID format", resource))
}

// NotFound reports a missing resource.
func NotFound(resource string) *AppError {
	return newError(CodeNotFound, fmt.Sprintf("%s not found", resource))
}

// Unauthorized reports a missing or rejected credential.
func Unauthorized(message string) *AppError {
	return newError(CodeUnauthorized, message)
}

// Forbidden reports an authenticated caller without the required rights.
func Forbidden(message string) *AppError {
	return newError(CodeForbidden, message)
}

// InvalidStatus reports a status outside the allowed set.
func InvalidStatus(allowed []string) *AppError {
	return newError(CodeInvalidStatus, "Invalid status. Must be one of: "+strings.Join(allowed, ", "))
}

// Conflict reports a uniqueness violation the caller can fix.
func Conflict(message string) *AppError {
	return newError(CodeConflict, message)
}

// Internal wraps an infrastructure failure.
func Internal(message string, err error) *AppError {
	e := newError(CodeInternal, message)
	e.Err = err
	return e
}

// From classifies any error. Unclassified errors become internal errors carrying the
// given fallback message.
func From(err error, fallback string) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal(fallback, err)
}

// HasCode reports whether err is an AppError with the given code.
func HasCode(err error, code Code) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

func codeToHTTPStatus(code Code) int {
	switch code {
	case CodeValidation, CodeMalformedID, CodeInvalidStatus, CodeConflict:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
