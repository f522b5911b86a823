// Package errors provides standardized domain errors with codes for the Leafread server.
//
// Usage:
//
//	// In services - return typed errors
//	if !valid {
//	    return errors.Validation("imported document is not a book")
//	}
//
//	// In handlers - check with errors.Is
//	if errors.Is(err, errors.ErrNotFound) {
//	    response.NotFound(w, err.Error(), logger)
//	    return
//	}
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Re-export standard library functions for convenience.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	Join   = errors.Join
	New    = errors.New
)

// Code represents a machine-readable error code.
type Code string

// Error codes used throughout the application.
const (
	// CodeStorageUnavailable means the store failed to open. Fatal to all
	// data operations; the server degrades to a blocked state.
	CodeStorageUnavailable Code = "STORAGE_UNAVAILABLE"
	// CodeStorageUpgradeBlocked means another process holds the store open
	// at an older schema version. Transient and user-actionable.
	CodeStorageUpgradeBlocked Code = "STORAGE_UPGRADE_BLOCKED"
	// CodePersistence means a specific read or write failed. Recoverable;
	// the caller retries or reports.
	CodePersistence Code = "PERSISTENCE"
	// CodeContentExtraction means the external image-to-text call or its
	// response was unusable. Recoverable; the user may retry the upload.
	CodeContentExtraction Code = "CONTENT_EXTRACTION"
	// CodeValidation means a malformed input document.
	CodeValidation Code = "VALIDATION"
	CodeNotFound   Code = "NOT_FOUND"
	CodeInternal   Code = "INTERNAL"
)

// HTTPStatus returns the appropriate HTTP status code for an error code.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeStorageUnavailable, CodeStorageUpgradeBlocked:
		return http.StatusServiceUnavailable
	case CodeContentExtraction:
		return http.StatusBadGateway
	case CodeValidation:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Error is a domain error with a code, message, and optional details.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
	cause   error  // unexported, for wrapping
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is reports whether target matches this error.
// Matches if target is an *Error with the same Code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// HTTPStatus returns the HTTP status code for this error.
func (e *Error) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// WithDetails returns a new error with additional details.
func (e *Error) WithDetails(details any) *Error {
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
		cause:   e.cause,
	}
}

// WithCause wraps an underlying error.
func (e *Error) WithCause(err error) *Error {
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		cause:   err,
	}
}

// Sentinel errors for use with errors.Is().
var (
	ErrStorageUnavailable = &Error{Code: CodeStorageUnavailable, Message: "storage unavailable"}
	ErrUpgradeBlocked     = &Error{Code: CodeStorageUpgradeBlocked, Message: "storage upgrade blocked by another session"}
	ErrPersistence        = &Error{Code: CodePersistence, Message: "persistence failure"}
	ErrExtractionFailed   = &Error{Code: CodeContentExtraction, Message: "content extraction failed"}
	ErrValidation         = &Error{Code: CodeValidation, Message: "validation error"}
	ErrNotFound           = &Error{Code: CodeNotFound, Message: "not found"}
	ErrInternal           = &Error{Code: CodeInternal, Message: "internal error"}
)

// Constructor functions for creating errors with custom messages.

// StorageUnavailable creates a storage unavailable error wrapping the open failure.
func StorageUnavailable(msg string, cause error) *Error {
	return &Error{Code: CodeStorageUnavailable, Message: msg, cause: cause}
}

// UpgradeBlocked creates a storage upgrade blocked error.
func UpgradeBlocked(msg string, cause error) *Error {
	return &Error{Code: CodeStorageUpgradeBlocked, Message: msg, cause: cause}
}

// Persistence creates a persistence error wrapping a failed store operation.
func Persistence(msg string, cause error) *Error {
	return &Error{Code: CodePersistence, Message: msg, cause: cause}
}

// Persistencef creates a persistence error with formatted message.
func Persistencef(cause error, format string, args ...any) *Error {
	return &Error{Code: CodePersistence, Message: fmt.Sprintf(format, args...), cause: cause}
}

// ExtractionFailed creates a content extraction error.
func ExtractionFailed(msg string, cause error) *Error {
	return &Error{Code: CodeContentExtraction, Message: msg, cause: cause}
}

// Validation creates a validation error.
func Validation(msg string) *Error {
	return &Error{Code: CodeValidation, Message: msg}
}

// Validationf creates a validation error with formatted message.
func Validationf(format string, args ...any) *Error {
	return &Error{Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

// ValidationWithDetails creates a validation error with details.
func ValidationWithDetails(msg string, details any) *Error {
	return &Error{Code: CodeValidation, Message: msg, Details: details}
}

// NotFound creates a not found error.
func NotFound(msg string) *Error {
	return &Error{Code: CodeNotFound, Message: msg}
}

// NotFoundf creates a not found error with formatted message.
func NotFoundf(format string, args ...any) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf(format, args...)}
}

// Internal creates an internal error.
func Internal(msg string) *Error {
	return &Error{Code: CodeInternal, Message: msg}
}

// Wrap wraps an error with a code and message.
func Wrap(err error, code Code, msg string) *Error {
	return &Error{Code: code, Message: msg, cause: err}
}

// Wrapf wraps an error with a code and formatted message.
func Wrapf(err error, code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), cause: err}
}
