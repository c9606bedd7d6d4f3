package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a vocap error code.
type ErrorCode string

const (
	ErrInvalidRequest ErrorCode = "INVALID_REQUEST" // 400
	ErrInvalidConfig  ErrorCode = "INVALID_CONFIG"  // 400
	ErrNotFound       ErrorCode = "NOT_FOUND"       // 404
	ErrStorageFailure ErrorCode = "STORAGE_FAILURE" // 503, retryable
	ErrInternal       ErrorCode = "INTERNAL"        // 500
)

// VocapError represents a structured error with code, status, and details.
type VocapError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any

	cause error
}

// Error implements the error interface.
func (e *VocapError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *VocapError) Unwrap() error {
	return e.cause
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *VocapError {
	return &VocapError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewInvalidConfig creates a 400 error for a configuration value that fails validation.
func NewInvalidConfig(key, msg string) *VocapError {
	return &VocapError{
		Code:    ErrInvalidConfig,
		Status:  400,
		Message: fmt.Sprintf("%s: %s", key, msg),
		Details: map[string]any{"key": key},
	}
}

// NewNotFound creates a 404 error for a missing file or directory.
func NewNotFound(identifier string) *VocapError {
	return &VocapError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("not found: %s", identifier),
		Details: map[string]any{"identifier": identifier},
	}
}

// NewStorageFailure creates a 503 error for ledger or note store I/O faults.
// Storage failures are always retryable.
func NewStorageFailure(op string, err error) *VocapError {
	msg := op
	if err != nil {
		msg = fmt.Sprintf("%s: %v", op, err)
	}
	return &VocapError{
		Code:    ErrStorageFailure,
		Status:  503,
		Message: msg,
		Details: map[string]any{"op": op, "retryable": true},
		cause:   err,
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *VocapError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &VocapError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
		cause:   err,
	}
}

// Is checks if an error is (or wraps) a VocapError with the given code.
func Is(err error, code ErrorCode) bool {
	var vErr *VocapError
	if stderrors.As(err, &vErr) {
		return vErr.Code == code
	}
	return false
}
