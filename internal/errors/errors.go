// Package errors provides error code definitions for the sync engine.
//
// The taxonomy separates transient failures (network, server, timeout),
// which the remote client retries before surfacing, from terminal ones
// (auth, validation), which abort the current stage immediately.
package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a unique, stable error code.
type ErrorCode string

const (
	// Transient failures, retryable.
	ErrNetwork ErrorCode = "NETWORK_ERROR"
	ErrServer  ErrorCode = "SERVER_ERROR"
	ErrTimeout ErrorCode = "TIMEOUT_ERROR"

	// Terminal failures, never retried.
	ErrAuth       ErrorCode = "AUTH_ERROR"
	ErrValidation ErrorCode = "VALIDATION_ERROR"

	// Sync lifecycle errors.
	ErrSyncInProgress ErrorCode = "SYNC_IN_PROGRESS"
	ErrSyncFailed     ErrorCode = "SYNC_FAILED"
	ErrQueueFull      ErrorCode = "QUEUE_FULL"

	// Storage errors.
	ErrDatabase ErrorCode = "DATABASE_ERROR"
	ErrNotFound ErrorCode = "NOT_FOUND"

	// General fallback.
	ErrInternal ErrorCode = "INTERNAL_ERROR"
)

// AppError represents an application error with code and message.
type AppError struct {
	Code    ErrorCode
	Message string
	Err     error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Newf creates a new AppError with a formatted message.
func Newf(code ErrorCode, format string, args ...interface{}) *AppError {
	return &AppError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap wraps an existing error with an error code.
func Wrap(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Is checks if an error carries a specific code, unwrapping as needed.
func Is(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}

// CodeOf extracts the error code from an error chain.
// Returns ErrInternal for non-AppError values and "" for nil.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrInternal
}

// IsRetryable reports whether an error is transient and may succeed on
// a later attempt.
func IsRetryable(err error) bool {
	switch CodeOf(err) {
	case ErrNetwork, ErrServer, ErrTimeout:
		return true
	default:
		return false
	}
}
