// Package apperror defines the error taxonomy shared by the writer, the sync engine
// and the remote store adapter.
//
// Connectivity and persistence failures are absorbed into advisory outcomes at the
// writer/engine boundary. Only rejections and input errors reach the caller.
package apperror

import (
	"errors"
	"fmt"
)

const (
	// CodeUnauthenticated: no stable recorder identity is available
	CodeUnauthenticated = "UNAUTHENTICATED"

	// CodeInvalidInput: the caller passed something unusable (e.g. a bad intended status)
	CodeInvalidInput = "INVALID_INPUT"

	// CodeConnectivity: remote store unreachable or timed out; recoverable
	CodeConnectivity = "CONNECTIVITY"

	// CodeRejected: the remote store refused the write; never retried or queued
	CodeRejected = "REJECTED"

	// CodeFinalized: the stored session is submitted or locked and cannot become a draft
	CodeFinalized = "FINALIZED"

	// CodePersistence: the local pending queue cannot be read or written
	CodePersistence = "PERSISTENCE"

	// CodeNotFound: no document at the requested key
	CodeNotFound = "NOT_FOUND"
)

type AppError struct {
	Code    string // Error code (e.g., CONNECTIVITY)
	Message string // User-facing message
	Err     error  // Wrapped original error (optional)
}

// Error implements error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap implements errors.Unwrap interface for errors.Is/As
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError without wrapping
func New(code, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// Wrap creates an AppError that wraps an existing error.
// Returns nil if err is nil.
func Wrap(err error, code, message string) error {
	if err == nil {
		return nil
	}
	return &AppError{Code: code, Message: message, Err: err}
}

// CodeOf returns the code of the outermost AppError in err's chain, or "" if none.
func CodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// Is reports whether err carries the given code.
func Is(err error, code string) bool {
	return err != nil && CodeOf(err) == code
}

// IsConnectivity reports whether err is a recoverable connectivity failure.
func IsConnectivity(err error) bool {
	return Is(err, CodeConnectivity)
}
