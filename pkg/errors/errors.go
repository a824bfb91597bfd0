// Package errors provides structured error types for storagegraph.
//
// This package defines error codes and types that enable:
//   - Consistent error handling across the planner, the commit driver and the CLI
//   - Machine-readable error codes for programmatic handling
//   - User-friendly error messages
//   - Error wrapping with context preservation
//
// # Error Codes
//
// The codes mirror the failure taxonomy of the planner:
//   - NOT_FOUND, STRUCTURAL: malformed entity graphs (never auto-repaired)
//   - CYCLE_DETECTED: planning failures, no partial action list is produced
//   - UNSUPPORTED_OPERATION: an entity type refuses a requested transform
//   - COMMIT_FAILURE: a commit callback failed, later actions were not run
//   - INVALID_*, INTERNAL: input validation failures and bugs
//
// # Usage
//
//	err := errors.New(errors.ErrCodeStructural, "holder %d -> %d: unknown source", src, dst)
//	if errors.Is(err, errors.ErrCodeStructural) {
//	    // Reject the graph
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeInvalidFormat, origErr, "decode %s", path)
//
// Domain error types carrying extra payload (cycle members, committed action
// counts) implement [Coder] and are recognized by [Is] and [GetCode] just
// like [*Error].
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Structural errors
	ErrCodeNotFound   Code = "NOT_FOUND"
	ErrCodeStructural Code = "STRUCTURAL"

	// Planning errors
	ErrCodeCycleDetected Code = "CYCLE_DETECTED"

	// Capability errors
	ErrCodeUnsupportedOperation Code = "UNSUPPORTED_OPERATION"

	// Commit errors
	ErrCodeCommitFailure Code = "COMMIT_FAILURE"
	ErrCodeAborted       Code = "ABORTED"

	// Input validation errors
	ErrCodeInvalidInput  Code = "INVALID_INPUT"
	ErrCodeInvalidFormat Code = "INVALID_FORMAT"
	ErrCodeInvalidName   Code = "INVALID_NAME"
	ErrCodeInvalidPath   Code = "INVALID_PATH"
	ErrCodeLocked        Code = "LOCKED"

	// Internal errors
	ErrCodeInternal Code = "INTERNAL_ERROR"
)

// Coder is implemented by error types that carry a machine-readable code.
type Coder interface {
	error
	Code() Code
}

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether err has the given error code.
// It unwraps the error chain looking for the outermost *Error or [Coder]
// and compares its code.
func Is(err error, code Code) bool {
	return err != nil && GetCode(err) == code
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if no *Error or [Coder] is found in the chain.
func GetCode(err error) Code {
	for cur := err; cur != nil; cur = errors.Unwrap(cur) {
		switch e := cur.(type) {
		case *Error:
			return e.Code
		case Coder:
			return e.Code()
		}
	}
	// Aggregates such as *multierror.Error only expose their first entry
	// through As.
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	var c Coder
	if errors.As(err, &c) {
		return c.Code()
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// NotFound is shorthand for New(ErrCodeNotFound, ...).
func NotFound(format string, args ...any) *Error {
	return New(ErrCodeNotFound, format, args...)
}

// Structural is shorthand for New(ErrCodeStructural, ...).
func Structural(format string, args ...any) *Error {
	return New(ErrCodeStructural, format, args...)
}

// Unsupported reports that entity refuses operation.
func Unsupported(entity, operation string) *Error {
	return New(ErrCodeUnsupportedOperation, "%s does not support %s", entity, operation)
}
