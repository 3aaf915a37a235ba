// Package errors provides structured error handling with typed error codes.
//
// Error codes are organized into categories:
//   - General errors (1-99): Unknown and general errors
//   - Data errors (100-199): Malformed or out-of-order market series
//   - Configuration errors (200-299): Invalid parameter combinations
//   - Strategy errors (300-399): Per-bar strategy evaluation failures
//   - Execution errors (400-499): Rejected entries (limits, margin rules)
//   - Margin errors (500-599): Equity breaching the configured floor
//   - Optimizer errors (600-699): Walk-forward and Monte Carlo batch errors
//   - Selector errors (700-799): Signal selection failures
//   - Export errors (800-899): Result store and export failures
//
// Usage:
//
//	// Create a new error
//	err := errors.New(errors.ErrCodeDataEmptySeries, "series has no bars")
//
//	// Create a formatted error
//	err := errors.Newf(errors.ErrCodeDataOutOfOrder, "bar %d precedes bar %d", i, i-1)
//
//	// Wrap an existing error
//	err := errors.Wrap(errors.ErrCodeStoreWrite, "failed to persist trades", originalErr)
//
//	// Check error code
//	if errors.HasCode(err, errors.ErrCodeMarginCall) { ... }
package errors

import (
	"errors"
	"fmt"
)

// Error represents a structured error with an error code and message.
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// New creates a new Error with the given code and message.
func New(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   nil,
	}
}

// Newf creates a new Error with the given code and formatted message.
func Newf(code ErrorCode, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   nil,
	}
}

// Wrap wraps an existing error with a new Error containing the given code and message.
func Wrap(code ErrorCode, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Wrapf wraps an existing error with a new Error containing the given code and formatted message.
func Wrapf(code ErrorCode, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Cause)
	}

	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether any error in err's chain matches target.
// This is a convenience wrapper around the standard errors.Is function.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
// This is a convenience wrapper around the standard errors.As function.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// GetCode extracts the ErrorCode from an error if it's an *Error type.
// Returns ErrCodeUnknown if the error is not an *Error type.
func GetCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}

	return ErrCodeUnknown
}

// HasCode checks if an error has a specific ErrorCode.
func HasCode(err error, code ErrorCode) bool {
	return GetCode(err) == code
}

// IsFatal reports whether an error code belongs to a category that must abort
// the current run (data, configuration, margin). Strategy and execution errors
// are recorded as events and never propagate past the engine boundary.
func IsFatal(err error) bool {
	code := GetCode(err)

	switch {
	case code >= 100 && code < 300:
		return true
	case code >= 500 && code < 600:
		return true
	default:
		return false
	}
}
