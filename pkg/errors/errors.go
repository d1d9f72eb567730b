// Package errors provides structured error types for dagplanner.
//
// This package defines error codes and types that enable:
//   - Consistent error handling across the CLI, the HTTP store and MCP tools
//   - Machine-readable error codes for programmatic handling
//   - User-friendly error messages
//   - Error wrapping with context preservation
//
// # Error Codes
//
// Error codes follow a hierarchical naming convention:
//   - INVALID_*: Input validation failures, fatal to the single call
//   - *_UNAVAILABLE, MALFORMED_*: Environmental failures, recovered locally
//   - NOT_FOUND: Resource not found
//   - INTERNAL_*: Unexpected internal errors
//
// # Usage
//
//	err := errors.New(errors.ErrCodeInvalidLayer, "unknown layer %q", name)
//	if errors.Is(err, errors.ErrCodeInvalidLayer) {
//	    // Handle validation error
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeSourceUnavailable, origErr, "fetch %s", url)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Input validation errors. These propagate to the caller.
	ErrCodeInvalidInput      Code = "INVALID_INPUT"
	ErrCodeInvalidLayer      Code = "INVALID_LAYER"
	ErrCodeUnsupportedInput  Code = "UNSUPPORTED_INPUT"
	ErrCodeInvalidFormat     Code = "INVALID_FORMAT"
	ErrCodeInvalidPath       Code = "INVALID_PATH"
	ErrCodeInvalidConfig     Code = "INVALID_CONFIG"
	ErrCodeInvalidRecordID   Code = "INVALID_RECORD_ID"
	ErrCodeInvalidMermaidDag Code = "INVALID_MERMAID"

	// Environmental errors. These are absorbed by fallback or drop.
	ErrCodeSourceUnavailable Code = "SOURCE_UNAVAILABLE"
	ErrCodeMalformedPush     Code = "MALFORMED_PUSH"
	ErrCodeCacheUnavailable  Code = "CACHE_UNAVAILABLE"

	// Resource not found errors
	ErrCodeNotFound       Code = "NOT_FOUND"
	ErrCodeRecordNotFound Code = "RECORD_NOT_FOUND"

	// Network errors
	ErrCodeNetwork     Code = "NETWORK_ERROR"
	ErrCodeTimeout     Code = "TIMEOUT"
	ErrCodeCircuitOpen Code = "CIRCUIT_OPEN"

	// Internal errors
	ErrCodeInternal    Code = "INTERNAL_ERROR"
	ErrCodeUnsupported Code = "UNSUPPORTED"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return string(e.Code) + ": " + e.Message
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

// New returns an Error with a formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap returns an Error with a formatted message around cause.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// Is reports whether any *Error in err's chain carries code. A
// SOURCE_UNAVAILABLE wrapping a TIMEOUT matches both codes.
func Is(err error, code Code) bool {
	for e := outermost(err); e != nil; e = outermost(e.Cause) {
		if e.Code == code {
			return true
		}
	}
	return false
}

// GetCode returns the code of the outermost *Error in err's chain, or "".
func GetCode(err error) Code {
	if e := outermost(err); e != nil {
		return e.Code
	}
	return ""
}

// UserMessage returns the outermost Error's message without its code, or
// err.Error() for other errors.
func UserMessage(err error) string {
	if e := outermost(err); e != nil {
		return e.Message
	}
	return err.Error()
}

// Fatal reports whether err is a structural error that must reach the caller,
// as opposed to an environmental one that is recovered by fallback or drop.
func Fatal(err error) bool {
	if err == nil {
		return false
	}
	return !GetCode(err).Environmental()
}

// Environmental reports whether c names a failure of the surroundings
// (network, remote store, cache, push channel) rather than of the caller.
func (c Code) Environmental() bool {
	switch c {
	case ErrCodeSourceUnavailable, ErrCodeMalformedPush, ErrCodeCacheUnavailable,
		ErrCodeNetwork, ErrCodeTimeout, ErrCodeCircuitOpen:
		return true
	}
	return false
}

func outermost(err error) *Error {
	var e *Error
	if err != nil && errors.As(err, &e) {
		return e
	}
	return nil
}
