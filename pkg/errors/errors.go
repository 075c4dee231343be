// Package errors provides structured error types for sb3min.
//
// This package defines error codes and types that enable:
//   - Consistent error handling across CLI and HTTP API
//   - Machine-readable error codes for programmatic handling
//   - One status line per failure category for users
//   - Error wrapping with context preservation
//
// # Error Codes
//
// Codes are grouped into four categories (see [Category]):
//   - Container: the archive or its JSON member could not be read
//   - Graph: a reference does not resolve to a declared identifier
//   - Destination: the output path conflicts with the input or an existing file
//   - Internal: everything else, including invalid options
//
// # Usage
//
//	err := errors.New(errors.ErrCodeMissingMember, "no project.json in %s", path)
//	if errors.Is(err, errors.ErrCodeMissingMember) {
//	    // Handle container error
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeInvalidJSON, origErr, "decode %s", member)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Container errors
	ErrCodeFileNotFound     Code = "FILE_NOT_FOUND"
	ErrCodeInvalidContainer Code = "INVALID_CONTAINER"
	ErrCodeMissingMember    Code = "MISSING_MEMBER"
	ErrCodeInvalidJSON      Code = "INVALID_JSON"

	// Graph consistency errors
	ErrCodeGraphInconsistent Code = "GRAPH_INCONSISTENT"

	// Destination errors
	ErrCodeDestinationConflict Code = "DESTINATION_CONFLICT"

	// Input validation errors
	ErrCodeInvalidInput  Code = "INVALID_INPUT"
	ErrCodeInvalidConfig Code = "INVALID_CONFIG"

	// Internal errors
	ErrCodeInternal    Code = "INTERNAL_ERROR"
	ErrCodeUnsupported Code = "UNSUPPORTED"
)

// Kind is the user-facing failure category an error code belongs to.
type Kind string

// Failure categories.
const (
	KindContainer   Kind = "container"
	KindGraph       Kind = "graph"
	KindDestination Kind = "destination"
	KindInternal    Kind = "internal"
)

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
// It unwraps the error chain looking for an *Error with a matching code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// Category maps err to its failure category. Errors without a code, and
// nil, are internal.
func Category(err error) Kind {
	switch GetCode(err) {
	case ErrCodeFileNotFound, ErrCodeInvalidContainer, ErrCodeMissingMember, ErrCodeInvalidJSON:
		return KindContainer
	case ErrCodeGraphInconsistent:
		return KindGraph
	case ErrCodeDestinationConflict:
		return KindDestination
	default:
		return KindInternal
	}
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
