// Package errors provides structured error handling for alphadata.
//
// Every failure raised by the table and registry packages is an *Error whose
// Type identifies the violated contract (index range, element type, raw access,
// column cardinality, missing dataset) and whose Details carry the dataset name
// and the offending index or type. None of these errors are retryable: they are
// data-contract or programming violations, not transient conditions.
//
//	v, err := table.Value[float64](t, row, col)
//	if errors.IsType(err, errors.ErrorTypeIndexOutOfRange) {
//	    ...
//	}
package errors

import (
	"errors"
	"fmt"
	"runtime"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeIndexOutOfRange reports a row or column index outside the table
	ErrorTypeIndexOutOfRange ErrorType = "index_out_of_range"
	// ErrorTypeTypeMismatch reports a requested element type that differs from the column type
	ErrorTypeTypeMismatch ErrorType = "type_mismatch"
	// ErrorTypeUnsupportedRawAccess reports a raw view requested on a chunked or nullable column
	ErrorTypeUnsupportedRawAccess ErrorType = "unsupported_raw_access"
	// ErrorTypeColumnCardinality reports a single-column accessor used on a multi-column table
	ErrorTypeColumnCardinality ErrorType = "column_cardinality_mismatch"
	// ErrorTypeNotFound represents resource not found errors
	ErrorTypeNotFound ErrorType = "not_found"
	// ErrorTypeData represents malformed dataset content
	ErrorTypeData ErrorType = "data"
	// ErrorTypeConfig represents configuration errors
	ErrorTypeConfig ErrorType = "config"
	// ErrorTypeFile represents file and object store errors
	ErrorTypeFile ErrorType = "file"
	// ErrorTypeInternal represents internal system errors
	ErrorTypeInternal ErrorType = "internal"
)

// Error represents a structured error with context
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Details map[string]interface{}
	Stack   []StackFrame
}

// StackFrame represents a single frame in the call stack
type StackFrame struct {
	Function string
	File     string
	Line     int
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithDetail adds a key-value detail to the error
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New creates a new error with the given type and message
func New(errType ErrorType, message string) *Error {
	return &Error{
		Type:    errType,
		Message: message,
		Stack:   captureStack(2),
	}
}

// Newf creates a new error with a formatted message
func Newf(errType ErrorType, format string, args ...interface{}) *Error {
	return &Error{
		Type:    errType,
		Message: fmt.Sprintf(format, args...),
		Stack:   captureStack(2),
	}
}

// Wrap wraps an existing error with additional context
func Wrap(err error, errType ErrorType, message string) *Error {
	if err == nil {
		return nil
	}

	// If already our error type, preserve the stack
	var existingErr *Error
	if errors.As(err, &existingErr) {
		return &Error{
			Type:    errType,
			Message: message,
			Cause:   err,
			Stack:   existingErr.Stack,
		}
	}

	return &Error{
		Type:    errType,
		Message: message,
		Cause:   err,
		Stack:   captureStack(2),
	}
}

// IsRetryable returns true if the error is retryable. Only storage I/O
// failures qualify; access-layer contract violations never do.
func IsRetryable(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Type == ErrorTypeFile
}

// IsType checks if the error is of the given type
func IsType(err error, errType ErrorType) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Type == errType
}

// TypeOf returns the ErrorType of err, or the empty string for foreign errors
func TypeOf(err error) ErrorType {
	var e *Error
	if !errors.As(err, &e) {
		return ""
	}
	return e.Type
}

// Is reports whether any error in err's chain matches target. It mirrors the
// standard library so callers need a single errors import.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As mirrors the standard library errors.As.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// captureStack records up to 32 frames above its caller's caller.
func captureStack(skip int) []StackFrame {
	var pcs [32]uintptr
	n := runtime.Callers(skip+1, pcs[:])
	if n == 0 {
		return nil
	}

	frames := runtime.CallersFrames(pcs[:n])
	stack := make([]StackFrame, 0, n)
	for {
		f, more := frames.Next()
		stack = append(stack, StackFrame{Function: f.Function, File: f.File, Line: f.Line})
		if !more {
			break
		}
	}
	return stack
}
