// Package errors provides structured error handling for rowforge
package errors

import (
	"errors"
	"fmt"
	"runtime"
	"sort"
	"strings"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeInternal represents internal system errors
	ErrorTypeInternal ErrorType = "internal"
	// ErrorTypeConversion represents raw-to-native value conversion errors
	ErrorTypeConversion ErrorType = "conversion"
	// ErrorTypeResolution represents instance lookup errors (ambiguous or failed match)
	ErrorTypeResolution ErrorType = "resolution"
	// ErrorTypeValidation represents structural validation errors
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeStore represents persistence/deletion errors at the store boundary
	ErrorTypeStore ErrorType = "store"
	// ErrorTypeLoad represents dataset load/parse errors
	ErrorTypeLoad ErrorType = "load"
	// ErrorTypeConfig represents configuration errors
	ErrorTypeConfig ErrorType = "config"
	// ErrorTypeCapability represents capability/feature not supported errors
	ErrorTypeCapability ErrorType = "capability"
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

// IsType checks if the error is of the given type
func IsType(err error, errType ErrorType) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Type == errType
}

// ValidationError is a structural validation failure with per-field detail.
// It is kept distinct from generic errors so callers can separate
// "bad data, reviewable" from "system/logic failure".
type ValidationError struct {
	// FieldErrors maps attribute name to the messages for that attribute
	FieldErrors map[string][]string
	// NonFieldErrors are instance-level messages with no single attribute
	NonFieldErrors []string
}

// NewValidationError creates an empty validation error ready for Add calls
func NewValidationError() *ValidationError {
	return &ValidationError{FieldErrors: make(map[string][]string)}
}

// Add records a message against a field; use an empty field name for
// instance-level messages
func (v *ValidationError) Add(field, message string) {
	if field == "" {
		v.NonFieldErrors = append(v.NonFieldErrors, message)
		return
	}
	v.FieldErrors[field] = append(v.FieldErrors[field], message)
}

// Empty reports whether no messages were recorded
func (v *ValidationError) Empty() bool {
	return len(v.FieldErrors) == 0 && len(v.NonFieldErrors) == 0
}

// Error implements the error interface with deterministic field order
func (v *ValidationError) Error() string {
	parts := make([]string, 0, len(v.FieldErrors)+1)
	fields := make([]string, 0, len(v.FieldErrors))
	for f := range v.FieldErrors {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	for _, f := range fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f, strings.Join(v.FieldErrors[f], "; ")))
	}
	if len(v.NonFieldErrors) > 0 {
		parts = append(parts, strings.Join(v.NonFieldErrors, "; "))
	}
	return "validation: " + strings.Join(parts, ", ")
}

// AsValidation extracts a ValidationError from an error chain
func AsValidation(err error) (*ValidationError, bool) {
	var v *ValidationError
	if errors.As(err, &v) {
		return v, true
	}
	return nil, false
}

// captureStack captures the current call stack
func captureStack(skip int) []StackFrame {
	const maxFrames = 32
	frames := make([]StackFrame, 0, maxFrames)

	for i := skip; i < maxFrames+skip; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}

		fn := runtime.FuncForPC(pc)
		if fn == nil {
			continue
		}

		frames = append(frames, StackFrame{
			Function: fn.Name(),
			File:     file,
			Line:     line,
		})
	}

	return frames
}
