package errors

import (
	"fmt"
	"runtime"
)

// ErrorType categorizes pool failures.
type ErrorType string

const (
	ErrorTypeValidation    ErrorType = "validation"
	ErrorTypeConfiguration ErrorType = "configuration"
	ErrorTypeCapacity      ErrorType = "capacity"
	ErrorTypeHandle        ErrorType = "handle"
	ErrorTypeRegion        ErrorType = "region"
)

// StructuredError provides rich error context
type StructuredError struct {
	Type      ErrorType
	Operation string
	Message   string
	Cause     error
	Context   map[string]interface{}
	Stack     []uintptr
}

// Error implements the error interface
func (e *StructuredError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %s: %v", e.Type, e.Operation, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Type, e.Operation, e.Message)
}

// Unwrap returns the underlying cause
func (e *StructuredError) Unwrap() error {
	return e.Cause
}

// New creates a new structured error
func New(errType ErrorType, operation, message string) *StructuredError {
	return &StructuredError{
		Type:      errType,
		Operation: operation,
		Message:   message,
		Context:   make(map[string]interface{}),
		Stack:     captureStack(),
	}
}

// Wrap wraps an existing error with additional context
func Wrap(err error, errType ErrorType, operation, message string) *StructuredError {
	if err == nil {
		return nil
	}

	return &StructuredError{
		Type:      errType,
		Operation: operation,
		Message:   message,
		Cause:     err,
		Context:   make(map[string]interface{}),
		Stack:     captureStack(),
	}
}

// WithContext adds context information to an error
func (e *StructuredError) WithContext(key string, value interface{}) *StructuredError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// Is reports whether target is a StructuredError of the same type.
// Sentinel causes are matched through Unwrap.
func (e *StructuredError) Is(target error) bool {
	t, ok := target.(*StructuredError)
	if !ok {
		return false
	}
	return t.Type == e.Type && t.Operation == "" && t.Message == ""
}

// Frames resolves the captured program counters.
func (e *StructuredError) Frames() []runtime.Frame {
	if len(e.Stack) == 0 {
		return nil
	}
	frames := runtime.CallersFrames(e.Stack)
	var out []runtime.Frame
	for {
		f, more := frames.Next()
		out = append(out, f)
		if !more {
			break
		}
	}
	return out
}

func captureStack() []uintptr {
	const depth = 32
	var pcs [depth]uintptr
	n := runtime.Callers(3, pcs[:]) // skip Callers, captureStack, constructor
	return pcs[:n]
}

// Kind returns a bare StructuredError usable as an errors.Is target for a category.
func Kind(errType ErrorType) error {
	return &StructuredError{Type: errType}
}

// NewValidationError creates a validation error
func NewValidationError(operation, message string) *StructuredError {
	return New(ErrorTypeValidation, operation, message)
}

// NewConfigurationError creates a configuration error
func NewConfigurationError(operation, message string) *StructuredError {
	return New(ErrorTypeConfiguration, operation, message)
}

// NewCapacityError creates a capacity error
func NewCapacityError(operation, message string) *StructuredError {
	return New(ErrorTypeCapacity, operation, message)
}

// WrapConfigurationError wraps an error as a configuration error
func WrapConfigurationError(err error, operation, message string) *StructuredError {
	return Wrap(err, ErrorTypeConfiguration, operation, message)
}

// WrapHandleError wraps an error as a handle error
func WrapHandleError(err error, operation, message string) *StructuredError {
	return Wrap(err, ErrorTypeHandle, operation, message)
}

// WrapRegionError wraps an error as a region error
func WrapRegionError(err error, operation, message string) *StructuredError {
	return Wrap(err, ErrorTypeRegion, operation, message)
}
