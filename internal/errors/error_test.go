package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStructuredError_Error(t *testing.T) {
	// Test error without cause
	err := New(ErrorTypeValidation, "test_op", "test message")
	expected := "[validation] test_op: test message"
	assert.Equal(t, expected, err.Error())

	// Test error with cause
	cause := errors.New("underlying error")
	err = Wrap(cause, ErrorTypeConfiguration, "init", "region rejected")
	assert.Contains(t, err.Error(), "[configuration] init: region rejected")
	assert.Contains(t, err.Error(), "underlying error")
	assert.Equal(t, cause, err.Unwrap())
}

func TestStructuredError_WithContext(t *testing.T) {
	err := New(ErrorTypeConfiguration, "init", "region too small")
	err = err.WithContext("required", 4096).WithContext("pool", "demo")

	assert.Equal(t, 4096, err.Context["required"])
	assert.Equal(t, "demo", err.Context["pool"])
}

func TestErrorConstructors(t *testing.T) {
	assert.Equal(t, ErrorTypeValidation, NewValidationError("op", "msg").Type)
	assert.Equal(t, ErrorTypeConfiguration, NewConfigurationError("op", "msg").Type)
	assert.Equal(t, ErrorTypeCapacity, NewCapacityError("op", "msg").Type)
}

func TestErrorWrapping(t *testing.T) {
	sentinel := errors.New("stale handle")

	wrapped := WrapHandleError(sentinel, "release", "handle already released")
	assert.Equal(t, ErrorTypeHandle, wrapped.Type)
	assert.Equal(t, "release", wrapped.Operation)
	assert.Equal(t, sentinel, wrapped.Unwrap())
	assert.True(t, errors.Is(wrapped, sentinel))

	assert.Equal(t, ErrorTypeRegion, WrapRegionError(sentinel, "map", "m").Type)
	assert.Equal(t, ErrorTypeConfiguration, WrapConfigurationError(sentinel, "init", "m").Type)

	// Wrap returns nil for nil error
	assert.Nil(t, Wrap(nil, ErrorTypeHandle, "op", "msg"))
}

func TestKindMatching(t *testing.T) {
	var err error = WrapConfigurationError(errors.New("x"), "init", "bad")
	assert.True(t, errors.Is(err, Kind(ErrorTypeConfiguration)))
	assert.False(t, errors.Is(err, Kind(ErrorTypeHandle)))

	var se *StructuredError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "init", se.Operation)
}

func TestStackTraceCapture(t *testing.T) {
	err := New(ErrorTypeValidation, "test", "message")
	assert.Greater(t, len(err.Stack), 0)
	frames := err.Frames()
	require.NotEmpty(t, frames)
	assert.Contains(t, frames[0].Function, "TestStackTraceCapture")
}
