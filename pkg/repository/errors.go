package repository

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound classifies a missing task, transaction or task type.
	ErrNotFound = errors.New("not found")
	// ErrConflict classifies a write rejected because the identifier is already taken.
	ErrConflict = errors.New("conflict")
	// ErrValidation classifies rejected caller input such as an unknown sort key.
	ErrValidation = errors.New("validation error")
	// ErrSerialization classifies a stored document that cannot be mapped to a model.
	ErrSerialization = errors.New("serialization error")
)

// ValidationError carries a stable machine-readable code next to the message.
// It matches ErrValidation under errors.Is.
type ValidationError struct {
	Code    string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return e.Code + ": " + e.Message
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// NewValidationError creates a ValidationError.
func NewValidationError(code, message string) *ValidationError {
	return &ValidationError{Code: code, Message: message}
}

// NotFound wraps ErrNotFound with a message.
func NotFound(format string, args ...any) error {
	return wrap(ErrNotFound, fmt.Sprintf(format, args...))
}

// Conflict wraps ErrConflict with a message.
func Conflict(format string, args ...any) error {
	return wrap(ErrConflict, fmt.Sprintf(format, args...))
}

// Serialization wraps ErrSerialization with a message and the decoding cause.
func Serialization(cause error, format string, args ...any) error {
	if cause == nil {
		return wrap(ErrSerialization, fmt.Sprintf(format, args...))
	}
	return fmt.Errorf("%w: %s: %v", ErrSerialization, fmt.Sprintf(format, args...), cause)
}

func wrap(kind error, message string) error {
	if message == "" {
		return kind
	}
	return fmt.Errorf("%w: %s", kind, message)
}
