package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for validation failures.
var (
	ErrEmptyQuestion   = errors.New("question is empty")
	ErrQuestionTooLong = errors.New("question is too long")
	ErrEmptyBatch      = errors.New("batch is empty")
	ErrBatchTooLarge   = errors.New("batch is too large")
	ErrInvalidSetting  = errors.New("invalid setting")
)

// ValidationError wraps a sentinel with context.
type ValidationError struct {
	Field   string
	Value   string
	Wrapped error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s (value=%q)", e.Wrapped, e.Field, e.Value)
}

func (e *ValidationError) Unwrap() error { return e.Wrapped }

// NewValidationError creates a ValidationError.
func NewValidationError(field, value string, wrapped error) *ValidationError {
	return &ValidationError{Field: field, Value: value, Wrapped: wrapped}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
