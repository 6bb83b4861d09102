package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors.
var (
	ErrInvalidRecord = errors.New("invalid patent record")
	ErrEmptyText     = errors.New("no abstract or claims text")
	ErrEmptyQuery    = errors.New("query is empty")
	ErrQueryTooLong  = fmt.Errorf("query longer than %d characters", MaxQueryLength)
)

// ValidationError is a rejected user input. Value is kept for logs and is
// not part of the message.
type ValidationError struct {
	Field   string
	Value   string
	Wrapped error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %v", e.Field, e.Wrapped)
}

func (e *ValidationError) Unwrap() error { return e.Wrapped }

// NewValidationError creates a ValidationError.
func NewValidationError(field, value string, wrapped error) *ValidationError {
	return &ValidationError{Field: field, Value: value, Wrapped: wrapped}
}
