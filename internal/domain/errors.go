// Package domain defines the core business entities and errors.
package domain

import (
	"errors"
	"fmt"
)

// Common domain errors used across the application.
var (
	// ErrValidation is returned when a domain entity fails validation.
	// This is often wrapped with a more specific error message.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidID is returned when an ID is malformed or invalid.
	ErrInvalidID = errors.New("invalid ID")

	// ErrEmptyContent is returned when required content is empty.
	ErrEmptyContent = errors.New("content cannot be empty")

	// ErrEmptyName is returned when a required name is empty.
	ErrEmptyName = errors.New("name cannot be empty")

	// ErrInvalidParameterName is returned when a parameter name is not identifier-like.
	ErrInvalidParameterName = errors.New("invalid parameter name")

	// ErrInvalidModel is returned when a model selector is not supported.
	ErrInvalidModel = errors.New("invalid model selector")

	// ErrInvalidRateLimit is returned when a rate limit is not a positive integer.
	ErrInvalidRateLimit = errors.New("rate limit must be a positive number of requests per hour")

	// ErrInvalidTaskStatus is returned when a task status is not one of the known values.
	ErrInvalidTaskStatus = errors.New("invalid task status")

	// ErrInvalidTransition is returned when a task cannot move to the requested status.
	ErrInvalidTransition = errors.New("invalid task status transition")

	// ErrTaskNotFound is returned when a generation has no task with the given ID.
	ErrTaskNotFound = errors.New("task not found in generation")

	// ErrTaskProcessing is returned when an operation targets a task that is in flight.
	ErrTaskProcessing = errors.New("task is currently processing")
)

// ValidationError describes a single invalid field.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Message)
}

// Unwrap returns the wrapped sentinel so errors.Is works against it.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError creates a ValidationError for the given field.
func NewValidationError(field, message string, err error) *ValidationError {
	if err == nil {
		err = ErrValidation
	}
	return &ValidationError{
		Field:   field,
		Message: message,
		Err:     err,
	}
}
