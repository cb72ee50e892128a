package store

import (
	"errors"
	"fmt"
)

// Common store errors used across all store implementations.
var (
	// ErrNotFound is returned when a requested entity does not exist in the store.
	// This is a generic version of the entity-specific not found errors
	// (e.g., ErrParameterNotFound, ErrGenerationNotFound).
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicate is returned when an operation would create a duplicate
	// of a unique entity (e.g., a parameter with the same name).
	ErrDuplicate = errors.New("entity already exists")

	// ErrInvalidEntity is returned when an entity fails validation before
	// being stored. Check the wrapped error for specific validation details.
	ErrInvalidEntity = errors.New("invalid entity")

	// Entity-specific "not found" errors

	// ErrParameterNotFound indicates that the requested parameter does not exist in the store.
	ErrParameterNotFound = fmt.Errorf("%w: parameter", ErrNotFound)

	// ErrTemplateNotFound indicates that the requested template does not exist in the store.
	ErrTemplateNotFound = fmt.Errorf("%w: template", ErrNotFound)

	// ErrGenerationNotFound indicates that the requested generation does not exist in the store.
	ErrGenerationNotFound = fmt.Errorf("%w: generation", ErrNotFound)

	// ErrTaskNotFound indicates that the requested generation task does not exist in the store.
	ErrTaskNotFound = fmt.Errorf("%w: generation task", ErrNotFound)

	// Entity-specific "duplicate" errors

	// ErrParameterNameExists indicates that a parameter with the given name already exists.
	ErrParameterNameExists = fmt.Errorf("%w: parameter name", ErrDuplicate)
)

// IsNotFoundError checks if the error is any kind of "not found" error.
// Entity-specific errors wrap ErrNotFound, so one check covers them all.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsDuplicateError checks if the error is any kind of "duplicate" error.
func IsDuplicateError(err error) bool {
	return errors.Is(err, ErrDuplicate)
}
