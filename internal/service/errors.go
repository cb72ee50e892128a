package service

import (
	"errors"
	"fmt"

	"github.com/phrazzld/imagegen-api/internal/domain"
	"github.com/phrazzld/imagegen-api/internal/offload"
	"github.com/phrazzld/imagegen-api/internal/store"
	"github.com/phrazzld/imagegen-api/internal/task"
)

// Common service errors - sentinel errors used across service implementations.
// These errors represent common conditions that callers may want to check for with errors.Is().
//
// Error handling principles:
// 1. Service methods return sentinel errors for expected error conditions
// 2. Unexpected errors are wrapped in ServiceError
// 3. Callers use errors.Is/errors.As to check for specific error conditions
// 4. The API layer maps service errors to appropriate HTTP status codes
var (
	// ErrConfirmationRequired is returned by destructive operations called
	// without explicit confirmation.
	// API layer should map this to HTTP 400 Bad Request.
	ErrConfirmationRequired = errors.New("operation requires confirmation")

	// ErrOffloadDisabled is returned by queue operations when no offload
	// queue is configured.
	// API layer should map this to HTTP 503 Service Unavailable.
	ErrOffloadDisabled = errors.New("offload processing is not configured")
)

// ServiceError wraps unexpected errors from a service operation with context.
type ServiceError struct {
	// Operation is the operation that failed (e.g., "create_generation")
	Operation string
	// Message is a human-readable description of the error
	Message string
	// Err is the underlying error that caused the failure
	Err error
}

// Error implements the error interface for ServiceError.
func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("service %s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("service %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *ServiceError) Unwrap() error {
	return e.Err
}

// NewServiceError creates a new ServiceError.
// Expected conditions (not found, duplicates, validation failures, scheduler
// state conflicts) are returned as they are so callers can match them.
func NewServiceError(operation, message string, err error) error {
	if err == nil {
		return nil
	}
	if isExpected(err) {
		return err
	}
	return &ServiceError{
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}

func isExpected(err error) bool {
	var validationErr *domain.ValidationError
	if errors.As(err, &validationErr) {
		return true
	}

	for _, target := range []error{
		store.ErrNotFound,
		store.ErrDuplicate,
		domain.ErrTaskNotFound,
		domain.ErrTaskProcessing,
		domain.ErrInvalidTaskStatus,
		task.ErrAlreadyRunning,
		task.ErrNoPendingTasks,
		task.ErrManagerClosed,
		offload.ErrInvalidMessage,
		ErrConfirmationRequired,
		ErrOffloadDisabled,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
