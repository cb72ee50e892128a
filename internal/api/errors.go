package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/phrazzld/imagegen-api/internal/api/shared"
	"github.com/phrazzld/imagegen-api/internal/domain"
	"github.com/phrazzld/imagegen-api/internal/offload"
	"github.com/phrazzld/imagegen-api/internal/service"
	"github.com/phrazzld/imagegen-api/internal/signature"
	"github.com/phrazzld/imagegen-api/internal/sink"
	"github.com/phrazzld/imagegen-api/internal/store"
	"github.com/phrazzld/imagegen-api/internal/task"
)

const defaultErrorMessage = "An unexpected error occurred"

// MapErrorToStatusCode maps internal errors to appropriate HTTP status codes
// based on the error type. This prevents leaking internal error types or
// messages to clients.
func MapErrorToStatusCode(err error) int {
	var validationErr *domain.ValidationError
	var fieldErrs validator.ValidationErrors

	switch {
	// Signature errors
	case errors.Is(err, signature.ErrMissingSignature),
		errors.Is(err, signature.ErrInvalidSignature),
		errors.Is(err, signature.ErrExpiredSignature),
		errors.Is(err, signature.ErrBodyMismatch):
		return http.StatusUnauthorized

	// Not found errors
	case errors.Is(err, store.ErrNotFound),
		errors.Is(err, domain.ErrTaskNotFound):
		return http.StatusNotFound

	// Conflict errors
	case errors.Is(err, store.ErrDuplicate),
		errors.Is(err, task.ErrAlreadyRunning),
		errors.Is(err, task.ErrNoPendingTasks),
		errors.Is(err, domain.ErrTaskProcessing):
		return http.StatusConflict

	// Bad request errors
	case errors.As(err, &validationErr),
		errors.As(err, &fieldErrs),
		errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidID),
		errors.Is(err, domain.ErrInvalidTaskStatus),
		errors.Is(err, store.ErrInvalidEntity),
		errors.Is(err, sink.ErrInvalidResult),
		errors.Is(err, offload.ErrInvalidMessage),
		errors.Is(err, service.ErrConfirmationRequired),
		errors.Is(err, shared.ErrEmptyBody):
		return http.StatusBadRequest

	// Unavailable
	case errors.Is(err, service.ErrOffloadDisabled),
		errors.Is(err, task.ErrManagerClosed):
		return http.StatusServiceUnavailable

	// Default: internal server error
	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a sanitized, user-friendly error message
// based on the error type. This prevents leaking sensitive internal details.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return defaultErrorMessage
	}

	var validationErr *domain.ValidationError
	if errors.As(err, &validationErr) {
		return fmt.Sprintf("Invalid %s: %s", validationErr.Field, validationErr.Message)
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		return SanitizeValidationError(err)
	}

	switch {
	case errors.Is(err, signature.ErrMissingSignature):
		return "Missing signature"
	case errors.Is(err, signature.ErrExpiredSignature):
		return "Signature expired"
	case errors.Is(err, signature.ErrInvalidSignature),
		errors.Is(err, signature.ErrBodyMismatch):
		return "Invalid signature"

	case errors.Is(err, store.ErrParameterNotFound):
		return "Parameter not found"
	case errors.Is(err, store.ErrTemplateNotFound):
		return "Template not found"
	case errors.Is(err, store.ErrGenerationNotFound):
		return "Generation not found"
	case errors.Is(err, store.ErrTaskNotFound),
		errors.Is(err, domain.ErrTaskNotFound):
		return "Task not found"
	case errors.Is(err, store.ErrNotFound):
		return "Resource not found"

	case errors.Is(err, store.ErrParameterNameExists):
		return "Parameter name already exists"
	case errors.Is(err, store.ErrDuplicate):
		return "Resource already exists"
	case errors.Is(err, task.ErrAlreadyRunning):
		return "Generation is already running"
	case errors.Is(err, task.ErrNoPendingTasks):
		return "Generation has no pending tasks"
	case errors.Is(err, domain.ErrTaskProcessing):
		return "Task is currently processing"

	case errors.Is(err, domain.ErrInvalidID):
		return "Invalid ID"
	case errors.Is(err, domain.ErrInvalidTaskStatus):
		return "Status must be completed or failed"
	case errors.Is(err, domain.ErrValidation):
		return "Validation failed"
	case errors.Is(err, store.ErrInvalidEntity):
		return "Invalid entity data"
	case errors.Is(err, sink.ErrInvalidResult):
		return "Invalid task result"
	case errors.Is(err, offload.ErrInvalidMessage):
		return "Invalid queue message"
	case errors.Is(err, service.ErrConfirmationRequired):
		return "Confirmation required"
	case errors.Is(err, shared.ErrEmptyBody):
		return "Request body is required"

	case errors.Is(err, service.ErrOffloadDisabled):
		return "Offload processing is not configured"
	case errors.Is(err, task.ErrManagerClosed):
		return "Service is shutting down"

	default:
		return defaultErrorMessage
	}
}

// HandleAPIError writes the status and safe message for err. defaultMsg
// replaces the generic message for errors that map to no known case.
func HandleAPIError(w http.ResponseWriter, r *http.Request, err error, defaultMsg string) {
	status := MapErrorToStatusCode(err)
	message := GetSafeErrorMessage(err)
	if message == defaultErrorMessage && defaultMsg != "" {
		message = defaultMsg
	}

	var opts []shared.ResponseOption
	if status == http.StatusUnauthorized {
		opts = append(opts, shared.WithElevatedLogLevel())
	}
	shared.RespondWithErrorAndLog(w, r, status, message, err, opts...)
}

// SanitizeValidationError removes sensitive details from validation errors
// and returns a user-friendly message.
func SanitizeValidationError(err error) string {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return fmt.Sprintf("Invalid %s: %s", strings.ToLower(fe.Field()), getValidationTagMessage(fe.Tag()))
	}
	return "Validation error"
}

// getValidationTagMessage maps validation tags to user-friendly error messages
func getValidationTagMessage(tag string) string {
	switch tag {
	case "required":
		return "required field"
	case "min":
		return "too short"
	case "max":
		return "too long"
	case "gt", "gte":
		return "too small"
	case "oneof":
		return "invalid value"
	case "uuid":
		return "invalid ID format"
	default:
		return "validation failed"
	}
}
