package generation

import (
	"errors"
	"fmt"
	"net/http"
)

// Common errors returned by the generation package
var (
	// ErrGenerationFailed is returned when image generation fails for any general reason
	ErrGenerationFailed = errors.New("failed to generate image")

	// ErrInvalidResponse is returned when the model response holds no usable image
	ErrInvalidResponse = errors.New("invalid response from image model")

	// ErrContentBlocked is returned when the model blocks the prompt due to safety filters
	ErrContentBlocked = errors.New("content blocked by image model safety filters")

	// ErrTransientFailure is returned for temporary errors that might resolve on retry
	ErrTransientFailure = errors.New("transient error during image generation")

	// ErrInvalidConfig is returned when the generator configuration is invalid
	ErrInvalidConfig = errors.New("invalid generator configuration")

	// ErrMissingCredentials is returned when no API key is available
	ErrMissingCredentials = errors.New("image service credentials are not configured")

	// ErrEmptyPrompt is returned when a prompt is empty
	ErrEmptyPrompt = errors.New("prompt cannot be empty")
)

// StatusError carries the HTTP status code reported by the image service.
type StatusError struct {
	Code    int
	Message string
	Err     error
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("image service returned status %d", e.Code)
	}
	return fmt.Sprintf("image service returned status %d: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *StatusError) Unwrap() error {
	return e.Err
}

// IsTerminal reports whether err is a validation-class fault that will not
// succeed on retry: bad requests, rejected credentials, missing
// configuration and blocked content. Anything else is treated as transient.
func IsTerminal(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrInvalidConfig) ||
		errors.Is(err, ErrMissingCredentials) ||
		errors.Is(err, ErrContentBlocked) ||
		errors.Is(err, ErrEmptyPrompt) {
		return true
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		switch statusErr.Code {
		case http.StatusBadRequest, http.StatusUnauthorized:
			return true
		}
	}

	return false
}
