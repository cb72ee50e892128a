package gemini

import (
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/genai"

	"github.com/phrazzld/imagegen-api/internal/generation"
)

// Error definitions for the gemini package.
var (
	// ErrUnknownModel is returned when a selector has no configured model.
	ErrUnknownModel = errors.New("no image model configured for selector")
)

// classifyError converts API errors into the generation error taxonomy.
// HTTP status codes are preserved in a *generation.StatusError.
func classifyError(err error) error {
	if err == nil {
		return nil
	}

	var apiErr genai.APIError
	var apiErrPtr *genai.APIError
	switch {
	case errors.As(err, &apiErr):
	case errors.As(err, &apiErrPtr) && apiErrPtr != nil:
		apiErr = *apiErrPtr
	default:
		return fmt.Errorf("%w: %w", generation.ErrTransientFailure, err)
	}

	statusErr := &generation.StatusError{
		Code:    apiErr.Code,
		Message: apiErr.Message,
		Err:     err,
	}

	switch apiErr.Code {
	case http.StatusBadRequest, http.StatusUnauthorized:
		return statusErr
	default:
		return fmt.Errorf("%w: %w", generation.ErrTransientFailure, statusErr)
	}
}
