package gemini

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/phrazzld/imagegen-api/internal/config"
	"github.com/phrazzld/imagegen-api/internal/generation"
)

// validateConfig checks the LLM configuration before a client is built.
// A missing API key is not an error here: the generator still starts and
// every call reports missing credentials.
func validateConfig(ctx context.Context, logger *slog.Logger, cfg config.LLMConfig) error {
	if cfg.ImagenModel == "" {
		return fmt.Errorf("%w: imagen model name cannot be empty", generation.ErrInvalidConfig)
	}

	if cfg.NanoBananaModel == "" {
		return fmt.Errorf("%w: nano-banana model name cannot be empty", generation.ErrInvalidConfig)
	}

	if cfg.MaxRequestsPerMinute < 0 {
		return fmt.Errorf("%w: max requests per minute cannot be negative", generation.ErrInvalidConfig)
	}

	if cfg.GeminiAPIKey == "" {
		logger.WarnContext(ctx, "Gemini API key is not configured; image generation calls will fail")
	}

	return nil
}
