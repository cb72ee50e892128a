package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/phrazzld/imagegen-api/internal/config"
	"github.com/phrazzld/imagegen-api/internal/domain"
	"github.com/phrazzld/imagegen-api/internal/generation"
)

// GeminiGenerator implements the generation.ImageGenerator interface using
// Google's generative AI API.
type GeminiGenerator struct {
	// logger is used for structured logging
	logger *slog.Logger

	// models issues the API calls; nil when no API key is configured
	models modelsAPI

	// routes maps each selector to a concrete model
	routes map[domain.ModelSelector]modelRoute

	// limiter caps request rate across all callers; nil means uncapped
	limiter *rate.Limiter

	aspectRatio string
	timeout     time.Duration
}

// NewGeminiGenerator creates a generator from the LLM configuration.
//
// When no API key is configured the generator is still returned; each call
// then fails with generation.ErrMissingCredentials, which the retry layer
// treats as terminal.
func NewGeminiGenerator(ctx context.Context, logger *slog.Logger, cfg config.LLMConfig) (*GeminiGenerator, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	if err := validateConfig(ctx, logger, cfg); err != nil {
		return nil, err
	}

	var models modelsAPI
	if cfg.GeminiAPIKey != "" {
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  cfg.GeminiAPIKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: failed to create Gemini client: %v",
				generation.ErrInvalidConfig, err)
		}
		models = client.Models
	}

	return newGenerator(logger, cfg, models), nil
}

// newGenerator wires a generator around an arbitrary models implementation.
func newGenerator(logger *slog.Logger, cfg config.LLMConfig, models modelsAPI) *GeminiGenerator {
	g := &GeminiGenerator{
		logger: logger.With("component", "gemini_generator"),
		models: models,
		routes: map[domain.ModelSelector]modelRoute{
			domain.ModelImagen4:    {name: cfg.ImagenModel, backend: backendImagen},
			domain.ModelNanoBanana: {name: cfg.NanoBananaModel, backend: backendFlashImage},
		},
		aspectRatio: cfg.AspectRatio,
		timeout:     cfg.RequestTimeout,
	}

	if cfg.MaxRequestsPerMinute > 0 {
		g.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.MaxRequestsPerMinute)), 1)
	}

	return g
}

// GenerateImage sends prompt to the model behind the selector.
// This makes exactly one API call; retrying is the caller's concern.
func (g *GeminiGenerator) GenerateImage(
	ctx context.Context,
	prompt string,
	model domain.ModelSelector,
) (*generation.Image, error) {
	if prompt == "" {
		return nil, generation.ErrEmptyPrompt
	}

	if g.models == nil {
		return nil, generation.ErrMissingCredentials
	}

	route, ok := g.routes[model]
	if !ok || route.name == "" {
		return nil, fmt.Errorf("%w: %w %q", generation.ErrInvalidConfig, ErrUnknownModel, model)
	}

	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: waiting for request slot: %w", generation.ErrTransientFailure, err)
		}
	}

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	g.logger.DebugContext(ctx, "Making image generation call",
		"model", route.name,
		"prompt_length", len(prompt))

	start := time.Now()
	var (
		img *generation.Image
		err error
	)
	switch route.backend {
	case backendImagen:
		img, err = g.generateWithImagen(ctx, route.name, prompt)
	default:
		img, err = g.generateWithFlashImage(ctx, route.name, prompt)
	}

	if err != nil {
		g.logger.WarnContext(ctx, "Image generation call failed",
			"model", route.name,
			"duration", time.Since(start),
			"error", err)
		return nil, err
	}

	g.logger.InfoContext(ctx, "Image generation call successful",
		"model", route.name,
		"mime_type", img.MIMEType,
		"bytes", len(img.Data),
		"duration", time.Since(start))

	return img, nil
}

func (g *GeminiGenerator) generateWithImagen(ctx context.Context, model, prompt string) (*generation.Image, error) {
	cfg := &genai.GenerateImagesConfig{}
	if g.aspectRatio != "" {
		cfg.AspectRatio = g.aspectRatio
	}

	resp, err := g.models.GenerateImages(ctx, model, prompt, cfg)
	if err != nil {
		return nil, classifyError(err)
	}

	if resp == nil || len(resp.GeneratedImages) == 0 {
		return nil, fmt.Errorf("%w: no images generated", generation.ErrInvalidResponse)
	}

	generated := resp.GeneratedImages[0]
	if generated == nil {
		return nil, fmt.Errorf("%w: empty image entry", generation.ErrInvalidResponse)
	}
	if generated.RAIFilteredReason != "" {
		return nil, fmt.Errorf("%w: %s", generation.ErrContentBlocked, generated.RAIFilteredReason)
	}
	if generated.Image == nil || len(generated.Image.ImageBytes) == 0 {
		return nil, fmt.Errorf("%w: image has no bytes", generation.ErrInvalidResponse)
	}

	return &generation.Image{
		Data:     generated.Image.ImageBytes,
		MIMEType: generated.Image.MIMEType,
	}, nil
}

func (g *GeminiGenerator) generateWithFlashImage(ctx context.Context, model, prompt string) (*generation.Image, error) {
	resp, err := g.models.GenerateContent(ctx, model, genai.Text(prompt), nil)
	if err != nil {
		return nil, classifyError(err)
	}

	if resp == nil {
		return nil, fmt.Errorf("%w: nil response", generation.ErrInvalidResponse)
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return nil, fmt.Errorf("%w: prompt blocked (%s)", generation.ErrContentBlocked, resp.PromptFeedback.BlockReason)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		return nil, fmt.Errorf("%w: no content generated", generation.ErrInvalidResponse)
	}

	candidate := resp.Candidates[0]
	if candidate.FinishReason == genai.FinishReasonSafety {
		return nil, fmt.Errorf("%w: content blocked by safety filters", generation.ErrContentBlocked)
	}
	if candidate.Content == nil {
		return nil, fmt.Errorf("%w: empty content in response", generation.ErrInvalidResponse)
	}

	for _, part := range candidate.Content.Parts {
		if part == nil || part.InlineData == nil || len(part.InlineData.Data) == 0 {
			continue
		}
		return &generation.Image{
			Data:     part.InlineData.Data,
			MIMEType: part.InlineData.MIMEType,
		}, nil
	}

	return nil, fmt.Errorf("%w: response contained no image data", generation.ErrInvalidResponse)
}
