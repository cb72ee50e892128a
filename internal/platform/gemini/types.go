package gemini

import (
	"context"

	"google.golang.org/genai"
)

// modelsAPI is the subset of *genai.Models the generator uses.
type modelsAPI interface {
	GenerateImages(
		ctx context.Context,
		model string,
		prompt string,
		config *genai.GenerateImagesConfig,
	) (*genai.GenerateImagesResponse, error)
	GenerateContent(
		ctx context.Context,
		model string,
		contents []*genai.Content,
		config *genai.GenerateContentConfig,
	) (*genai.GenerateContentResponse, error)
}

// backend says which API call serves a model selector.
type backend int

const (
	backendImagen backend = iota
	backendFlashImage
)

// modelRoute is the resolved target for one selector.
type modelRoute struct {
	name    string
	backend backend
}
