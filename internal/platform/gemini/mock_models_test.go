package gemini

import (
	"context"
	"sync"

	"google.golang.org/genai"
)

// mockModels records calls and returns canned responses.
type mockModels struct {
	mu sync.Mutex

	GenerateImagesFn  func(ctx context.Context, model, prompt string, cfg *genai.GenerateImagesConfig) (*genai.GenerateImagesResponse, error)
	GenerateContentFn func(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)

	imageCalls   []string
	contentCalls []string
	lastConfig   *genai.GenerateImagesConfig
}

func (m *mockModels) GenerateImages(
	ctx context.Context,
	model string,
	prompt string,
	cfg *genai.GenerateImagesConfig,
) (*genai.GenerateImagesResponse, error) {
	m.mu.Lock()
	m.imageCalls = append(m.imageCalls, model)
	m.lastConfig = cfg
	m.mu.Unlock()

	if m.GenerateImagesFn != nil {
		return m.GenerateImagesFn(ctx, model, prompt, cfg)
	}
	return &genai.GenerateImagesResponse{
		GeneratedImages: []*genai.GeneratedImage{{
			Image: &genai.Image{ImageBytes: []byte("imagen"), MIMEType: "image/png"},
		}},
	}, nil
}

func (m *mockModels) GenerateContent(
	ctx context.Context,
	model string,
	contents []*genai.Content,
	cfg *genai.GenerateContentConfig,
) (*genai.GenerateContentResponse, error) {
	m.mu.Lock()
	m.contentCalls = append(m.contentCalls, model)
	m.mu.Unlock()

	if m.GenerateContentFn != nil {
		return m.GenerateContentFn(ctx, model, contents, cfg)
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{
				{Text: "here is your image"},
				{InlineData: &genai.Blob{Data: []byte("flash"), MIMEType: "image/jpeg"}},
			}},
		}},
	}, nil
}
