package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/phrazzld/imagegen-api/internal/domain"
	"github.com/phrazzld/imagegen-api/internal/task"
)

// ParameterRequest defines the payload for creating or updating a parameter.
// Values may be given as a list or as comma-separated text; the list wins
// when both are present.
type ParameterRequest struct {
	Name       string   `json:"name"        validate:"required,max=100"`
	Values     []string `json:"values"      validate:"omitempty,dive,max=500"`
	ValuesText string   `json:"values_text" validate:"max=10000"`
}

// ParsedValues returns the parameter values from whichever field was used.
func (r ParameterRequest) ParsedValues() []string {
	if r.Values != nil {
		return domain.ParseValues(domain.FormatValues(r.Values))
	}
	return domain.ParseValues(r.ValuesText)
}

// ParameterResponse represents a parameter in API responses.
type ParameterResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Values    []string  `json:"values"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func parameterToResponse(p *domain.Parameter) ParameterResponse {
	return ParameterResponse{
		ID:        p.ID,
		Name:      p.Name,
		Values:    p.Values,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

// TemplateRequest defines the payload for creating or updating a template.
type TemplateRequest struct {
	Name    string `json:"name"    validate:"required,max=200"`
	Content string `json:"content" validate:"required,max=20000"`
}

// ValidateTemplateRequest defines the payload for checking placeholders.
type ValidateTemplateRequest struct {
	Content string `json:"content" validate:"required,max=20000"`
}

// TemplateResponse represents a template in API responses.
type TemplateResponse struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Content      string    `json:"content"`
	Placeholders []string  `json:"placeholders"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// CreateGenerationRequest defines the payload for creating a generation.
type CreateGenerationRequest struct {
	Name       string `json:"name"        validate:"required,max=200"`
	TemplateID string `json:"template_id" validate:"required,uuid"`
	Model      string `json:"model"       validate:"required,oneof=imagen-4 nano-banana"`
	// RateLimit in requests per hour; omitted selects the server default
	RateLimit int `json:"rate_limit" validate:"gte=0,lte=36000"`
}

// ClearTasksRequest defines the payload for clearing terminal tasks.
type ClearTasksRequest struct {
	Status string `json:"status" validate:"required,oneof=completed failed"`
}

// ClearAllTasksRequest defines the payload for clearing every task.
type ClearAllTasksRequest struct {
	Confirm bool `json:"confirm"`
}

// GenerationSummary is a generation without its task list.
type GenerationSummary struct {
	ID         uuid.UUID              `json:"id"`
	Name       string                 `json:"name"`
	TemplateID uuid.UUID              `json:"template_id"`
	Model      domain.ModelSelector   `json:"model"`
	RateLimit  int                    `json:"rate_limit"`
	Stats      domain.GenerationStats `json:"stats"`
	CreatedAt  time.Time              `json:"created_at"`
	UpdatedAt  time.Time              `json:"updated_at"`
}

// GenerationResponse is a generation with its variants and tasks.
type GenerationResponse struct {
	GenerationSummary
	Variants []domain.Variant         `json:"variants"`
	Tasks    []*domain.GenerationTask `json:"tasks"`
}

func generationToSummary(g *domain.Generation) GenerationSummary {
	return GenerationSummary{
		ID:         g.ID,
		Name:       g.Name,
		TemplateID: g.TemplateID,
		Model:      g.Model,
		RateLimit:  g.RateLimit,
		Stats:      g.Stats(),
		CreatedAt:  g.CreatedAt,
		UpdatedAt:  g.UpdatedAt,
	}
}

func generationToResponse(g *domain.Generation) GenerationResponse {
	return GenerationResponse{
		GenerationSummary: generationToSummary(g),
		Variants:          g.Variants,
		Tasks:             g.Tasks,
	}
}

// StateResponse reports the scheduler state of a generation.
type StateResponse struct {
	GenerationID uuid.UUID  `json:"generation_id"`
	State        task.State `json:"state"`
}

// CountResponse reports how many items an operation affected.
type CountResponse struct {
	Count int `json:"count"`
}
