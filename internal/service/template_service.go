package service

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/phrazzld/imagegen-api/internal/domain"
	"github.com/phrazzld/imagegen-api/internal/platform/logger"
	"github.com/phrazzld/imagegen-api/internal/store"
	"github.com/phrazzld/imagegen-api/internal/variant"
)

// TemplatePreview is the expansion of a template against the current
// parameter values.
type TemplatePreview struct {
	Template *domain.Template `json:"template"`
	Report   variant.Report   `json:"placeholders"`
	Count    int              `json:"count"`
	Variants []domain.Variant `json:"variants"`
}

// TemplateService provides template-related operations
type TemplateService interface {
	// CreateTemplate stores new template text
	CreateTemplate(ctx context.Context, name, content string) (*domain.Template, error)

	// GetTemplate retrieves a template by its ID
	GetTemplate(ctx context.Context, id uuid.UUID) (*domain.Template, error)

	// ListTemplates returns all templates, newest first
	ListTemplates(ctx context.Context) ([]*domain.Template, error)

	// UpdateTemplate replaces a template's name and content
	UpdateTemplate(ctx context.Context, id uuid.UUID, name, content string) (*domain.Template, error)

	// DeleteTemplate removes a template; generations keep their snapshot
	DeleteTemplate(ctx context.Context, id uuid.UUID) error

	// ValidateContent reports which placeholders in content name known parameters
	ValidateContent(ctx context.Context, content string) (variant.Report, error)

	// PreviewVariants expands a stored template against current parameters
	PreviewVariants(ctx context.Context, id uuid.UUID) (*TemplatePreview, error)
}

type templateServiceImpl struct {
	templates store.TemplateStore
	params    store.ParameterStore
	logger    *slog.Logger
}

// NewTemplateService creates a new TemplateService.
// It returns an error if any of the required stores are nil.
func NewTemplateService(templates store.TemplateStore, params store.ParameterStore, logger *slog.Logger) (TemplateService, error) {
	if templates == nil {
		return nil, domain.NewValidationError("templates", "cannot be nil", domain.ErrValidation)
	}
	if params == nil {
		return nil, domain.NewValidationError("params", "cannot be nil", domain.ErrValidation)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &templateServiceImpl{
		templates: templates,
		params:    params,
		logger:    logger.With(slog.String("component", "template_service")),
	}, nil
}

func (s *templateServiceImpl) CreateTemplate(ctx context.Context, name, content string) (*domain.Template, error) {
	t, err := domain.NewTemplate(name, content)
	if err != nil {
		return nil, err
	}
	if err := s.templates.Create(ctx, t); err != nil {
		return nil, NewServiceError("create_template", "failed to save template", err)
	}

	logger.FromContextOrDefault(ctx, s.logger).Info("template created",
		slog.String("template_id", t.ID.String()),
		slog.Int("placeholder_count", len(variant.Extract(t.Content))))
	return t, nil
}

func (s *templateServiceImpl) GetTemplate(ctx context.Context, id uuid.UUID) (*domain.Template, error) {
	t, err := s.templates.GetByID(ctx, id)
	if err != nil {
		return nil, NewServiceError("get_template", "failed to load template", err)
	}
	return t, nil
}

func (s *templateServiceImpl) ListTemplates(ctx context.Context) ([]*domain.Template, error) {
	list, err := s.templates.List(ctx)
	if err != nil {
		return nil, NewServiceError("list_templates", "failed to list templates", err)
	}
	return list, nil
}

func (s *templateServiceImpl) UpdateTemplate(ctx context.Context, id uuid.UUID, name, content string) (*domain.Template, error) {
	t, err := s.templates.GetByID(ctx, id)
	if err != nil {
		return nil, NewServiceError("update_template", "failed to load template", err)
	}
	if err := t.Replace(name, content); err != nil {
		return nil, err
	}
	if err := s.templates.Update(ctx, t); err != nil {
		return nil, NewServiceError("update_template", "failed to save template", err)
	}

	logger.FromContextOrDefault(ctx, s.logger).Info("template updated",
		slog.String("template_id", t.ID.String()))
	return t, nil
}

func (s *templateServiceImpl) DeleteTemplate(ctx context.Context, id uuid.UUID) error {
	if err := s.templates.Delete(ctx, id); err != nil {
		return NewServiceError("delete_template", "failed to delete template", err)
	}
	logger.FromContextOrDefault(ctx, s.logger).Info("template deleted",
		slog.String("template_id", id.String()))
	return nil
}

func (s *templateServiceImpl) resolver(ctx context.Context, op string) (variant.Resolver, error) {
	params, err := s.params.List(ctx)
	if err != nil {
		return nil, NewServiceError(op, "failed to load parameters", err)
	}
	return variant.ParameterResolver(params), nil
}

func (s *templateServiceImpl) ValidateContent(ctx context.Context, content string) (variant.Report, error) {
	resolve, err := s.resolver(ctx, "validate_template")
	if err != nil {
		return variant.Report{}, err
	}
	return variant.Validate(content, resolve), nil
}

func (s *templateServiceImpl) PreviewVariants(ctx context.Context, id uuid.UUID) (*TemplatePreview, error) {
	t, err := s.templates.GetByID(ctx, id)
	if err != nil {
		return nil, NewServiceError("preview_variants", "failed to load template", err)
	}
	resolve, err := s.resolver(ctx, "preview_variants")
	if err != nil {
		return nil, err
	}

	variants := variant.Expand(t.ID, t.Content, resolve)
	return &TemplatePreview{
		Template: t,
		Report:   variant.Validate(t.Content, resolve),
		Count:    variant.Count(t.Content, resolve),
		Variants: variants,
	}, nil
}
