package service

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/phrazzld/imagegen-api/internal/domain"
	"github.com/phrazzld/imagegen-api/internal/platform/logger"
	"github.com/phrazzld/imagegen-api/internal/store"
)

// ParameterService provides parameter-related operations
type ParameterService interface {
	// CreateParameter creates a parameter with the given values
	CreateParameter(ctx context.Context, name string, values []string) (*domain.Parameter, error)

	// GetParameter retrieves a parameter by its ID
	GetParameter(ctx context.Context, id uuid.UUID) (*domain.Parameter, error)

	// ListParameters returns all parameters ordered by name
	ListParameters(ctx context.Context) ([]*domain.Parameter, error)

	// UpdateParameter replaces a parameter's name and values
	UpdateParameter(ctx context.Context, id uuid.UUID, name string, values []string) (*domain.Parameter, error)

	// DeleteParameter removes a parameter
	DeleteParameter(ctx context.Context, id uuid.UUID) error
}

type parameterServiceImpl struct {
	params store.ParameterStore
	logger *slog.Logger
}

// NewParameterService creates a new ParameterService.
// It returns an error if the store is nil.
func NewParameterService(params store.ParameterStore, logger *slog.Logger) (ParameterService, error) {
	if params == nil {
		return nil, domain.NewValidationError("params", "cannot be nil", domain.ErrValidation)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &parameterServiceImpl{
		params: params,
		logger: logger.With(slog.String("component", "parameter_service")),
	}, nil
}

func (s *parameterServiceImpl) CreateParameter(ctx context.Context, name string, values []string) (*domain.Parameter, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	p, err := domain.NewParameter(name, values)
	if err != nil {
		return nil, err
	}
	if err := s.params.Create(ctx, p); err != nil {
		return nil, NewServiceError("create_parameter", "failed to save parameter", err)
	}

	log.Info("parameter created",
		slog.String("parameter_id", p.ID.String()),
		slog.String("name", p.Name),
		slog.Int("value_count", len(p.Values)))
	return p, nil
}

func (s *parameterServiceImpl) GetParameter(ctx context.Context, id uuid.UUID) (*domain.Parameter, error) {
	p, err := s.params.GetByID(ctx, id)
	if err != nil {
		return nil, NewServiceError("get_parameter", "failed to load parameter", err)
	}
	return p, nil
}

func (s *parameterServiceImpl) ListParameters(ctx context.Context) ([]*domain.Parameter, error) {
	list, err := s.params.List(ctx)
	if err != nil {
		return nil, NewServiceError("list_parameters", "failed to list parameters", err)
	}
	return list, nil
}

func (s *parameterServiceImpl) UpdateParameter(ctx context.Context, id uuid.UUID, name string, values []string) (*domain.Parameter, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	p, err := s.params.GetByID(ctx, id)
	if err != nil {
		return nil, NewServiceError("update_parameter", "failed to load parameter", err)
	}
	if err := p.Update(name, values); err != nil {
		return nil, err
	}
	if err := s.params.Update(ctx, p); err != nil {
		return nil, NewServiceError("update_parameter", "failed to save parameter", err)
	}

	log.Info("parameter updated", slog.String("parameter_id", p.ID.String()))
	return p, nil
}

func (s *parameterServiceImpl) DeleteParameter(ctx context.Context, id uuid.UUID) error {
	if err := s.params.Delete(ctx, id); err != nil {
		return NewServiceError("delete_parameter", "failed to delete parameter", err)
	}
	logger.FromContextOrDefault(ctx, s.logger).Info("parameter deleted",
		slog.String("parameter_id", id.String()))
	return nil
}
