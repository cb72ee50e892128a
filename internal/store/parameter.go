package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/phrazzld/imagegen-api/internal/domain"
)

// ParameterStore defines the interface for parameter persistence.
type ParameterStore interface {
	// Create saves a new parameter.
	// Returns ErrParameterNameExists if the name is taken.
	Create(ctx context.Context, p *domain.Parameter) error

	// GetByID retrieves a parameter by its unique ID.
	// Returns ErrParameterNotFound if the parameter does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Parameter, error)

	// GetByName retrieves a parameter by its name.
	// Returns ErrParameterNotFound if the parameter does not exist.
	GetByName(ctx context.Context, name string) (*domain.Parameter, error)

	// List returns all parameters ordered by name.
	List(ctx context.Context) ([]*domain.Parameter, error)

	// Update saves changes to an existing parameter.
	// Returns ErrParameterNotFound or ErrParameterNameExists.
	Update(ctx context.Context, p *domain.Parameter) error

	// Delete removes a parameter.
	// Returns ErrParameterNotFound if the parameter does not exist.
	Delete(ctx context.Context, id uuid.UUID) error
}
