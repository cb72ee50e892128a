package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/phrazzld/imagegen-api/internal/domain"
)

// TemplateStore defines the interface for template persistence.
type TemplateStore interface {
	// Create saves a new template.
	Create(ctx context.Context, t *domain.Template) error

	// GetByID retrieves a template by its unique ID.
	// Returns ErrTemplateNotFound if the template does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Template, error)

	// List returns all templates, newest first.
	List(ctx context.Context) ([]*domain.Template, error)

	// Update saves changes to an existing template.
	// Returns ErrTemplateNotFound if the template does not exist.
	Update(ctx context.Context, t *domain.Template) error

	// Delete removes a template. Generations created from it keep their
	// variant snapshot.
	// Returns ErrTemplateNotFound if the template does not exist.
	Delete(ctx context.Context, id uuid.UUID) error
}
