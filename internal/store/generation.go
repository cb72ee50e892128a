package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/phrazzld/imagegen-api/internal/domain"
)

// GenerationStore defines the interface for generation persistence.
//
// A generation is always read and written together with its ordered task
// list. Callers serialize writes per generation (see task.Manager); the
// store only guarantees that each call is atomic.
type GenerationStore interface {
	// Create saves a new generation together with its tasks.
	Create(ctx context.Context, g *domain.Generation) error

	// GetByID retrieves a generation with its tasks in list order.
	// Returns ErrGenerationNotFound if the generation does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Generation, error)

	// List returns all generations with their tasks, newest first.
	List(ctx context.Context) ([]*domain.Generation, error)

	// Save replaces the stored generation and its task list with g.
	// Tasks absent from g are deleted; list order follows g.Tasks.
	// Returns ErrGenerationNotFound if the generation does not exist.
	Save(ctx context.Context, g *domain.Generation) error

	// UpdateTask writes the mutable fields of a single task.
	// Returns ErrTaskNotFound if the task no longer exists.
	UpdateTask(ctx context.Context, task *domain.GenerationTask) error

	// Delete removes a generation and its tasks.
	// Returns ErrGenerationNotFound if the generation does not exist.
	Delete(ctx context.Context, id uuid.UUID) error

	// ResetProcessingTasks moves every task left in processing back to
	// pending and returns how many were reset.
	ResetProcessingTasks(ctx context.Context) (int, error)
}
