package task

import (
	"time"

	"github.com/google/uuid"

	"github.com/phrazzld/imagegen-api/internal/domain"
)

// Materialize creates one pending task per variant, in variant order.
func Materialize(generationID uuid.UUID, variants []domain.Variant) []*domain.GenerationTask {
	now := time.Now().UTC()
	tasks := make([]*domain.GenerationTask, 0, len(variants))
	for _, v := range variants {
		tasks = append(tasks, &domain.GenerationTask{
			ID:           uuid.New(),
			GenerationID: generationID,
			VariantID:    v.ID,
			Prompt:       v.Content,
			Status:       domain.TaskStatusPending,
			RetryCount:   0,
			CreatedAt:    now,
		})
	}
	return tasks
}
