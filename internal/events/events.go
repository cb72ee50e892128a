package events

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/phrazzld/imagegen-api/internal/domain"
)

// TaskSettledEvent reports that a task reached completed or failed.
type TaskSettledEvent struct {
	// ID is a unique identifier for this event
	ID uuid.UUID `json:"id"`

	GenerationID uuid.UUID         `json:"generation_id"`
	TaskID       uuid.UUID         `json:"task_id"`
	Status       domain.TaskStatus `json:"status"`

	// Result holds the image reference when Status is completed
	Result string `json:"result,omitempty"`

	// Error holds the failure message when Status is failed
	Error string `json:"error,omitempty"`

	SettledAt time.Time `json:"settled_at"`
}

// NewTaskSettledEvent builds an event from a task in a terminal status.
func NewTaskSettledEvent(task *domain.GenerationTask) *TaskSettledEvent {
	settledAt := time.Now().UTC()
	if task.CompletedAt != nil {
		settledAt = *task.CompletedAt
	}
	return &TaskSettledEvent{
		ID:           uuid.New(),
		GenerationID: task.GenerationID,
		TaskID:       task.ID,
		Status:       task.Status,
		Result:       task.Result,
		Error:        task.Error,
		SettledAt:    settledAt,
	}
}

// EventHandler defines an interface for components that can handle events.
type EventHandler interface {
	// HandleEvent processes the given event within the provided context.
	// Returns an error if the event cannot be handled successfully.
	HandleEvent(ctx context.Context, event *TaskSettledEvent) error
}

// EventHandlerFunc adapts a function to EventHandler.
type EventHandlerFunc func(ctx context.Context, event *TaskSettledEvent) error

// HandleEvent implements EventHandler.
func (f EventHandlerFunc) HandleEvent(ctx context.Context, event *TaskSettledEvent) error {
	return f(ctx, event)
}

// EventEmitter defines an interface for components that can emit events.
// This allows the scheduler to publish outcomes without knowing the handlers.
type EventEmitter interface {
	// EmitEvent publishes the given event to all registered handlers.
	EmitEvent(ctx context.Context, event *TaskSettledEvent) error
}
