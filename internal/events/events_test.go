package events

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/phrazzld/imagegen-api/internal/domain"
)

func TestNewTaskSettledEvent(t *testing.T) {
	completedAt := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	task := &domain.GenerationTask{
		ID:           uuid.New(),
		GenerationID: uuid.New(),
		Status:       domain.TaskStatusCompleted,
		Result:       "data:image/png;base64,AAAA",
		CompletedAt:  &completedAt,
	}

	event := NewTaskSettledEvent(task)

	assert.NotEqual(t, uuid.Nil, event.ID)
	assert.Equal(t, task.ID, event.TaskID)
	assert.Equal(t, task.GenerationID, event.GenerationID)
	assert.Equal(t, domain.TaskStatusCompleted, event.Status)
	assert.Equal(t, task.Result, event.Result)
	assert.Empty(t, event.Error)
	assert.Equal(t, completedAt, event.SettledAt)
}

func TestNewTaskSettledEvent_NoCompletionTime(t *testing.T) {
	task := &domain.GenerationTask{
		ID:     uuid.New(),
		Status: domain.TaskStatusFailed,
		Error:  "quota exceeded",
	}

	event := NewTaskSettledEvent(task)

	assert.Equal(t, "quota exceeded", event.Error)
	assert.WithinDuration(t, time.Now(), event.SettledAt, 2*time.Second)
}

// MockEventHandler implements the EventHandler interface for testing
type MockEventHandler struct {
	// The last event received by this handler
	LastEvent *TaskSettledEvent
	// Error to return from HandleEvent
	HandlerError error
	// Count of events handled
	HandledCount int
}

// HandleEvent implements the EventHandler interface
func (h *MockEventHandler) HandleEvent(ctx context.Context, event *TaskSettledEvent) error {
	h.LastEvent = event
	h.HandledCount++
	return h.HandlerError
}

func TestEventHandlerFunc(t *testing.T) {
	var got *TaskSettledEvent
	handler := EventHandlerFunc(func(_ context.Context, e *TaskSettledEvent) error {
		got = e
		return nil
	})

	event := &TaskSettledEvent{ID: uuid.New()}
	assert.NoError(t, handler.HandleEvent(context.Background(), event))
	assert.Same(t, event, got)
}
