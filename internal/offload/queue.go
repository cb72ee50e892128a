package offload

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/phrazzld/imagegen-api/internal/domain"
)

// Common errors returned by queues
var (
	ErrMessageNotFound = errors.New("queued message not found")
	ErrInvalidMessage  = errors.New("invalid queue message")
)

// Message asks a worker to run one task.
type Message struct {
	ID           string               `json:"id"`
	GenerationID uuid.UUID            `json:"generation_id"`
	TaskID       uuid.UUID            `json:"task_id"`
	Prompt       string               `json:"prompt"`
	Model        domain.ModelSelector `json:"model"`
	EnqueuedAt   time.Time            `json:"enqueued_at"`
	DueAt        time.Time            `json:"due_at"`
}

// Validate checks the fields a worker needs.
func (m Message) Validate() error {
	if m.GenerationID == uuid.Nil || m.TaskID == uuid.Nil {
		return fmt.Errorf("%w: generation_id and task_id are required", ErrInvalidMessage)
	}
	if m.Prompt == "" {
		return fmt.Errorf("%w: prompt is required", ErrInvalidMessage)
	}
	if !m.Model.IsValid() {
		return fmt.Errorf("%w: unknown model %q", ErrInvalidMessage, m.Model)
	}
	return nil
}

// NewMessage builds a message for task, due after delay.
func NewMessage(task *domain.GenerationTask, model domain.ModelSelector, delay time.Duration) Message {
	now := time.Now().UTC()
	return Message{
		ID:           uuid.NewString(),
		GenerationID: task.GenerationID,
		TaskID:       task.ID,
		Prompt:       task.Prompt,
		Model:        model,
		EnqueuedAt:   now,
		DueAt:        now.Add(delay),
	}
}

// Queue is a delayed message queue.
type Queue interface {
	// Enqueue stores msg until its DueAt and returns its ID.
	Enqueue(ctx context.Context, msg Message) (string, error)

	// Cancel removes a message that has not been handed out yet.
	// Returns ErrMessageNotFound when it is no longer queued.
	Cancel(ctx context.Context, messageID string) error

	// Dequeue removes and returns up to max messages due at or before now,
	// earliest first.
	Dequeue(ctx context.Context, now time.Time, max int) ([]Message, error)
}

// MemoryQueue is an in-process Queue.
type MemoryQueue struct {
	mu       sync.Mutex
	messages map[string]Message
}

var _ Queue = (*MemoryQueue)(nil)

// NewMemoryQueue creates an empty queue.
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{messages: make(map[string]Message)}
}

// Enqueue implements Queue.
func (q *MemoryQueue) Enqueue(_ context.Context, msg Message) (string, error) {
	if err := msg.Validate(); err != nil {
		return "", err
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	q.messages[msg.ID] = msg
	return msg.ID, nil
}

// Cancel implements Queue.
func (q *MemoryQueue) Cancel(_ context.Context, messageID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.messages[messageID]; !ok {
		return ErrMessageNotFound
	}
	delete(q.messages, messageID)
	return nil
}

// Dequeue implements Queue.
func (q *MemoryQueue) Dequeue(_ context.Context, now time.Time, max int) ([]Message, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	due := make([]Message, 0)
	for _, m := range q.messages {
		if !m.DueAt.After(now) {
			due = append(due, m)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].DueAt.Before(due[j].DueAt) })
	if max > 0 && len(due) > max {
		due = due[:max]
	}
	for _, m := range due {
		delete(q.messages, m.ID)
	}
	return due, nil
}

// Len reports how many messages are queued.
func (q *MemoryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.messages)
}
