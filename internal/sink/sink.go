package sink

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/phrazzld/imagegen-api/internal/domain"
)

// ErrInvalidResult is returned by Put for results that fail Validate.
var ErrInvalidResult = errors.New("invalid task result")

// Result is the outcome of one task, as delivered by whoever executed it.
type Result struct {
	TaskID       uuid.UUID         `json:"task_id"`
	GenerationID uuid.UUID         `json:"generation_id"`
	Status       domain.TaskStatus `json:"status"`
	ImageURL     string            `json:"image_url,omitempty"`
	Error        string            `json:"error,omitempty"`
	Attempts     int               `json:"attempts,omitempty"`
	CompletedAt  time.Time         `json:"completed_at"`
}

// Validate checks that the result identifies a task and carries a
// terminal status.
func (r Result) Validate() error {
	if r.TaskID == uuid.Nil {
		return fmt.Errorf("%w: task_id is required", ErrInvalidResult)
	}
	if r.GenerationID == uuid.Nil {
		return fmt.Errorf("%w: generation_id is required", ErrInvalidResult)
	}
	if !r.Status.IsTerminal() {
		return fmt.Errorf("%w: status must be completed or failed", ErrInvalidResult)
	}
	return nil
}

// ResultSink stores task results until they are taken.
type ResultSink interface {
	// Put stores r, replacing any unconsumed result for the same task.
	Put(ctx context.Context, r Result) error

	// Take returns the unconsumed results among taskIDs that belong to
	// generationID and removes them. Missing tasks are simply absent from
	// the returned map.
	Take(ctx context.Context, generationID uuid.UUID, taskIDs []uuid.UUID) (map[uuid.UUID]Result, error)
}

// Apply settles task according to r. Tasks already in a terminal status are
// left alone and reported as not applied.
func Apply(task *domain.GenerationTask, r Result) (bool, error) {
	if task.Status.IsTerminal() {
		return false, nil
	}

	at := r.CompletedAt
	if at.IsZero() {
		at = time.Now().UTC()
	}

	switch r.Status {
	case domain.TaskStatusCompleted:
		task.RecordAttempts(r.Attempts)
		return true, task.Complete(r.ImageURL, at)
	case domain.TaskStatusFailed:
		task.RecordAttempts(r.Attempts)
		return true, task.Fail(r.Error, at)
	default:
		return false, fmt.Errorf("%w: status %q", ErrInvalidResult, r.Status)
	}
}
