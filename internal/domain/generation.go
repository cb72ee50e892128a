package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// ModelSelector names the image model a generation runs against.
type ModelSelector string

const (
	// ModelImagen4 selects the Imagen 4 image model.
	ModelImagen4 ModelSelector = "imagen-4"
	// ModelNanoBanana selects the Gemini flash image model.
	ModelNanoBanana ModelSelector = "nano-banana"
)

// IsValid reports whether the selector names a supported model.
func (m ModelSelector) IsValid() bool {
	switch m {
	case ModelImagen4, ModelNanoBanana:
		return true
	default:
		return false
	}
}

// TaskStatus represents the current state of a generation task.
type TaskStatus string

const (
	// TaskStatusPending indicates the task is waiting to be processed.
	TaskStatusPending TaskStatus = "pending"
	// TaskStatusProcessing indicates the task is currently being executed.
	TaskStatusProcessing TaskStatus = "processing"
	// TaskStatusCompleted indicates the task finished and holds a result.
	TaskStatusCompleted TaskStatus = "completed"
	// TaskStatusFailed indicates the task failed and holds an error message.
	TaskStatusFailed TaskStatus = "failed"
)

// IsValid reports whether s is one of the known statuses.
func (s TaskStatus) IsValid() bool {
	switch s {
	case TaskStatusPending, TaskStatusProcessing, TaskStatusCompleted, TaskStatusFailed:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether s is completed or failed.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// GenerationTask is one unit of work: a single resolved prompt to be sent to
// the image service.
//
// Status only moves forward: pending -> processing -> completed|failed.
// Result is set only when completed; Error only when failed. CompletedAt is
// set exactly when the status becomes terminal. RetryCount counts the calls
// made beyond the first: retries after transient failures plus reruns after
// an interrupted run.
type GenerationTask struct {
	ID           uuid.UUID  `json:"id"`
	GenerationID uuid.UUID  `json:"generation_id"`
	VariantID    string     `json:"variant_id"`
	Prompt       string     `json:"prompt"`
	Status       TaskStatus `json:"status"`
	Result       string     `json:"result,omitempty"`
	Error        string     `json:"error,omitempty"`
	MessageID    string     `json:"message_id,omitempty"`
	RetryCount   int        `json:"retry_count"`
	CreatedAt    time.Time  `json:"created_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// MarkProcessing moves a pending task to processing.
func (t *GenerationTask) MarkProcessing() error {
	if t.Status != TaskStatusPending {
		return ErrInvalidTransition
	}
	t.Status = TaskStatusProcessing
	return nil
}

// Complete records a successful result.
// Offloaded tasks settle straight from pending, so both states are accepted.
func (t *GenerationTask) Complete(result string, at time.Time) error {
	if t.Status.IsTerminal() {
		return ErrInvalidTransition
	}
	t.Status = TaskStatusCompleted
	t.Result = result
	t.Error = ""
	t.CompletedAt = &at
	return nil
}

// Fail records a failure message.
func (t *GenerationTask) Fail(message string, at time.Time) error {
	if t.Status.IsTerminal() {
		return ErrInvalidTransition
	}
	t.Status = TaskStatusFailed
	t.Error = message
	t.Result = ""
	t.CompletedAt = &at
	return nil
}

// RecordAttempts adds the retries behind attempts calls to RetryCount.
func (t *GenerationTask) RecordAttempts(attempts int) {
	if attempts > 1 {
		t.RetryCount += attempts - 1
	}
}

// ResetToPending returns an interrupted processing task to the queue.
func (t *GenerationTask) ResetToPending() error {
	if t.Status != TaskStatusProcessing {
		return ErrInvalidTransition
	}
	t.Status = TaskStatusPending
	t.RetryCount++
	return nil
}

// Generation is a batch job: the variants of one template captured at
// creation time, plus one task per variant and a rate limit in requests per
// hour.
type Generation struct {
	ID         uuid.UUID         `json:"id"`
	Name       string            `json:"name"`
	TemplateID uuid.UUID         `json:"template_id"`
	Model      ModelSelector     `json:"model"`
	RateLimit  int               `json:"rate_limit"`
	Variants   []Variant         `json:"variants"`
	Tasks      []*GenerationTask `json:"tasks"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// NewGeneration creates a Generation owning the given variant snapshot.
// Tasks are attached separately so callers control how they are materialized.
func NewGeneration(name string, templateID uuid.UUID, model ModelSelector, rateLimit int, variants []Variant) (*Generation, error) {
	now := time.Now().UTC()
	g := &Generation{
		ID:         uuid.New(),
		Name:       name,
		TemplateID: templateID,
		Model:      model,
		RateLimit:  rateLimit,
		Variants:   variants,
		Tasks:      []*GenerationTask{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := g.Validate(); err != nil {
		return nil, err
	}

	return g, nil
}

// Validate checks the generation's identifying fields, model and rate limit.
func (g *Generation) Validate() error {
	if g.ID == uuid.Nil {
		return NewValidationError("id", "cannot be empty", ErrInvalidID)
	}

	if strings.TrimSpace(g.Name) == "" {
		return NewValidationError("name", "cannot be empty", ErrEmptyName)
	}

	if g.TemplateID == uuid.Nil {
		return NewValidationError("template_id", "cannot be empty", ErrInvalidID)
	}

	if !g.Model.IsValid() {
		return NewValidationError("model", "must be imagen-4 or nano-banana", ErrInvalidModel)
	}

	if g.RateLimit <= 0 {
		return NewValidationError("rate_limit", "must be greater than zero", ErrInvalidRateLimit)
	}

	return nil
}

// PacingInterval is the minimum spacing between task starts: one hour
// divided by the rate limit.
func (g *Generation) PacingInterval() time.Duration {
	if g.RateLimit <= 0 {
		return time.Hour
	}
	return time.Hour / time.Duration(g.RateLimit)
}

// NextPending returns the first pending task in list order that has not
// been handed to the offload queue, or nil.
func (g *Generation) NextPending() *GenerationTask {
	for _, t := range g.Tasks {
		if t.Status == TaskStatusPending && t.MessageID == "" {
			return t
		}
	}
	return nil
}

// FindTask returns the task with the given ID, or nil.
func (g *Generation) FindTask(id uuid.UUID) *GenerationTask {
	for _, t := range g.Tasks {
		if t.ID == id {
			return t
		}
	}
	return nil
}

// GenerationStats summarizes task progress.
type GenerationStats struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
}

// Stats counts tasks per status.
func (g *Generation) Stats() GenerationStats {
	stats := GenerationStats{Total: len(g.Tasks)}
	for _, t := range g.Tasks {
		switch t.Status {
		case TaskStatusPending:
			stats.Pending++
		case TaskStatusProcessing:
			stats.Processing++
		case TaskStatusCompleted:
			stats.Completed++
		case TaskStatusFailed:
			stats.Failed++
		}
	}
	return stats
}

// RemoveTask deletes a single task. A processing task cannot be removed.
func (g *Generation) RemoveTask(id uuid.UUID) error {
	for i, t := range g.Tasks {
		if t.ID != id {
			continue
		}
		if t.Status == TaskStatusProcessing {
			return ErrTaskProcessing
		}
		g.Tasks = append(g.Tasks[:i], g.Tasks[i+1:]...)
		g.UpdatedAt = time.Now().UTC()
		return nil
	}
	return ErrTaskNotFound
}

// ClearTasks removes every task in the given terminal status and returns
// the IDs removed.
func (g *Generation) ClearTasks(status TaskStatus) ([]uuid.UUID, error) {
	if !status.IsTerminal() {
		return nil, ErrInvalidTaskStatus
	}

	removed := make([]uuid.UUID, 0)
	kept := g.Tasks[:0]
	for _, t := range g.Tasks {
		if t.Status == status {
			removed = append(removed, t.ID)
			continue
		}
		kept = append(kept, t)
	}
	g.Tasks = kept
	if len(removed) > 0 {
		g.UpdatedAt = time.Now().UTC()
	}
	return removed, nil
}

// ClearAllTasks empties the task list. Variants are left intact.
func (g *Generation) ClearAllTasks() []uuid.UUID {
	removed := make([]uuid.UUID, 0, len(g.Tasks))
	for _, t := range g.Tasks {
		removed = append(removed, t.ID)
	}
	g.Tasks = []*GenerationTask{}
	g.UpdatedAt = time.Now().UTC()
	return removed
}
