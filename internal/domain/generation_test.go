package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func newTestGeneration(t *testing.T, statuses ...TaskStatus) *Generation {
	t.Helper()

	g, err := NewGeneration("batch", uuid.New(), ModelImagen4, 60, []Variant{{ID: "v-0"}})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	for i, s := range statuses {
		g.Tasks = append(g.Tasks, &GenerationTask{
			ID:           uuid.New(),
			GenerationID: g.ID,
			VariantID:    "v",
			Prompt:       "prompt",
			Status:       s,
			CreatedAt:    time.Now().Add(time.Duration(i) * time.Millisecond),
		})
	}
	return g
}

func TestNewGeneration(t *testing.T) {
	t.Parallel()

	templateID := uuid.New()
	g, err := NewGeneration("batch", templateID, ModelNanoBanana, 120, nil)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if g.ID == uuid.Nil || g.TemplateID != templateID {
		t.Errorf("Unexpected generation %+v", g)
	}
	if g.Tasks == nil {
		t.Error("Expected non-nil task list")
	}
	if got := g.PacingInterval(); got != 30*time.Second {
		t.Errorf("Expected 30s pacing for 120/h, got %v", got)
	}
}

func TestGenerationValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		genName    string
		templateID uuid.UUID
		model      ModelSelector
		rateLimit  int
		wantErr    error
	}{
		{"empty name", " ", uuid.New(), ModelImagen4, 10, ErrEmptyName},
		{"nil template", "n", uuid.Nil, ModelImagen4, 10, ErrInvalidID},
		{"bad model", "n", uuid.New(), ModelSelector("dall-e"), 10, ErrInvalidModel},
		{"zero rate", "n", uuid.New(), ModelImagen4, 0, ErrInvalidRateLimit},
		{"negative rate", "n", uuid.New(), ModelImagen4, -5, ErrInvalidRateLimit},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewGeneration(tc.genName, tc.templateID, tc.model, tc.rateLimit, nil)
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("Expected %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestTaskTransitions(t *testing.T) {
	t.Parallel()

	now := time.Now()
	task := &GenerationTask{Status: TaskStatusPending}

	if err := task.ResetToPending(); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Expected ErrInvalidTransition resetting a pending task, got %v", err)
	}

	if err := task.MarkProcessing(); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if err := task.MarkProcessing(); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Expected ErrInvalidTransition, got %v", err)
	}

	if err := task.Complete("data:image/png;base64,AAAA", now); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if task.Status != TaskStatusCompleted || task.Result == "" || task.Error != "" {
		t.Errorf("Unexpected completed task %+v", task)
	}
	if task.CompletedAt == nil || !task.CompletedAt.Equal(now) {
		t.Error("Expected CompletedAt to be set")
	}

	if err := task.Fail("late", now); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Expected terminal task to reject Fail, got %v", err)
	}

	failed := &GenerationTask{Status: TaskStatusProcessing}
	if err := failed.Fail("quota exceeded", now); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if failed.Status != TaskStatusFailed || failed.Error != "quota exceeded" || failed.Result != "" {
		t.Errorf("Unexpected failed task %+v", failed)
	}

	// Offloaded results settle a task that never passed through processing.
	offloaded := &GenerationTask{Status: TaskStatusPending}
	if err := offloaded.Complete("data:image/png;base64,BBBB", now); err != nil {
		t.Errorf("Expected pending task to accept Complete, got %v", err)
	}

	interrupted := &GenerationTask{Status: TaskStatusProcessing}
	if err := interrupted.ResetToPending(); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if interrupted.Status != TaskStatusPending || interrupted.RetryCount != 1 {
		t.Errorf("Unexpected reset task %+v", interrupted)
	}
}

func TestTaskRecordAttempts(t *testing.T) {
	t.Parallel()

	task := &GenerationTask{Status: TaskStatusProcessing}
	task.RecordAttempts(1)
	if task.RetryCount != 0 {
		t.Errorf("Expected a single attempt to record no retries, got %d", task.RetryCount)
	}
	task.RecordAttempts(0)
	if task.RetryCount != 0 {
		t.Errorf("Expected zero attempts to record no retries, got %d", task.RetryCount)
	}

	task.RecordAttempts(3)
	if err := task.ResetToPending(); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if task.RetryCount != 3 {
		t.Errorf("Expected two retries plus one rerun, got %d", task.RetryCount)
	}
}

func TestGenerationNextPendingAndStats(t *testing.T) {
	t.Parallel()

	g := newTestGeneration(t, TaskStatusCompleted, TaskStatusFailed, TaskStatusPending, TaskStatusPending)

	next := g.NextPending()
	if next == nil || next != g.Tasks[2] {
		t.Fatalf("Expected the first pending task in list order, got %+v", next)
	}

	stats := g.Stats()
	want := GenerationStats{Total: 4, Pending: 2, Completed: 1, Failed: 1}
	if stats != want {
		t.Errorf("Expected %+v, got %+v", want, stats)
	}

	if g.FindTask(g.Tasks[1].ID) != g.Tasks[1] {
		t.Error("Expected FindTask to locate task")
	}
	if g.FindTask(uuid.New()) != nil {
		t.Error("Expected FindTask to return nil for unknown id")
	}

	g.Tasks[2].MessageID = "queued"
	if next := g.NextPending(); next != g.Tasks[3] {
		t.Errorf("Expected queued task to be skipped, got %+v", next)
	}

	done := newTestGeneration(t, TaskStatusCompleted)
	if done.NextPending() != nil {
		t.Error("Expected no pending task")
	}
}

func TestGenerationRemoveTask(t *testing.T) {
	t.Parallel()

	g := newTestGeneration(t, TaskStatusPending, TaskStatusProcessing, TaskStatusFailed)
	processingID := g.Tasks[1].ID
	failedID := g.Tasks[2].ID

	if err := g.RemoveTask(processingID); !errors.Is(err, ErrTaskProcessing) {
		t.Errorf("Expected ErrTaskProcessing, got %v", err)
	}
	if err := g.RemoveTask(failedID); err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if err := g.RemoveTask(uuid.New()); !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("Expected ErrTaskNotFound, got %v", err)
	}
	if len(g.Tasks) != 2 {
		t.Errorf("Expected 2 tasks left, got %d", len(g.Tasks))
	}
}

func TestGenerationClearTasks(t *testing.T) {
	t.Parallel()

	g := newTestGeneration(t, TaskStatusCompleted, TaskStatusPending, TaskStatusCompleted, TaskStatusFailed)
	pendingID := g.Tasks[1].ID

	removed, err := g.ClearTasks(TaskStatusCompleted)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(removed) != 2 {
		t.Errorf("Expected 2 removed, got %d", len(removed))
	}
	if len(g.Tasks) != 2 || g.Tasks[0].ID != pendingID {
		t.Errorf("Expected pending and failed tasks to remain in order, got %+v", g.Tasks)
	}

	if _, err := g.ClearTasks(TaskStatusPending); !errors.Is(err, ErrInvalidTaskStatus) {
		t.Errorf("Expected ErrInvalidTaskStatus, got %v", err)
	}

	removedAll := g.ClearAllTasks()
	if len(removedAll) != 2 || len(g.Tasks) != 0 {
		t.Errorf("Expected all tasks removed, got %d left", len(g.Tasks))
	}
	if len(g.Variants) != 1 {
		t.Error("Expected variants to be left intact")
	}
}
