package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/imagegen-api/internal/domain"
	"github.com/phrazzld/imagegen-api/internal/offload"
	"github.com/phrazzld/imagegen-api/internal/platform/memory"
	"github.com/phrazzld/imagegen-api/internal/sink"
	"github.com/phrazzld/imagegen-api/internal/store"
	"github.com/phrazzld/imagegen-api/internal/task"
)

type generationFixture struct {
	svc         GenerationService
	generations *memory.GenerationStore
	templates   *memory.TemplateStore
	params      *memory.ParameterStore
	manager     *task.Manager
	queue       *offload.MemoryQueue
	results     *sink.MemorySink
	template    *domain.Template
}

func newGenerationFixture(t *testing.T, runner task.Runner, opts ...GenerationOption) *generationFixture {
	t.Helper()
	ctx := context.Background()

	f := &generationFixture{
		generations: memory.NewGenerationStore(),
		templates:   memory.NewTemplateStore(),
		params:      memory.NewParameterStore(),
		queue:       offload.NewMemoryQueue(),
		results:     sink.NewMemorySink(0),
	}
	if runner == nil {
		runner = task.RunnerFunc(func(_ context.Context, prompt string, _ domain.ModelSelector) (string, error) {
			return "img:" + prompt, nil
		})
	}
	f.manager = task.NewManager(f.generations, runner, nil, nil)
	t.Cleanup(func() { _ = f.manager.Shutdown(context.Background()) })

	addParameter(t, f.params, "style", "noir", "bright")
	addParameter(t, f.params, "city", "Paris")

	tmpl, err := domain.NewTemplate("city", "A {{style}} photo of {{city}}")
	require.NoError(t, err)
	require.NoError(t, f.templates.Create(ctx, tmpl))
	f.template = tmpl

	svc, err := NewGenerationService(f.generations, f.templates, f.params, f.manager, nil, opts...)
	require.NoError(t, err)
	f.svc = svc
	return f
}

func (f *generationFixture) create(t *testing.T, rateLimit int) *domain.Generation {
	t.Helper()
	g, err := f.svc.CreateGeneration(context.Background(), CreateGenerationParams{
		Name:       "batch",
		TemplateID: f.template.ID,
		Model:      domain.ModelImagen4,
		RateLimit:  rateLimit,
	})
	require.NoError(t, err)
	return g
}

func (f *generationFixture) setStatus(t *testing.T, taskID uuid.UUID, genID uuid.UUID, status domain.TaskStatus) {
	t.Helper()
	ctx := context.Background()
	g, err := f.generations.GetByID(ctx, genID)
	require.NoError(t, err)
	tk := g.FindTask(taskID)
	require.NotNil(t, tk)
	switch status {
	case domain.TaskStatusProcessing:
		require.NoError(t, tk.MarkProcessing())
	case domain.TaskStatusCompleted:
		require.NoError(t, tk.Complete("img", time.Now().UTC()))
	case domain.TaskStatusFailed:
		require.NoError(t, tk.Fail("boom", time.Now().UTC()))
	}
	require.NoError(t, f.generations.UpdateTask(ctx, tk))
}

func TestNewGenerationService(t *testing.T) {
	t.Parallel()
	gs, ts, ps := memory.NewGenerationStore(), memory.NewTemplateStore(), memory.NewParameterStore()
	mgr := task.NewManager(gs, task.RunnerFunc(nil), nil, nil)
	defer func() { _ = mgr.Shutdown(context.Background()) }()

	_, err := NewGenerationService(nil, ts, ps, mgr, nil)
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = NewGenerationService(gs, nil, ps, mgr, nil)
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = NewGenerationService(gs, ts, nil, mgr, nil)
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = NewGenerationService(gs, ts, ps, nil, nil)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestGenerationService_Create(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newGenerationFixture(t, nil, WithDefaultRateLimit(120))

	g := f.create(t, 0)
	assert.Equal(t, 120, g.RateLimit)
	require.Len(t, g.Variants, 2)
	require.Len(t, g.Tasks, 2)
	assert.Equal(t, "A noir photo of Paris", g.Tasks[0].Prompt)
	assert.Equal(t, "A bright photo of Paris", g.Tasks[1].Prompt)
	for i, tk := range g.Tasks {
		assert.Equal(t, domain.TaskStatusPending, tk.Status)
		assert.Equal(t, g.Variants[i].ID, tk.VariantID)
	}

	// later parameter edits do not reach an existing generation
	style, err := f.params.GetByName(ctx, "style")
	require.NoError(t, err)
	require.NoError(t, style.Update("style", []string{"sepia"}))
	require.NoError(t, f.params.Update(ctx, style))

	stored, err := f.svc.GetGeneration(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, "noir", stored.Variants[0].Parameters["style"])

	_, err = f.svc.CreateGeneration(ctx, CreateGenerationParams{
		Name: "bad", TemplateID: f.template.ID, Model: "dall-e",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidModel)

	_, err = f.svc.CreateGeneration(ctx, CreateGenerationParams{
		Name: "bad", TemplateID: uuid.New(), Model: domain.ModelImagen4,
	})
	assert.ErrorIs(t, err, store.ErrTemplateNotFound)

	list, err := f.svc.ListGenerations(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestGenerationService_RunToCompletion(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newGenerationFixture(t, nil)
	g := f.create(t, 3_600_000)

	require.NoError(t, f.svc.StartGeneration(ctx, g.ID))
	require.NoError(t, f.manager.Wait(ctx, g.ID))

	progress, err := f.svc.GetProgress(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, task.StateIdle, progress.State)
	assert.Equal(t, 2, progress.Stats.Completed)
	require.Len(t, progress.Images, 2)
	assert.Equal(t, "img:A noir photo of Paris", progress.Images[0].ImageURL)

	assert.ErrorIs(t, f.svc.StartGeneration(ctx, g.ID), task.ErrNoPendingTasks)
	assert.ErrorIs(t, f.svc.StartGeneration(ctx, uuid.New()), store.ErrGenerationNotFound)

	state, err := f.svc.StopGeneration(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, task.StateIdle, state)
}

func TestGenerationService_TaskEdits(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newGenerationFixture(t, nil)

	addParameter(t, f.params, "time", "dawn", "noon")
	tmpl, err := domain.NewTemplate("timed", "{{style}} {{city}} {{time}}")
	require.NoError(t, err)
	require.NoError(t, f.templates.Create(ctx, tmpl))
	f.template = tmpl

	g := f.create(t, 60)
	require.Len(t, g.Tasks, 4)

	f.setStatus(t, g.Tasks[0].ID, g.ID, domain.TaskStatusProcessing)
	f.setStatus(t, g.Tasks[1].ID, g.ID, domain.TaskStatusCompleted)
	f.setStatus(t, g.Tasks[2].ID, g.ID, domain.TaskStatusFailed)

	_, err = f.svc.DeleteTask(ctx, g.ID, g.Tasks[0].ID)
	assert.ErrorIs(t, err, domain.ErrTaskProcessing)

	updated, err := f.svc.DeleteTask(ctx, g.ID, g.Tasks[3].ID)
	require.NoError(t, err)
	assert.Len(t, updated.Tasks, 3)

	_, err = f.svc.DeleteTask(ctx, g.ID, uuid.New())
	assert.ErrorIs(t, err, domain.ErrTaskNotFound)

	n, err := f.svc.ClearTasks(ctx, g.ID, domain.TaskStatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = f.svc.ClearTasks(ctx, g.ID, domain.TaskStatusPending)
	assert.ErrorIs(t, err, domain.ErrInvalidTaskStatus)

	n, err = f.svc.ClearTasks(ctx, g.ID, domain.TaskStatusFailed)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = f.svc.ClearAllTasks(ctx, g.ID, false)
	assert.ErrorIs(t, err, ErrConfirmationRequired)

	n, err = f.svc.ClearAllTasks(ctx, g.ID, true)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	cleared, err := f.svc.GetGeneration(ctx, g.ID)
	require.NoError(t, err)
	assert.Empty(t, cleared.Tasks)
	assert.Len(t, cleared.Variants, 4, "variants stay intact")
}

func TestGenerationService_OffloadDisabled(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newGenerationFixture(t, nil)
	g := f.create(t, 60)

	_, err := f.svc.EnqueueGeneration(ctx, g.ID)
	assert.ErrorIs(t, err, ErrOffloadDisabled)
	_, err = f.svc.CancelQueued(ctx, g.ID)
	assert.ErrorIs(t, err, ErrOffloadDisabled)
	_, err = f.svc.SyncResults(ctx, g.ID)
	assert.ErrorIs(t, err, ErrOffloadDisabled)
}

func newOffloadFixture(t *testing.T) *generationFixture {
	t.Helper()
	f := newGenerationFixture(t, nil)
	svc, err := NewGenerationService(f.generations, f.templates, f.params, f.manager, nil,
		WithOffload(f.queue, f.results))
	require.NoError(t, err)
	f.svc = svc
	return f
}

func TestGenerationService_Enqueue(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newOffloadFixture(t)
	g := f.create(t, 3600) // one task per second

	n, err := f.svc.EnqueueGeneration(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, f.queue.Len())

	stored, err := f.svc.GetGeneration(ctx, g.ID)
	require.NoError(t, err)
	for _, tk := range stored.Tasks {
		assert.NotEmpty(t, tk.MessageID)
		assert.Equal(t, domain.TaskStatusPending, tk.Status)
	}

	// queued tasks belong to the worker
	assert.ErrorIs(t, f.svc.StartGeneration(ctx, g.ID), task.ErrNoPendingTasks)
	_, err = f.svc.EnqueueGeneration(ctx, g.ID)
	assert.ErrorIs(t, err, task.ErrNoPendingTasks)

	progress, err := f.svc.GetProgress(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, progress.Queued)

	msgs, err := f.queue.Dequeue(ctx, time.Now().Add(time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, stored.Tasks[0].ID, msgs[0].TaskID)
	assert.Equal(t, "A noir photo of Paris", msgs[0].Prompt)
	assert.Equal(t, domain.ModelImagen4, msgs[0].Model)
	gap := msgs[1].DueAt.Sub(msgs[0].DueAt)
	assert.InDelta(t, float64(time.Second), float64(gap), float64(50*time.Millisecond))
}

func TestGenerationService_CancelQueued(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newOffloadFixture(t)
	g := f.create(t, 3600)

	_, err := f.svc.EnqueueGeneration(ctx, g.ID)
	require.NoError(t, err)

	// a worker already took the first message
	_, err = f.queue.Dequeue(ctx, time.Now(), 1)
	require.NoError(t, err)

	n, err := f.svc.CancelQueued(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Zero(t, f.queue.Len())

	stored, err := f.svc.GetGeneration(ctx, g.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, stored.Tasks[0].MessageID, "in-flight task keeps its message")
	assert.Empty(t, stored.Tasks[1].MessageID)

	// the cancelled task can run in process again
	require.NoError(t, f.svc.StartGeneration(ctx, g.ID))
	require.NoError(t, f.manager.Wait(ctx, g.ID))
}

func TestGenerationService_SyncResults(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newOffloadFixture(t)
	g := f.create(t, 3600)

	_, err := f.svc.EnqueueGeneration(ctx, g.ID)
	require.NoError(t, err)

	n, err := f.svc.SyncResults(ctx, g.ID)
	require.NoError(t, err)
	assert.Zero(t, n)

	now := time.Now().UTC()
	require.NoError(t, f.results.Put(ctx, sink.Result{
		TaskID: g.Tasks[0].ID, GenerationID: g.ID,
		Status: domain.TaskStatusCompleted, ImageURL: "data:image/png;base64,AAAA", CompletedAt: now,
	}))
	require.NoError(t, f.results.Put(ctx, sink.Result{
		TaskID: g.Tasks[1].ID, GenerationID: g.ID,
		Status: domain.TaskStatusFailed, Error: "quota exceeded", CompletedAt: now,
	}))

	n, err = f.svc.SyncResults(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	stored, err := f.svc.GetGeneration(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusCompleted, stored.Tasks[0].Status)
	assert.Equal(t, "data:image/png;base64,AAAA", stored.Tasks[0].Result)
	assert.Equal(t, domain.TaskStatusFailed, stored.Tasks[1].Status)
	assert.Equal(t, "quota exceeded", stored.Tasks[1].Error)
	assert.Zero(t, f.results.Len(), "results are consumed")

	n, err = f.svc.SyncResults(ctx, g.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

// saveFailingStore fails Save while failSave is set.
type saveFailingStore struct {
	store.GenerationStore
	failSave bool
}

func (s *saveFailingStore) Save(ctx context.Context, g *domain.Generation) error {
	if s.failSave {
		return errors.New("connection reset")
	}
	return s.GenerationStore.Save(ctx, g)
}

func TestGenerationService_SyncResultsKeepsResultsWhenSaveFails(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newOffloadFixture(t)
	g := f.create(t, 3600)

	_, err := f.svc.EnqueueGeneration(ctx, g.ID)
	require.NoError(t, err)

	flaky := &saveFailingStore{GenerationStore: f.generations, failSave: true}
	manager := task.NewManager(flaky, task.RunnerFunc(func(context.Context, string, domain.ModelSelector) (string, error) {
		return "ok", nil
	}), nil, nil)
	t.Cleanup(func() { _ = manager.Shutdown(context.Background()) })
	svc, err := NewGenerationService(flaky, f.templates, f.params, manager, nil, WithOffload(f.queue, f.results))
	require.NoError(t, err)

	require.NoError(t, f.results.Put(ctx, sink.Result{
		TaskID: g.Tasks[0].ID, GenerationID: g.ID,
		Status: domain.TaskStatusCompleted, ImageURL: "data:image/png;base64,AAAA", CompletedAt: time.Now().UTC(),
	}))

	_, err = svc.SyncResults(ctx, g.ID)
	require.Error(t, err)
	assert.Equal(t, 1, f.results.Len(), "result goes back to the sink")

	stored, err := f.generations.GetByID(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusPending, stored.Tasks[0].Status)

	flaky.failSave = false
	n, err := svc.SyncResults(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Zero(t, f.results.Len())
}

func TestGenerationService_DeleteGeneration(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newOffloadFixture(t)
	g := f.create(t, 3600)

	_, err := f.svc.EnqueueGeneration(ctx, g.ID)
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteGeneration(ctx, g.ID))
	assert.Zero(t, f.queue.Len(), "queued messages are withdrawn")

	_, err = f.svc.GetGeneration(ctx, g.ID)
	assert.ErrorIs(t, err, store.ErrGenerationNotFound)
	assert.ErrorIs(t, f.svc.DeleteGeneration(ctx, g.ID), store.ErrGenerationNotFound)
}

func TestGenerationService_EnqueueWhileRunning(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	release := make(chan struct{})
	runner := task.RunnerFunc(func(ctx context.Context, _ string, _ domain.ModelSelector) (string, error) {
		select {
		case <-release:
			return "img", nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	})
	f := newGenerationFixture(t, runner)
	svc, err := NewGenerationService(f.generations, f.templates, f.params, f.manager, nil,
		WithOffload(f.queue, f.results))
	require.NoError(t, err)

	g := f.create(t, 3_600_000)
	require.NoError(t, svc.StartGeneration(ctx, g.ID))

	_, err = svc.EnqueueGeneration(ctx, g.ID)
	assert.True(t, errors.Is(err, task.ErrAlreadyRunning))

	close(release)
	require.NoError(t, f.manager.Wait(ctx, g.ID))
}
