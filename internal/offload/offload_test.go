package offload

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/imagegen-api/internal/domain"
	"github.com/phrazzld/imagegen-api/internal/generation"
	"github.com/phrazzld/imagegen-api/internal/retry"
	"github.com/phrazzld/imagegen-api/internal/sink"
	"github.com/phrazzld/imagegen-api/internal/task"
)

func newTask(prompt string) *domain.GenerationTask {
	return &domain.GenerationTask{
		ID:           uuid.New(),
		GenerationID: uuid.New(),
		VariantID:    "v-0",
		Prompt:       prompt,
		Status:       domain.TaskStatusPending,
	}
}

func TestMessageValidate(t *testing.T) {
	t.Parallel()

	msg := NewMessage(newTask("a cat"), domain.ModelImagen4, time.Minute)
	require.NoError(t, msg.Validate())
	assert.Equal(t, time.Minute, msg.DueAt.Sub(msg.EnqueuedAt))
	assert.NotEmpty(t, msg.ID)

	noPrompt := msg
	noPrompt.Prompt = ""
	assert.ErrorIs(t, noPrompt.Validate(), ErrInvalidMessage)

	badModel := msg
	badModel.Model = "dall-e"
	assert.ErrorIs(t, badModel.Validate(), ErrInvalidMessage)

	noTask := msg
	noTask.TaskID = uuid.Nil
	assert.ErrorIs(t, noTask.Validate(), ErrInvalidMessage)
}

func TestMemoryQueue(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	q := NewMemoryQueue()

	late := NewMessage(newTask("late"), domain.ModelImagen4, 2*time.Second)
	early := NewMessage(newTask("early"), domain.ModelImagen4, time.Second)
	now := NewMessage(newTask("now"), domain.ModelImagen4, 0)

	for _, m := range []Message{late, early, now} {
		id, err := q.Enqueue(ctx, m)
		require.NoError(t, err)
		assert.Equal(t, m.ID, id)
	}
	assert.Equal(t, 3, q.Len())

	_, err := q.Enqueue(ctx, Message{})
	assert.ErrorIs(t, err, ErrInvalidMessage)

	due, err := q.Dequeue(ctx, time.Now().UTC(), 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, now.ID, due[0].ID)

	require.NoError(t, q.Cancel(ctx, late.ID))
	assert.ErrorIs(t, q.Cancel(ctx, late.ID), ErrMessageNotFound)

	due, err = q.Dequeue(ctx, time.Now().Add(time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, early.ID, due[0].ID)
	assert.Zero(t, q.Len())
}

func TestMemoryQueue_DequeueLimit(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	q := NewMemoryQueue()

	var ids []string
	for i := 0; i < 5; i++ {
		m := NewMessage(newTask("p"), domain.ModelNanoBanana, time.Duration(i)*time.Millisecond)
		_, err := q.Enqueue(ctx, m)
		require.NoError(t, err)
		ids = append(ids, m.ID)
	}

	due, err := q.Dequeue(ctx, time.Now().Add(time.Second), 2)
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, ids[0], due[0].ID, "earliest first")
	assert.Equal(t, ids[1], due[1].ID)
	assert.Equal(t, 3, q.Len())
}

func TestWorker_Process(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	runner := task.RunnerFunc(func(_ context.Context, prompt string, _ domain.ModelSelector) (string, error) {
		if prompt == "bad" {
			return "", errors.New("model rejected prompt")
		}
		if prompt == "boom" {
			panic("kaboom")
		}
		return "data:image/png;base64,AAAA", nil
	})

	rs := sink.NewMemorySink(0)
	w := NewWorker(NewMemoryQueue(), runner, rs, DefaultWorkerConfig(), nil)

	good := NewMessage(newTask("good"), domain.ModelImagen4, 0)
	bad := NewMessage(newTask("bad"), domain.ModelImagen4, 0)
	boom := NewMessage(newTask("boom"), domain.ModelImagen4, 0)
	w.Process(ctx, good)
	w.Process(ctx, bad)
	w.Process(ctx, boom)

	got, err := rs.Take(ctx, good.GenerationID, []uuid.UUID{good.TaskID})
	require.NoError(t, err)
	require.Contains(t, got, good.TaskID)
	assert.Equal(t, domain.TaskStatusCompleted, got[good.TaskID].Status)
	assert.Equal(t, "data:image/png;base64,AAAA", got[good.TaskID].ImageURL)
	assert.Equal(t, 1, got[good.TaskID].Attempts)

	got, err = rs.Take(ctx, bad.GenerationID, []uuid.UUID{bad.TaskID})
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusFailed, got[bad.TaskID].Status)
	assert.Equal(t, "model rejected prompt", got[bad.TaskID].Error)

	got, err = rs.Take(ctx, boom.GenerationID, []uuid.UUID{boom.TaskID})
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusFailed, got[boom.TaskID].Status)
	assert.Contains(t, got[boom.TaskID].Error, "kaboom")
}

func TestWorker_ProcessReportsAttempts(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	var calls int32
	gen := generation.GeneratorFunc(func(context.Context, string, domain.ModelSelector) (*generation.Image, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			return nil, &generation.StatusError{Code: 503, Err: generation.ErrTransientFailure}
		}
		return &generation.Image{Data: []byte("png"), MIMEType: "image/png"}, nil
	})
	executor, err := task.NewExecutor(gen, retry.Config{MaxAttempts: 3, BaseDelay: time.Millisecond}, nil)
	require.NoError(t, err)

	rs := sink.NewMemorySink(0)
	w := NewWorker(NewMemoryQueue(), executor, rs, DefaultWorkerConfig(), nil)
	msg := NewMessage(newTask("a lighthouse"), domain.ModelImagen4, 0)
	w.Process(ctx, msg)

	got, err := rs.Take(ctx, msg.GenerationID, []uuid.UUID{msg.TaskID})
	require.NoError(t, err)
	require.Contains(t, got, msg.TaskID)
	assert.Equal(t, domain.TaskStatusCompleted, got[msg.TaskID].Status)
	assert.Equal(t, 2, got[msg.TaskID].Attempts)
}

type failingSink struct{}

func (failingSink) Put(context.Context, sink.Result) error { return errors.New("sink down") }

func (failingSink) Take(context.Context, uuid.UUID, []uuid.UUID) (map[uuid.UUID]sink.Result, error) {
	return nil, nil
}

func TestWorker_ErrorHandler(t *testing.T) {
	t.Parallel()

	runner := task.RunnerFunc(func(context.Context, string, domain.ModelSelector) (string, error) {
		return "ok", nil
	})
	w := NewWorker(NewMemoryQueue(), runner, failingSink{}, WorkerConfig{WorkerCount: 1}, nil)

	var handled Message
	w.SetErrorHandler(func(msg Message, err error) {
		handled = msg
		assert.EqualError(t, err, "sink down")
	})

	msg := NewMessage(newTask("p"), domain.ModelImagen4, 0)
	w.Process(context.Background(), msg)
	assert.Equal(t, msg.ID, handled.ID)
}

func TestWorker_Run(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	runner := task.RunnerFunc(func(context.Context, string, domain.ModelSelector) (string, error) {
		calls.Add(1)
		return "img", nil
	})

	q := NewMemoryQueue()
	rs := sink.NewMemorySink(0)
	w := NewWorker(q, runner, rs, WorkerConfig{WorkerCount: 2, PollInterval: 10 * time.Millisecond}, nil)

	for i := 0; i < 5; i++ {
		_, err := q.Enqueue(context.Background(), NewMessage(newTask("p"), domain.ModelImagen4, 0))
		require.NoError(t, err)
	}
	future := NewMessage(newTask("later"), domain.ModelImagen4, time.Hour)
	_, err := q.Enqueue(context.Background(), future)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	assert.Eventually(t, func() bool { return rs.Len() == 5 }, 2*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
	assert.Equal(t, int32(5), calls.Load())
	assert.Equal(t, 1, q.Len(), "message not yet due stays queued")
}

func TestWorker_RequeuesInterruptedTask(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	runner := task.RunnerFunc(func(ctx context.Context, _ string, _ domain.ModelSelector) (string, error) {
		cancel()
		<-ctx.Done()
		return "", ctx.Err()
	})

	q := NewMemoryQueue()
	rs := sink.NewMemorySink(0)
	w := NewWorker(q, runner, rs, WorkerConfig{WorkerCount: 1}, nil)

	msg := NewMessage(newTask("p"), domain.ModelImagen4, 0)
	w.Process(ctx, msg)

	assert.Zero(t, rs.Len(), "no result for an interrupted task")
	due, err := q.Dequeue(context.Background(), time.Now().Add(time.Second), 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, msg.TaskID, due[0].TaskID)
}
