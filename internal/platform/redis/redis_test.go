package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/imagegen-api/internal/config"
	"github.com/phrazzld/imagegen-api/internal/domain"
	"github.com/phrazzld/imagegen-api/internal/offload"
	"github.com/phrazzld/imagegen-api/internal/sink"
)

func setupRedis(t *testing.T) (*miniredis.Miniredis, *goredis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := NewClient(context.Background(), config.RedisConfig{Addr: mr.Addr(), KeyPrefix: "test"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestNewClient_Unreachable(t *testing.T) {
	t.Parallel()
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewClient(context.Background(), config.RedisConfig{Addr: addr})
	assert.Error(t, err)
}

func result(genID uuid.UUID, status domain.TaskStatus) sink.Result {
	return sink.Result{
		TaskID:       uuid.New(),
		GenerationID: genID,
		Status:       status,
		ImageURL:     "data:image/png;base64,AAAA",
		CompletedAt:  time.Now().UTC().Truncate(time.Millisecond),
	}
}

func TestResultSink_PutTake(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	_, client := setupRedis(t)
	s := NewResultSink(client, "test", time.Hour, nil)

	genID := uuid.New()
	done := result(genID, domain.TaskStatusCompleted)
	failed := result(genID, domain.TaskStatusFailed)
	failed.ImageURL = ""
	failed.Error = "quota exceeded"
	other := result(uuid.New(), domain.TaskStatusCompleted)

	for _, r := range []sink.Result{done, failed, other} {
		require.NoError(t, s.Put(ctx, r))
	}

	missing := uuid.New()
	got, err := s.Take(ctx, genID, []uuid.UUID{done.TaskID, failed.TaskID, other.TaskID, missing})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, done.ImageURL, got[done.TaskID].ImageURL)
	assert.True(t, done.CompletedAt.Equal(got[done.TaskID].CompletedAt))
	assert.Equal(t, "quota exceeded", got[failed.TaskID].Error)

	// taken results are gone, results of other generations are kept
	again, err := s.Take(ctx, genID, []uuid.UUID{done.TaskID, failed.TaskID})
	require.NoError(t, err)
	assert.Empty(t, again)

	kept, err := s.Take(ctx, other.GenerationID, []uuid.UUID{other.TaskID})
	require.NoError(t, err)
	assert.Len(t, kept, 1)
}

func TestResultSink_PutReplacesAndValidates(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	_, client := setupRedis(t)
	s := NewResultSink(client, "test", 0, nil)

	r := result(uuid.New(), domain.TaskStatusFailed)
	require.NoError(t, s.Put(ctx, r))
	r.Status = domain.TaskStatusCompleted
	require.NoError(t, s.Put(ctx, r))

	got, err := s.Take(ctx, r.GenerationID, []uuid.UUID{r.TaskID})
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusCompleted, got[r.TaskID].Status)

	r.Status = domain.TaskStatusPending
	assert.ErrorIs(t, s.Put(ctx, r), sink.ErrInvalidResult)

	empty, err := s.Take(ctx, r.GenerationID, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestResultSink_Expiry(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	mr, client := setupRedis(t)
	s := NewResultSink(client, "test", time.Minute, nil)

	r := result(uuid.New(), domain.TaskStatusCompleted)
	require.NoError(t, s.Put(ctx, r))
	mr.FastForward(2 * time.Minute)

	got, err := s.Take(ctx, r.GenerationID, []uuid.UUID{r.TaskID})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func message(prompt string, due time.Time) offload.Message {
	return offload.Message{
		ID:           uuid.NewString(),
		GenerationID: uuid.New(),
		TaskID:       uuid.New(),
		Prompt:       prompt,
		Model:        domain.ModelImagen4,
		EnqueuedAt:   time.Now().UTC(),
		DueAt:        due,
	}
}

func TestQueue(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	_, client := setupRedis(t)
	q := NewQueue(client, "test", nil)

	now := time.Now().UTC()
	first := message("first", now.Add(-2*time.Second))
	second := message("second", now.Add(-time.Second))
	later := message("later", now.Add(time.Hour))

	for _, m := range []offload.Message{later, second, first} {
		id, err := q.Enqueue(ctx, m)
		require.NoError(t, err)
		assert.Equal(t, m.ID, id)
	}

	n, err := q.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	due, err := q.Dequeue(ctx, now, 1)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, first.ID, due[0].ID)
	assert.Equal(t, "first", due[0].Prompt)

	due, err = q.Dequeue(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, second.ID, due[0].ID)

	due, err = q.Dequeue(ctx, now, 10)
	require.NoError(t, err)
	assert.Empty(t, due)

	require.NoError(t, q.Cancel(ctx, later.ID))
	assert.ErrorIs(t, q.Cancel(ctx, later.ID), offload.ErrMessageNotFound)

	due, err = q.Dequeue(ctx, now.Add(2*time.Hour), 10)
	require.NoError(t, err)
	assert.Empty(t, due)

	_, err = q.Enqueue(ctx, offload.Message{})
	assert.ErrorIs(t, err, offload.ErrInvalidMessage)
}

func TestQueue_WithWorker(t *testing.T) {
	t.Parallel()
	_, client := setupRedis(t)
	q := NewQueue(client, "test", nil)
	rs := NewResultSink(client, "test", time.Hour, nil)

	runner := offloadRunner(func(prompt string) (string, error) { return "img:" + prompt, nil })
	w := offload.NewWorker(q, runner, rs, offload.WorkerConfig{WorkerCount: 1, PollInterval: 10 * time.Millisecond}, nil)

	msg := message("cat", time.Now().UTC())
	_, err := q.Enqueue(context.Background(), msg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = w.Run(ctx)
		close(done)
	}()

	var got map[uuid.UUID]sink.Result
	require.Eventually(t, func() bool {
		got, err = rs.Take(context.Background(), msg.GenerationID, []uuid.UUID{msg.TaskID})
		return err == nil && len(got) == 1
	}, 2*time.Second, 10*time.Millisecond)
	cancel()
	<-done

	assert.Equal(t, "img:cat", got[msg.TaskID].ImageURL)
}

type offloadRunner func(prompt string) (string, error)

func (f offloadRunner) Run(_ context.Context, prompt string, _ domain.ModelSelector) (string, error) {
	return f(prompt)
}
