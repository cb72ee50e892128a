package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/imagegen-api/internal/config"
	"github.com/phrazzld/imagegen-api/internal/domain"
	"github.com/phrazzld/imagegen-api/internal/signature"
	"github.com/phrazzld/imagegen-api/internal/sink"
)

const testSigningKey = "an-offload-signing-key-of-32-chars!"

func newTestApplication(t *testing.T) *application {
	t.Helper()

	cfg, err := config.LoadFile("")
	require.NoError(t, err)
	cfg.Offload.SigningKey = testSigningKey
	cfg.LLM.GeminiAPIKey = ""

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	app, err := newApplication(context.Background(), cfg, logger, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.manager.Shutdown(context.Background()) })
	return app
}

func call(t *testing.T, h http.Handler, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var raw []byte
	if body != nil {
		var err error
		raw, err = json.Marshal(body)
		require.NoError(t, err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestRouter_Health(t *testing.T) {
	t.Parallel()
	app := newTestApplication(t)

	rr := call(t, app.setupRouter(), http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "OK", rr.Body.String())
	assert.NotEmpty(t, rr.Header().Get("X-Trace-ID"))
}

func TestRouter_ResultCallbackRequiresSignature(t *testing.T) {
	t.Parallel()
	app := newTestApplication(t)
	router := app.setupRouter()

	result := sink.Result{
		TaskID:       uuid.New(),
		GenerationID: uuid.New(),
		Status:       domain.TaskStatusCompleted,
		ImageURL:     "data:image/png;base64,AAAA",
	}

	rr := call(t, router, http.MethodPost, "/api/task-results", result, nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	body, err := json.Marshal(result)
	require.NoError(t, err)
	token, err := app.signer.Sign(context.Background(), body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/task-results", bytes.NewReader(body))
	req.Header.Set(signature.Header, token)
	signed := httptest.NewRecorder()
	router.ServeHTTP(signed, req)
	assert.Equal(t, http.StatusNoContent, signed.Code, signed.Body.String())
}

// TestOffloadRoundTrip drives a generation through the queue and the
// embedded worker. Without credentials every image call fails terminally,
// so each task comes back failed.
func TestOffloadRoundTrip(t *testing.T) {
	t.Parallel()
	app := newTestApplication(t)
	router := app.setupRouter()
	ctx := context.Background()

	rr := call(t, router, http.MethodPost, "/api/parameters", map[string]any{"name": "style", "values_text": "noir, bright"}, nil)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = call(t, router, http.MethodPost, "/api/templates", map[string]any{"name": "t", "content": "A {{style}} city"}, nil)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var tmpl struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&tmpl))

	rr = call(t, router, http.MethodPost, "/api/generations", map[string]any{
		"name":        "batch",
		"template_id": tmpl.ID,
		"model":       "nano-banana",
		"rate_limit":  3600,
	}, nil)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var gen struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&gen))
	base := "/api/generations/" + gen.ID

	rr = call(t, router, http.MethodPost, base+"/enqueue", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	worker, err := app.newWorker()
	require.NoError(t, err)
	msgs, err := app.queue.Dequeue(ctx, time.Now().Add(time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	for _, msg := range msgs {
		worker.Process(ctx, msg)
	}

	rr = call(t, router, http.MethodPost, base+"/sync", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var synced struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&synced))
	assert.Equal(t, 2, synced.Count)

	rr = call(t, router, http.MethodGet, base+"/progress", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var progress struct {
		Stats  domain.GenerationStats `json:"stats"`
		Queued int                    `json:"queued"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&progress))
	assert.Equal(t, 2, progress.Stats.Failed)
	assert.Equal(t, 0, progress.Queued)
}
