package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/imagegen-api/internal/api/shared"
	"github.com/phrazzld/imagegen-api/internal/platform/logger"
	"github.com/phrazzld/imagegen-api/internal/signature"
)

const testKey = "0123456789abcdef0123456789abcdef"

func newTestSigner(t *testing.T) signature.Signer {
	t.Helper()
	s, err := signature.NewSigner(testKey)
	require.NoError(t, err)
	return s
}

func echoBody(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(body)
	})
}

func TestSignatureMiddleware(t *testing.T) {
	t.Parallel()

	signer := newTestSigner(t)
	handler := NewSignatureMiddleware(signer).Verify(echoBody(t))
	body := []byte(`{"task_id":"x"}`)

	t.Run("valid signature passes body through", func(t *testing.T) {
		t.Parallel()
		token, err := signer.Sign(context.Background(), body)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodPost, "/api/task-results", bytes.NewReader(body))
		req.Header.Set(signature.Header, token)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, string(body), rr.Body.String())
	})

	t.Run("missing signature", func(t *testing.T) {
		t.Parallel()
		req := httptest.NewRequest(http.MethodPost, "/api/task-results", bytes.NewReader(body))
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		var resp shared.ErrorResponse
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
		assert.Equal(t, "Missing signature", resp.Error)
	})

	t.Run("signature for another body", func(t *testing.T) {
		t.Parallel()
		token, err := signer.Sign(context.Background(), []byte(`{"task_id":"y"}`))
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodPost, "/api/task-results", bytes.NewReader(body))
		req.Header.Set(signature.Header, token)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("garbage token", func(t *testing.T) {
		t.Parallel()
		req := httptest.NewRequest(http.MethodPost, "/api/task-results", bytes.NewReader(body))
		req.Header.Set(signature.Header, "not-a-token")
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("oversized body", func(t *testing.T) {
		t.Parallel()
		big := bytes.Repeat([]byte("a"), shared.MaxBodyBytes+10)
		req := httptest.NewRequest(http.MethodPost, "/api/task-results", bytes.NewReader(big))
		req.Header.Set(signature.Header, "anything")
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
	})
}

func TestTraceMiddleware(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	var seenTrace string
	var seenLogger *slog.Logger
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenTrace = shared.GetTraceID(r.Context())
		seenLogger = logger.FromContext(r.Context())
		w.WriteHeader(http.StatusTeapot)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/generations", nil)
	rr := httptest.NewRecorder()
	TraceMiddleware(base)(next).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusTeapot, rr.Code)
	assert.Len(t, seenTrace, shared.TraceIDLength*2)
	assert.Equal(t, seenTrace, rr.Header().Get(shared.TraceIDHeader))
	require.NotNil(t, seenLogger)

	logs := buf.String()
	assert.Contains(t, logs, "request started")
	assert.Contains(t, logs, "request finished")
	assert.Equal(t, 2, strings.Count(logs, seenTrace))
	assert.Contains(t, logs, `"status":418`)
}
