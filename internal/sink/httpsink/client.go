// Package httpsink delivers task results to a remote result endpoint over
// HTTP. It is the ResultSink used by a worker running outside the API
// server's process.
package httpsink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/phrazzld/imagegen-api/internal/signature"
	"github.com/phrazzld/imagegen-api/internal/sink"
)

// ErrUnexpectedStatus is returned when the endpoint answers with a non-2xx
// status.
var ErrUnexpectedStatus = errors.New("unexpected response status")

// Client is a sink.ResultSink that talks to a task-results endpoint.
type Client struct {
	endpoint   string
	httpClient *http.Client
	signer     signature.Signer
	logger     *slog.Logger
}

var _ sink.ResultSink = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithSigner signs every posted body.
func WithSigner(s signature.Signer) Option {
	return func(c *Client) { c.signer = s }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// New creates a Client for the endpoint URL, e.g.
// http://api:8080/api/task-results.
func New(endpoint string, opts ...Option) (*Client, error) {
	u, err := url.Parse(endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid result endpoint %q", endpoint)
	}

	c := &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "http_result_sink")
	return c, nil
}

// Put implements sink.ResultSink.
func (c *Client) Put(ctx context.Context, r sink.Result) error {
	if err := r.Validate(); err != nil {
		return err
	}

	body, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	if c.signer != nil {
		token, err := c.signer.Sign(ctx, body)
		if err != nil {
			return err
		}
		req.Header.Set(signature.Header, token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to post result: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode/100 != 2 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: %d %s", ErrUnexpectedStatus, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	c.logger.DebugContext(ctx, "result delivered",
		"task_id", r.TaskID.String(),
		"status", r.Status)
	return nil
}

type takeResponse struct {
	Results map[string]sink.Result `json:"results"`
}

// Take implements sink.ResultSink.
func (c *Client) Take(ctx context.Context, generationID uuid.UUID, taskIDs []uuid.UUID) (map[uuid.UUID]sink.Result, error) {
	ids := make([]string, len(taskIDs))
	for i, id := range taskIDs {
		ids[i] = id.String()
	}

	q := url.Values{}
	q.Set("generation_id", generationID.String())
	q.Set("task_ids", strings.Join(ids, ","))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch results: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	var payload takeResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode results: %w", err)
	}

	results := make(map[uuid.UUID]sink.Result, len(payload.Results))
	for key, r := range payload.Results {
		id, err := uuid.Parse(key)
		if err != nil {
			continue
		}
		results[id] = r
	}
	return results, nil
}
