package task

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/phrazzld/imagegen-api/internal/domain"
	"github.com/phrazzld/imagegen-api/internal/generation"
	"github.com/phrazzld/imagegen-api/internal/retry"
)

// Runner performs the unit of work behind a single task and returns the
// result reference stored on the task.
type Runner interface {
	Run(ctx context.Context, prompt string, model domain.ModelSelector) (string, error)
}

// AttemptRunner is a Runner that also reports how many calls the unit of
// work took, so retries can be recorded on the task.
type AttemptRunner interface {
	Runner
	RunAttempts(ctx context.Context, prompt string, model domain.ModelSelector) (result string, attempts int, err error)
}

// RunAttempts runs r and reports the number of calls it took. Runners that
// are not AttemptRunners count as one call.
func RunAttempts(ctx context.Context, r Runner, prompt string, model domain.ModelSelector) (string, int, error) {
	if ar, ok := r.(AttemptRunner); ok {
		return ar.RunAttempts(ctx, prompt, model)
	}
	result, err := r.Run(ctx, prompt, model)
	return result, 1, err
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, prompt string, model domain.ModelSelector) (string, error)

// Run implements Runner.
func (f RunnerFunc) Run(ctx context.Context, prompt string, model domain.ModelSelector) (string, error) {
	return f(ctx, prompt, model)
}

// Executor calls the image generator under the retry policy and encodes the
// image as a data URL.
type Executor struct {
	generator generation.ImageGenerator
	retrier   *retry.Executor
	logger    *slog.Logger
}

var _ AttemptRunner = (*Executor)(nil)

// NewExecutor builds an Executor whose retries stop early on errors that
// generation.IsTerminal reports as validation faults.
func NewExecutor(gen generation.ImageGenerator, cfg retry.Config, logger *slog.Logger) (*Executor, error) {
	if gen == nil {
		return nil, fmt.Errorf("image generator cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	retrier, err := retry.New(cfg,
		retry.WithClassifier(generation.IsTerminal),
		retry.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}

	return &Executor{
		generator: gen,
		retrier:   retrier,
		logger:    logger.With("component", "task_executor"),
	}, nil
}

// Run implements Runner.
func (e *Executor) Run(ctx context.Context, prompt string, model domain.ModelSelector) (string, error) {
	result, _, err := e.RunAttempts(ctx, prompt, model)
	return result, err
}

// RunAttempts implements AttemptRunner.
func (e *Executor) RunAttempts(ctx context.Context, prompt string, model domain.ModelSelector) (string, int, error) {
	attempts := 0
	img, err := retry.Execute(ctx, e.retrier, func(ctx context.Context) (*generation.Image, error) {
		attempts++
		return e.generator.GenerateImage(ctx, prompt, model)
	})
	if err != nil {
		return "", attempts, err
	}
	if img == nil {
		return "", attempts, generation.ErrInvalidResponse
	}
	return img.DataURL(), attempts, nil
}
