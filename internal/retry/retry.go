// Package retry runs operations against failure-prone services, retrying
// transient faults with exponential backoff and giving up immediately on
// faults that retrying cannot fix.
package retry

import (
	"context"
	"errors"
	"log/slog"
	"time"

	goretry "github.com/sethvargo/go-retry"
)

// Default retry policy.
const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = time.Second
)

// ErrInvalidConfig is returned by New when the policy cannot be honoured.
var ErrInvalidConfig = errors.New("invalid retry configuration")

// Config controls how many times an operation is attempted and how long to
// wait between attempts. The wait before retry n (0-based) is
// BaseDelay * 2^n.
type Config struct {
	MaxAttempts int           `mapstructure:"max_attempts" validate:"omitempty,min=1"`
	BaseDelay   time.Duration `mapstructure:"base_delay"`
}

// DefaultConfig returns three attempts with a one second base delay.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: DefaultMaxAttempts,
		BaseDelay:   DefaultBaseDelay,
	}
}

// Classifier reports whether an error must not be retried.
type Classifier func(err error) bool

// Executor runs operations under a retry policy. It holds no per-call state
// and is safe for concurrent use.
type Executor struct {
	config   Config
	terminal Classifier
	logger   *slog.Logger
}

// Option customises an Executor.
type Option func(*Executor)

// WithClassifier sets the function that decides which errors are terminal.
// Without one, every error is retried.
func WithClassifier(c Classifier) Option {
	return func(e *Executor) {
		e.terminal = c
	}
}

// WithLogger sets the logger used to report retries.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// New creates an Executor. Zero fields of cfg fall back to the defaults.
func New(cfg Config, opts ...Option) (*Executor, error) {
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.BaseDelay == 0 {
		cfg.BaseDelay = DefaultBaseDelay
	}
	if cfg.MaxAttempts < 1 || cfg.BaseDelay <= 0 {
		return nil, ErrInvalidConfig
	}

	e := &Executor{
		config:   cfg,
		terminal: func(error) bool { return false },
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Config returns the policy the executor runs with.
func (e *Executor) Config() Config {
	return e.config
}

// Backoff returns a fresh backoff sequence for one Execute call:
// BaseDelay, 2*BaseDelay, 4*BaseDelay... stopping after MaxAttempts-1 waits.
func (e *Executor) Backoff() goretry.Backoff {
	return goretry.WithMaxRetries(uint64(e.config.MaxAttempts-1), goretry.NewExponential(e.config.BaseDelay))
}

// Do runs op until it succeeds, returns a terminal error, or the attempt
// budget is spent. The last error is returned on exhaustion.
func (e *Executor) Do(ctx context.Context, op func(ctx context.Context) error) error {
	_, err := Execute(ctx, e, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

// Execute runs op under e's policy and returns its value.
func Execute[T any](ctx context.Context, e *Executor, op func(ctx context.Context) (T, error)) (T, error) {
	attempt := 0
	var lastErr error

	inner := e.Backoff()
	backoff := goretry.BackoffFunc(func() (time.Duration, bool) {
		next, stop := inner.Next()
		if !stop {
			e.logger.WarnContext(ctx, "retrying after transient failure",
				"attempt", attempt,
				"max_attempts", e.config.MaxAttempts,
				"delay", next,
				"error", lastErr)
		}
		return next, stop
	})

	return goretry.DoValue(ctx, backoff, func(ctx context.Context) (T, error) {
		attempt++
		v, err := op(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err

		if e.terminal(err) {
			e.logger.DebugContext(ctx, "not retrying terminal failure",
				"attempt", attempt,
				"error", err)
			return v, err
		}
		return v, goretry.RetryableError(err)
	})
}
