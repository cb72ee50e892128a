package offload

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/phrazzld/imagegen-api/internal/domain"
	"github.com/phrazzld/imagegen-api/internal/redact"
	"github.com/phrazzld/imagegen-api/internal/sink"
	"github.com/phrazzld/imagegen-api/internal/task"
)

// WorkerConfig holds configuration options for the worker
type WorkerConfig struct {
	// WorkerCount determines how many messages run concurrently.
	// If zero or negative, defaults to 1
	WorkerCount int

	// PollInterval is how often the queue is checked for due messages.
	// If zero or negative, defaults to one second
	PollInterval time.Duration
}

// DefaultWorkerConfig returns a WorkerConfig with reasonable defaults
func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{
		WorkerCount:  2,
		PollInterval: time.Second,
	}
}

// Worker pulls due messages from a Queue, runs them and delivers the
// outcome to a result sink.
type Worker struct {
	queue  Queue
	runner task.Runner
	sink   sink.ResultSink
	config WorkerConfig
	logger *slog.Logger

	// errorHandler is called when a result cannot be delivered.
	// If nil, errors are only logged
	errorHandler func(msg Message, err error)
}

// NewWorker creates a Worker with the given configuration.
func NewWorker(q Queue, runner task.Runner, rs sink.ResultSink, config WorkerConfig, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "offload_worker")

	if config.WorkerCount <= 0 {
		logger.Warn("invalid worker count specified, using default",
			"specified_count", config.WorkerCount,
			"default_count", 1)
		config.WorkerCount = 1
	}
	if config.PollInterval <= 0 {
		config.PollInterval = time.Second
	}

	return &Worker{
		queue:  q,
		runner: runner,
		sink:   rs,
		config: config,
		logger: logger,
	}
}

// SetErrorHandler sets a handler for results that could not be delivered.
func (w *Worker) SetErrorHandler(handler func(msg Message, err error)) {
	w.errorHandler = handler
}

// Run polls the queue until ctx is cancelled, then waits for in-flight
// messages to finish. It always returns nil so it can sit in an errgroup
// next to the HTTP server.
func (w *Worker) Run(ctx context.Context) error {
	messages := make(chan Message)

	var wg sync.WaitGroup
	for i := 0; i < w.config.WorkerCount; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			w.work(ctx, id, messages)
		}(i)
	}

	w.logger.Info("offload worker started",
		"workers", w.config.WorkerCount,
		"poll_interval", w.config.PollInterval)

	w.poll(ctx, messages)
	close(messages)
	wg.Wait()

	w.logger.Info("offload worker stopped")
	return nil
}

// poll moves due messages onto the channel. Messages already dequeued when
// ctx ends are still handed out so they are not lost.
func (w *Worker) poll(ctx context.Context, out chan<- Message) {
	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	for {
		due, err := w.queue.Dequeue(ctx, time.Now().UTC(), w.config.WorkerCount)
		if err != nil && ctx.Err() == nil {
			w.logger.Error("failed to dequeue messages", "error", err)
		}
		for _, msg := range due {
			out <- msg
		}

		// drain without waiting while a full batch came back
		if len(due) == w.config.WorkerCount && ctx.Err() == nil {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (w *Worker) work(ctx context.Context, id int, in <-chan Message) {
	w.logger.Debug("starting worker", "worker_id", id)
	for msg := range in {
		w.Process(ctx, msg)
	}
	w.logger.Debug("stopping worker", "worker_id", id)
}

// Process runs one message and delivers its result.
func (w *Worker) Process(ctx context.Context, msg Message) {
	log := w.logger.With(
		"message_id", msg.ID,
		"generation_id", msg.GenerationID.String(),
		"task_id", msg.TaskID.String(),
	)

	result := sink.Result{
		TaskID:       msg.TaskID,
		GenerationID: msg.GenerationID,
	}

	if err := msg.Validate(); err != nil {
		result.Status = domain.TaskStatusFailed
		result.Error = err.Error()
	} else {
		log.Info("processing queued task")
		start := time.Now()
		image, attempts, err := w.execute(ctx, msg)
		result.Attempts = attempts
		if err != nil && ctx.Err() != nil {
			w.requeue(ctx, msg, log)
			return
		}
		if err != nil {
			result.Status = domain.TaskStatusFailed
			result.Error = redact.Error(err)
			log.Warn("queued task failed", "duration", time.Since(start), "error", result.Error)
		} else {
			result.Status = domain.TaskStatusCompleted
			result.ImageURL = image
			log.Info("queued task completed", "duration", time.Since(start))
		}
	}
	result.CompletedAt = time.Now().UTC()

	// Delivery must happen even while shutting down.
	if err := w.sink.Put(context.WithoutCancel(ctx), result); err != nil {
		log.Error("failed to deliver task result", "error", err)
		if w.errorHandler != nil {
			w.errorHandler(msg, err)
		}
	}
}

// requeue puts back a message whose run was cut short by shutdown.
func (w *Worker) requeue(ctx context.Context, msg Message, log *slog.Logger) {
	msg.DueAt = time.Now().UTC()
	if _, err := w.queue.Enqueue(context.WithoutCancel(ctx), msg); err != nil {
		log.Error("failed to requeue interrupted task", "error", err)
		return
	}
	log.Info("requeued interrupted task")
}

func (w *Worker) execute(ctx context.Context, msg Message) (image string, attempts int, err error) {
	attempts = 1
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("task panicked: %v", p)
		}
	}()
	return task.RunAttempts(ctx, w.runner, msg.Prompt, msg.Model)
}
