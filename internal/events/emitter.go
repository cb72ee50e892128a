package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// InMemoryEventEmitter hands each settled-task event to every registered
// handler in registration order, on the caller's goroutine.
type InMemoryEventEmitter struct {
	mu       sync.RWMutex
	handlers []EventHandler
	logger   *slog.Logger
}

var _ EventEmitter = (*InMemoryEventEmitter)(nil)

// NewInMemoryEventEmitter creates an emitter with no handlers. logger may be nil.
func NewInMemoryEventEmitter(logger *slog.Logger) *InMemoryEventEmitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &InMemoryEventEmitter{
		logger: logger.With("component", "event_emitter"),
	}
}

// RegisterHandler subscribes handler to every later event.
func (e *InMemoryEventEmitter) RegisterHandler(handler EventHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers = append(e.handlers, handler)
}

// HandlerCount reports how many handlers are registered.
func (e *InMemoryEventEmitter) HandlerCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.handlers)
}

// EmitEvent delivers event to all handlers. A failing or panicking handler
// does not stop delivery to the rest; their errors are joined.
func (e *InMemoryEventEmitter) EmitEvent(ctx context.Context, event *TaskSettledEvent) error {
	e.mu.RLock()
	handlers := append([]EventHandler(nil), e.handlers...)
	e.mu.RUnlock()

	if len(handlers) == 0 {
		return nil
	}

	var errs []error
	for i, handler := range handlers {
		if err := e.dispatch(ctx, handler, event); err != nil {
			e.logger.WarnContext(ctx, "event handler failed",
				"handler_index", i,
				"event_id", event.ID.String(),
				"task_id", event.TaskID.String(),
				"error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (e *InMemoryEventEmitter) dispatch(ctx context.Context, handler EventHandler, event *TaskSettledEvent) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("event handler panicked: %v", p)
		}
	}()
	return handler.HandleEvent(ctx, event)
}
