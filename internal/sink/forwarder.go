package sink

import (
	"context"
	"log/slog"

	"github.com/phrazzld/imagegen-api/internal/events"
)

// Forwarder writes every settled task to a ResultSink, so in-process runs
// can be collected the same way as offloaded ones.
type Forwarder struct {
	sink   ResultSink
	logger *slog.Logger
}

var _ events.EventHandler = (*Forwarder)(nil)

// NewForwarder creates a Forwarder.
func NewForwarder(sink ResultSink, logger *slog.Logger) *Forwarder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Forwarder{
		sink:   sink,
		logger: logger.With("component", "result_forwarder"),
	}
}

// HandleEvent implements events.EventHandler.
func (f *Forwarder) HandleEvent(ctx context.Context, event *events.TaskSettledEvent) error {
	err := f.sink.Put(ctx, Result{
		TaskID:       event.TaskID,
		GenerationID: event.GenerationID,
		Status:       event.Status,
		ImageURL:     event.Result,
		Error:        event.Error,
		CompletedAt:  event.SettledAt,
	})
	if err != nil {
		f.logger.Warn("failed to forward task result",
			"task_id", event.TaskID.String(),
			"error", err)
		return err
	}
	return nil
}
