package logger

import (
	"context"
	"log/slog"

	"github.com/phrazzld/imagegen-api/internal/redact"
)

// RedactingHandler is a slog.Handler that scrubs string and error attribute
// values with the redact package before forwarding them. Keys and the log
// message itself are left alone.
type RedactingHandler struct {
	handler slog.Handler
}

// NewRedactingHandler wraps handler.
func NewRedactingHandler(handler slog.Handler) *RedactingHandler {
	return &RedactingHandler{handler: handler}
}

// Enabled implements the slog.Handler interface.
func (h *RedactingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// WithAttrs implements the slog.Handler interface.
func (h *RedactingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	scrubbed := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		scrubbed[i] = redactAttr(a)
	}
	return &RedactingHandler{handler: h.handler.WithAttrs(scrubbed)}
}

// WithGroup implements the slog.Handler interface.
func (h *RedactingHandler) WithGroup(name string) slog.Handler {
	return &RedactingHandler{handler: h.handler.WithGroup(name)}
}

// Handle implements the slog.Handler interface.
func (h *RedactingHandler) Handle(ctx context.Context, record slog.Record) error {
	scrubbed := slog.NewRecord(record.Time, record.Level, record.Message, record.PC)
	record.Attrs(func(a slog.Attr) bool {
		scrubbed.AddAttrs(redactAttr(a))
		return true
	})
	return h.handler.Handle(ctx, scrubbed)
}

func redactAttr(a slog.Attr) slog.Attr {
	v := a.Value.Resolve()
	switch v.Kind() {
	case slog.KindString:
		return slog.String(a.Key, redact.String(v.String()))
	case slog.KindGroup:
		group := v.Group()
		scrubbed := make([]any, len(group))
		for i, g := range group {
			scrubbed[i] = redactAttr(g)
		}
		return slog.Group(a.Key, scrubbed...)
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return slog.String(a.Key, redact.Error(err))
		}
	}
	return slog.Attr{Key: a.Key, Value: v}
}
