package logging

import (
	"context"
	"log/slog"
)

type ctxKey int

const (
	runIDKey ctxKey = iota
	recordKey
	stepKey
)

// WithRunID returns a context with the run ID set.
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey, id)
}

// WithRecord returns a context with the 1-based record index set.
func WithRecord(ctx context.Context, index int) context.Context {
	return context.WithValue(ctx, recordKey, index)
}

// WithStep returns a context with the step name set.
func WithStep(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, stepKey, name)
}

// RunID extracts the run ID from the context, or "" if absent.
func RunID(ctx context.Context) string {
	v, _ := ctx.Value(runIDKey).(string)
	return v
}

// Record extracts the record index from the context, or 0 if absent.
func Record(ctx context.Context) int {
	v, _ := ctx.Value(recordKey).(int)
	return v
}

// Step extracts the step name from the context, or "" if absent.
func Step(ctx context.Context) string {
	v, _ := ctx.Value(stepKey).(string)
	return v
}

// LogWith returns a logger enriched with correlation attributes from the context.
// Only set values are added.
func LogWith(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if id := RunID(ctx); id != "" {
		logger = logger.With(slog.String("run_id", id))
	}
	if rec := Record(ctx); rec > 0 {
		logger = logger.With(slog.Int("record", rec))
	}
	if s := Step(ctx); s != "" {
		logger = logger.With(slog.String("step", s))
	}
	return logger
}

// CorrelationHandler wraps an slog.Handler, injecting run_id, record and
// step from the context into every log record.
// Use with slog.New(NewCorrelationHandler(inner)) and log through the
// *Context methods.
type CorrelationHandler struct {
	inner slog.Handler
}

// NewCorrelationHandler wraps the given handler.
func NewCorrelationHandler(inner slog.Handler) *CorrelationHandler {
	return &CorrelationHandler{inner: inner}
}

func (h *CorrelationHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *CorrelationHandler) Handle(ctx context.Context, r slog.Record) error {
	if v := RunID(ctx); v != "" {
		r.AddAttrs(slog.String("run_id", v))
	}
	if v := Record(ctx); v > 0 {
		r.AddAttrs(slog.Int("record", v))
	}
	if v := Step(ctx); v != "" {
		r.AddAttrs(slog.String("step", v))
	}
	return h.inner.Handle(ctx, r)
}

func (h *CorrelationHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &CorrelationHandler{inner: h.inner.WithAttrs(attrs)}
}

func (h *CorrelationHandler) WithGroup(name string) slog.Handler {
	return &CorrelationHandler{inner: h.inner.WithGroup(name)}
}
