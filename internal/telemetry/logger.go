package telemetry

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// NewLogger creates a structured logger. Format is "json" or "text". Level is
// one of: debug, info, warn, error. All log records are additionally fanned
// out to the in-memory ring buffer so recent entries are retrievable via
// GET /logs without a separate log-shipping pipeline.
func NewLogger(format, level string, ring *RingBuffer) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: lvl}
	var w io.Writer = os.Stdout
	var base slog.Handler
	switch strings.ToLower(format) {
	case "text":
		base = slog.NewTextHandler(w, opts)
	default:
		base = slog.NewJSONHandler(w, opts)
	}

	if ring == nil {
		return slog.New(base)
	}
	return slog.New(&ringHandler{base: base, ring: ring})
}

// ringHandler wraps a slog.Handler and additionally appends every record to
// a bounded ring buffer, mirroring the teacher's request logging middleware
// but applied at the handler layer so every logger.Info/Warn/Error call
// (not just HTTP requests) is captured.
type ringHandler struct {
	base slog.Handler
	ring *RingBuffer
}

func (h *ringHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.base.Enabled(ctx, level)
}

func (h *ringHandler) Handle(ctx context.Context, r slog.Record) error {
	entry := Entry{
		Timestamp: r.Time,
		Level:     r.Level.String(),
		Logger:    "blacklistguard",
		Message:   r.Message,
	}
	r.Attrs(func(a slog.Attr) bool {
		switch a.Key {
		case "module":
			entry.Module = a.Value.String()
		case "line":
			entry.Line = int(a.Value.Int64())
		}
		return true
	})
	h.ring.Push(entry)
	return h.base.Handle(ctx, r)
}

func (h *ringHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ringHandler{base: h.base.WithAttrs(attrs), ring: h.ring}
}

func (h *ringHandler) WithGroup(name string) slog.Handler {
	return &ringHandler{base: h.base.WithGroup(name), ring: h.ring}
}
