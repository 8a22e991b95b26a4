package logging

import (
	"context"
	"errors"
	"log/slog"
)

// fanout sends each record to every sink that accepts its level.
type fanout []slog.Handler

// newFanout drops nil sinks and skips the wrapper for a single sink.
func newFanout(sinks ...slog.Handler) slog.Handler {
	var f fanout
	for _, h := range sinks {
		if h != nil {
			f = append(f, h)
		}
	}
	if len(f) == 1 {
		return f[0]
	}
	return f
}

func (f fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle keeps going after a failing sink and reports all failures.
func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f {
		if h.Enabled(ctx, r.Level) {
			errs = append(errs, h.Handle(ctx, r.Clone()))
		}
	}
	return errors.Join(errs...)
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	return f.each(func(h slog.Handler) slog.Handler { return h.WithAttrs(attrs) })
}

func (f fanout) WithGroup(name string) slog.Handler {
	return f.each(func(h slog.Handler) slog.Handler { return h.WithGroup(name) })
}

func (f fanout) each(fn func(slog.Handler) slog.Handler) fanout {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = fn(h)
	}
	return out
}
