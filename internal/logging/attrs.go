package logging

import (
	"context"
	"log/slog"
	"time"
)

// Attr aliases slog.Attr so callers need only this package.
type Attr = slog.Attr

// String records a string.
func String(key, value string) Attr { return slog.String(key, value) }

// Int records an int.
func Int(key string, value int) Attr { return slog.Int(key, value) }

// Int64 records sizes and offsets.
func Int64(key string, value int64) Attr { return slog.Int64(key, value) }

// Uint64 records unsigned counters such as free bytes.
func Uint64(key string, value uint64) Attr { return slog.Uint64(key, value) }

// Float64 records ratios.
func Float64(key string, value float64) Attr { return slog.Float64(key, value) }

// Bool records a flag.
func Bool(key string, value bool) Attr { return slog.Bool(key, value) }

// Duration records an elapsed time.
func Duration(key string, value time.Duration) Attr { return slog.Duration(key, value) }

// Any records an arbitrary value.
func Any(key string, value any) Attr { return slog.Any(key, value) }

// Error records err under "error". A nil error is rendered as "<nil>".
func Error(err error) Attr {
	if err == nil {
		return slog.String("error", "<nil>")
	}
	return slog.Any("error", err)
}

// Args converts attrs into the variadic form slog.Logger methods accept.
func Args(attrs ...Attr) []any {
	out := make([]any, len(attrs))
	for i, a := range attrs {
		out[i] = a
	}
	return out
}

// NewNop returns a logger that drops everything.
func NewNop() *slog.Logger {
	return slog.New(discard{})
}

// NewComponentLogger tags logger with a component name. A nil logger yields
// a no-op logger.
func NewComponentLogger(logger *slog.Logger, component string) *slog.Logger {
	if logger == nil {
		return NewNop()
	}
	return logger.With(String(FieldComponent, component))
}

type discard struct{}

func (discard) Enabled(context.Context, slog.Level) bool  { return false }
func (discard) Handle(context.Context, slog.Record) error { return nil }
func (d discard) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discard) WithGroup(string) slog.Handler           { return d }
