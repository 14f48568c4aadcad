// Package logger builds the process-wide slog logger and carries
// request-scoped loggers through context.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// Format selects the slog handler.
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// Options configures the logger.
type Options struct {
	Output    io.Writer
	Level     string
	Format    Format
	AddSource bool
}

// DefaultOptions returns JSON at info level on stdout.
func DefaultOptions() Options {
	return Options{
		Output: os.Stdout,
		Level:  "info",
		Format: FormatJSON,
	}
}

// New creates a logger. Unknown formats fall back to JSON.
func New(opts Options) *slog.Logger {
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	hopts := &slog.HandlerOptions{
		Level:     ParseLevel(opts.Level),
		AddSource: opts.AddSource,
	}
	if Format(strings.ToLower(string(opts.Format))) == FormatText {
		return slog.New(slog.NewTextHandler(opts.Output, hopts))
	}
	return slog.New(slog.NewJSONHandler(opts.Output, hopts))
}

// ParseLevel parses a level name; "warning" is accepted as warn and anything
// unrecognised is info.
func ParseLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type ctxKey struct{}

// WithContext returns a new context with the logger attached.
func WithContext(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext retrieves the logger from context, or slog.Default().
func FromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}

// RequestIDKey is the attribute key for request tracing.
const RequestIDKey = "request_id"

// WithRequestID returns a logger with the request ID attached.
func WithRequestID(l *slog.Logger, requestID string) *slog.Logger {
	return l.With(RequestIDKey, requestID)
}

// Attribute helpers used across the service.
func Component(name string) slog.Attr   { return slog.String("component", name) }
func PlayerID(id string) slog.Attr      { return slog.String("player_id", id) }
func RunID(id string) slog.Attr         { return slog.String("run_id", id) }
func Latency(d time.Duration) slog.Attr { return slog.Duration("latency", d) }
