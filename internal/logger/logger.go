// Package logger provides structured logging using Go 1.21's log/slog.
// It sets up a JSON handler with service-level context and carries a
// pass ID through context.Context so every record of one analysis pass
// can be correlated.
package logger

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"
)

type ctxKey string

const passIDKey ctxKey = "pass_id"

// Init creates and returns a structured logger for the given service.
// The logger outputs JSON to stdout with the service name embedded.
func Init(service string, level slog.Level) *slog.Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})

	logger := slog.New(handler).With(
		slog.String("service", service),
	)

	// Set as default so log/slog.Info() etc. also use structured output
	slog.SetDefault(logger)

	return logger
}

// ParseLevel maps a config string to a slog level. Unknown values
// default to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithPassID stores an analysis pass ID in the context.
func WithPassID(ctx context.Context, passID string) context.Context {
	return context.WithValue(ctx, passIDKey, passID)
}

// PassID extracts the pass ID from context. Returns "" if not set.
func PassID(ctx context.Context) string {
	if v, ok := ctx.Value(passIDKey).(string); ok {
		return v
	}
	return ""
}

// NewPassID creates a pass ID from a label and timestamp,
// formatted "{label}-{unixNano}".
func NewPassID(label string, ts time.Time) string {
	return fmt.Sprintf("%s-%d", label, ts.UnixNano())
}

// WithPass returns slog attributes including the pass ID from context.
// Usage: log.Info("msg", logger.WithPass(ctx)...)
func WithPass(ctx context.Context) []any {
	pid := PassID(ctx)
	if pid == "" {
		return nil
	}
	return []any{slog.String("pass_id", pid)}
}
