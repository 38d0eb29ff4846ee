package logger

import (
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestInit(t *testing.T) {
	logger := Init("test-service", slog.LevelInfo)
	if logger == nil {
		t.Fatal("expected non-nil logger")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{" Error ", slog.LevelError},
		{"bogus", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestPassID_RoundTrip(t *testing.T) {
	ctx := context.Background()

	if pid := PassID(ctx); pid != "" {
		t.Errorf("expected empty pass id, got %q", pid)
	}

	ctx = WithPassID(ctx, "scan-123")
	if pid := PassID(ctx); pid != "scan-123" {
		t.Errorf("expected 'scan-123', got %q", pid)
	}
}

func TestNewPassID(t *testing.T) {
	ts := time.Date(2026, 3, 2, 7, 0, 0, 123456789, time.UTC)
	pid := NewPassID("premarket", ts)

	if !strings.HasPrefix(pid, "premarket-") {
		t.Errorf("expected pass id to start with 'premarket-', got %s", pid)
	}
	if !strings.Contains(pid, "123456789") {
		t.Errorf("expected pass id to contain nanoseconds, got %s", pid)
	}
}

func TestWithPass(t *testing.T) {
	ctx := context.Background()

	if attrs := WithPass(ctx); attrs != nil {
		t.Errorf("expected nil attrs when no pass id, got %v", attrs)
	}

	ctx = WithPassID(ctx, "abc-123")
	if attrs := WithPass(ctx); len(attrs) == 0 {
		t.Fatal("expected non-empty attrs with pass id set")
	}
}
