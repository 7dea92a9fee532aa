package log

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLoggerAddsComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelInfo, Component: ComponentApp, Output: &buf})

	logger.WithComponent(ComponentInstallment).Info("schedule computed", FieldPurchaseID, "p-1")

	out := buf.String()
	if !strings.Contains(out, "component=installment") || !strings.Contains(out, "purchase_id=p-1") {
		t.Fatalf("unexpected log line: %s", out)
	}
}

func TestLoggerJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelDebug, Component: ComponentWorker, Format: "json", Output: &buf})
	logger.Debug("opened")
	if !strings.Contains(buf.String(), `"component":"worker"`) {
		t.Fatalf("unexpected json log: %s", buf.String())
	}
}

func TestFromContext(t *testing.T) {
	logger := New(DefaultConfig()).WithComponent(ComponentHTTP)
	ctx := NewContext(context.Background(), logger)
	if got := FromContext(ctx); got != logger {
		t.Fatalf("expected logger from context")
	}
	if got := FromContext(context.Background()); got.Component() != "unknown" {
		t.Fatalf("expected fallback logger, got component %q", got.Component())
	}
}

func TestStructuredLoggerLogError(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(New(Config{Output: &buf}))
	sl.LogError(context.Background(), "confirm failed", errors.New("boom"), ComponentInstallment, OpConfirm, nil)

	out := buf.String()
	for _, want := range []string{"error=boom", "operation=confirm", "component=installment"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in %s", want, out)
		}
	}
}
