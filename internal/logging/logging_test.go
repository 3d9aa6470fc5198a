package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestContextWithLogger(t *testing.T) {
	if got := FromContext(context.Background()); got != nil {
		t.Fatalf("expected nil logger from empty context, got %v", got)
	}

	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	ctx := ContextWithLogger(context.Background(), logger)
	if got := FromContext(ctx); got != logger {
		t.Fatal("expected attached logger to be returned")
	}

	if same := ContextWithLogger(ctx, nil); same != ctx {
		t.Fatal("nil logger must leave the context untouched")
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
		"":        slog.LevelInfo,
	}
	for input, want := range cases {
		if got := ParseLevel(input); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestNewLoggerTo(t *testing.T) {
	t.Run("json format", func(t *testing.T) {
		var buf bytes.Buffer
		NewLoggerTo(&buf, "info", "json").Info("hello", "user_id", "u1")

		var record map[string]any
		if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
			t.Fatalf("expected JSON output, got %q: %v", buf.String(), err)
		}
		if record["msg"] != "hello" || record["user_id"] != "u1" {
			t.Fatalf("unexpected record %v", record)
		}
	})

	t.Run("text format honours level", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLoggerTo(&buf, "warn", "text")
		logger.Info("dropped")
		logger.Warn("kept")

		out := buf.String()
		if strings.Contains(out, "dropped") || !strings.Contains(out, "msg=kept") {
			t.Fatalf("unexpected output %q", out)
		}
	})
}
