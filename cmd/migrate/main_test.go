package main

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/example/listening-monitor/internal/config"
	"github.com/example/listening-monitor/internal/testfixtures"
)

func TestRunUpThenStatus(t *testing.T) {
	cfg := config.Default()
	cfg.DatabaseURL = filepath.Join(t.TempDir(), "monitor.db")
	logger := testfixtures.DiscardLogger()
	ctx := context.Background()

	var before strings.Builder
	if err := run(ctx, cfg, "status", &before, logger); err != nil {
		t.Fatalf("status before migrating: %v", err)
	}
	if !strings.Contains(before.String(), "current version: none") || strings.Contains(before.String(), "pending: 0") {
		t.Fatalf("expected pending migrations on a fresh database, got:\n%s", before.String())
	}

	if err := run(ctx, cfg, "up", &strings.Builder{}, logger); err != nil {
		t.Fatalf("up: %v", err)
	}
	// a second run has nothing left to apply
	if err := run(ctx, cfg, "up", &strings.Builder{}, logger); err != nil {
		t.Fatalf("second up: %v", err)
	}

	var after strings.Builder
	if err := run(ctx, cfg, "status", &after, logger); err != nil {
		t.Fatalf("status after migrating: %v", err)
	}
	if !strings.Contains(after.String(), "pending: 0") || strings.Contains(after.String(), "[ ]") {
		t.Fatalf("expected no pending migrations, got:\n%s", after.String())
	}
}

func TestRunUnknownCommand(t *testing.T) {
	cfg := config.Default()
	cfg.DatabaseURL = filepath.Join(t.TempDir(), "monitor.db")

	err := run(context.Background(), cfg, "down", &strings.Builder{}, testfixtures.DiscardLogger())
	if err == nil || !strings.Contains(err.Error(), `unknown command "down"`) {
		t.Fatalf("expected unknown command error, got %v", err)
	}
}
