package migration

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"
)

type mockScanner struct {
	migrations []Migration
	scanError  error
}

func (m *mockScanner) ScanMigrations(string) ([]Migration, error) {
	if m.scanError != nil {
		return nil, m.scanError
	}
	return m.migrations, nil
}

func (m *mockScanner) ValidateFileName(string) error { return nil }

type mockExecutor struct {
	applied        []AppliedMigration
	executionError error
	initError      error
	executionOrder []string
}

func (m *mockExecutor) ExecuteMigration(_ context.Context, migration Migration) (time.Duration, error) {
	if m.executionError != nil {
		return 0, m.executionError
	}
	m.executionOrder = append(m.executionOrder, migration.Version)
	m.applied = append(m.applied, AppliedMigration{Version: migration.Version, Checksum: migration.Checksum})
	return time.Millisecond, nil
}

func (m *mockExecutor) InitializeVersionTable(context.Context) error { return m.initError }

func (m *mockExecutor) GetAppliedVersions(context.Context) ([]AppliedMigration, error) {
	return m.applied, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func migrationsFor(versions ...string) []Migration {
	out := make([]Migration, 0, len(versions))
	for _, v := range versions {
		out = append(out, Migration{Version: v, Description: "m" + v, SQL: "SELECT " + v, Checksum: Checksum("SELECT " + v)})
	}
	return out
}

func TestManager_RunMigrations(t *testing.T) {
	ctx := context.Background()

	t.Run("applies pending migrations in order", func(t *testing.T) {
		executor := &mockExecutor{applied: []AppliedMigration{{Version: "001", Checksum: Checksum("SELECT 001")}}}
		m := NewManager(&mockScanner{migrations: migrationsFor("001", "002", "003")}, executor, Config{Dir: "x"}, quietLogger())

		if err := m.RunMigrations(ctx); err != nil {
			t.Fatalf("RunMigrations returned error: %v", err)
		}
		if got := executor.executionOrder; len(got) != 2 || got[0] != "002" || got[1] != "003" {
			t.Fatalf("unexpected execution order %v", got)
		}
	})

	t.Run("second run is a no-op", func(t *testing.T) {
		executor := &mockExecutor{}
		m := NewManager(&mockScanner{migrations: migrationsFor("001", "002")}, executor, Config{Dir: "x"}, quietLogger())

		if err := m.RunMigrations(ctx); err != nil {
			t.Fatalf("first run: %v", err)
		}
		if err := m.RunMigrations(ctx); err != nil {
			t.Fatalf("second run: %v", err)
		}
		if len(executor.executionOrder) != 2 {
			t.Fatalf("expected 2 executions, got %v", executor.executionOrder)
		}
	})

	t.Run("execution failure is wrapped", func(t *testing.T) {
		executor := &mockExecutor{executionError: errors.New("boom")}
		m := NewManager(&mockScanner{migrations: migrationsFor("001")}, executor, Config{Dir: "x"}, quietLogger())

		err := m.RunMigrations(ctx)
		if !errors.Is(err, ErrMigrationFailed) {
			t.Fatalf("expected ErrMigrationFailed, got %v", err)
		}
		var migrationErr *MigrationError
		if !errors.As(err, &migrationErr) || migrationErr.Version != "001" {
			t.Fatalf("expected MigrationError for 001, got %v", err)
		}
	})

	t.Run("gap in sequence", func(t *testing.T) {
		m := NewManager(&mockScanner{migrations: migrationsFor("001", "003")}, &mockExecutor{}, Config{Dir: "x"}, quietLogger())
		if err := m.RunMigrations(ctx); !errors.Is(err, ErrVersionConflict) {
			t.Fatalf("expected ErrVersionConflict, got %v", err)
		}
	})

	t.Run("applied version without file", func(t *testing.T) {
		executor := &mockExecutor{applied: []AppliedMigration{{Version: "001"}, {Version: "002"}}}
		m := NewManager(&mockScanner{migrations: migrationsFor("001")}, executor, Config{Dir: "x"}, quietLogger())
		if err := m.RunMigrations(ctx); !errors.Is(err, ErrVersionConflict) {
			t.Fatalf("expected ErrVersionConflict, got %v", err)
		}
	})

	t.Run("checksum drift", func(t *testing.T) {
		executor := &mockExecutor{applied: []AppliedMigration{{Version: "001", Checksum: Checksum("something else")}}}
		scanner := &mockScanner{migrations: migrationsFor("001")}

		m := NewManager(scanner, executor, Config{Dir: "x", VerifyChecksum: true}, quietLogger())
		if err := m.RunMigrations(ctx); !errors.Is(err, ErrChecksumMismatch) {
			t.Fatalf("expected ErrChecksumMismatch, got %v", err)
		}

		lenient := NewManager(scanner, executor, Config{Dir: "x"}, quietLogger())
		if err := lenient.RunMigrations(ctx); err != nil {
			t.Fatalf("expected drift to be ignored without verification, got %v", err)
		}
	})

	t.Run("init failure", func(t *testing.T) {
		executor := &mockExecutor{initError: errors.New("locked")}
		m := NewManager(&mockScanner{migrations: migrationsFor("001")}, executor, Config{Dir: "x"}, quietLogger())
		if err := m.RunMigrations(ctx); err == nil {
			t.Fatal("expected error")
		}
	})
}

func TestManager_Status(t *testing.T) {
	ctx := context.Background()
	executor := &mockExecutor{applied: []AppliedMigration{{Version: "001"}, {Version: "002"}}}
	m := NewManager(&mockScanner{migrations: migrationsFor("001", "002", "003")}, executor, Config{Dir: "x"}, quietLogger())

	status, err := m.GetMigrationStatus(ctx)
	if err != nil {
		t.Fatalf("GetMigrationStatus returned error: %v", err)
	}
	if status.CurrentVersion != "002" || status.PendingCount != 1 {
		t.Fatalf("unexpected status %+v", status)
	}

	if err := RequireUpToDate(ctx, m); !errors.Is(err, ErrPendingMigrations) {
		t.Fatalf("expected ErrPendingMigrations, got %v", err)
	}
	if err := m.RunMigrations(ctx); err != nil {
		t.Fatalf("RunMigrations returned error: %v", err)
	}
	if err := RequireUpToDate(ctx, m); err != nil {
		t.Fatalf("expected up to date, got %v", err)
	}
}
