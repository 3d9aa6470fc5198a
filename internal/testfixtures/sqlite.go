package testfixtures

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/example/listening-monitor/internal/persistence/sqlstore"
)

// StoreHarness wraps a migrated SQLite store in a temporary directory. The
// store fills missing timestamps from Clock.
type StoreHarness struct {
	Store *sqlstore.Storage
	Clock *Clock

	cleanup func()
}

// Close releases the database handle. It is also registered with tb.Cleanup.
func (h *StoreHarness) Close() {
	if h != nil && h.cleanup != nil {
		h.cleanup()
		h.cleanup = nil
	}
}

// NewStoreHarness opens and migrates a fresh SQLite database. A nil clock
// selects one starting at ReferenceTime.
func NewStoreHarness(tb testing.TB, clock *Clock) *StoreHarness {
	tb.Helper()

	if clock == nil {
		clock = NewClock(ReferenceTime())
	}
	path := filepath.Join(tb.TempDir(), "monitor.db")

	ctx := context.Background()
	storage, err := sqlstore.Open(ctx, sqlstore.DefaultConfig(sqlstore.DialectSQLite, path), sqlstore.WithClock(clock.NowFunc()))
	if err != nil {
		tb.Fatalf("failed to open storage: %v", err)
	}
	if err := storage.Migrate(ctx, DiscardLogger()); err != nil {
		_ = storage.Close()
		tb.Fatalf("failed to migrate storage: %v", err)
	}

	harness := &StoreHarness{
		Store: storage,
		Clock: clock,
		cleanup: func() {
			_ = storage.Close()
		},
	}
	tb.Cleanup(harness.Close)
	return harness
}

// DiscardLogger returns a logger that drops every record.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
