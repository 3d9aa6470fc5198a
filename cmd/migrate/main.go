// Command migrate applies or reports the embedded database migrations.
//
//	migrate up       apply every pending migration
//	migrate status   print applied and pending versions
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/example/listening-monitor/internal/config"
	"github.com/example/listening-monitor/internal/logging"
	"github.com/example/listening-monitor/internal/persistence/sqlstore"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	flag.Usage = func() {
		fmt.Fprintln(flag.CommandLine.Output(), "usage: migrate [up|status]")
	}
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger := logging.NewLogger(cfg.LogLevel, cfg.LogFormat)

	command := flag.Arg(0)
	if command == "" {
		command = "up"
	}
	if err := run(ctx, cfg, command, os.Stdout, logger); err != nil {
		logger.Error("migration command failed", "command", command, "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, command string, out io.Writer, logger *slog.Logger) error {
	dialect, err := sqlstore.ParseDialect(cfg.DBDriver)
	if err != nil {
		return err
	}
	storage, err := sqlstore.Open(ctx, sqlstore.DefaultConfig(dialect, cfg.DatabaseURL))
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer storage.Close()

	migrator := storage.Migrator(logger)
	switch command {
	case "up":
		return migrator.RunMigrations(ctx)
	case "status":
		status, err := migrator.GetMigrationStatus(ctx)
		if err != nil {
			return err
		}
		current := status.CurrentVersion
		if current == "" {
			current = "none"
		}
		fmt.Fprintf(out, "driver: %s\ncurrent version: %s\napplied: %d\npending: %d\n",
			dialect, current, len(status.AppliedMigrations), status.PendingCount)
		for _, m := range status.AppliedMigrations {
			fmt.Fprintf(out, "  [x] %s applied %s\n", m.Version, m.AppliedAt.Format("2006-01-02 15:04:05"))
		}
		for _, m := range status.PendingMigrations {
			fmt.Fprintf(out, "  [ ] %s %s\n", m.Version, m.Description)
		}
		return nil
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}
