package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/example/listening-monitor/internal/application"
	"github.com/example/listening-monitor/internal/config"
	httptransport "github.com/example/listening-monitor/internal/http"
	"github.com/example/listening-monitor/internal/persistence/sqlstore"
	"github.com/example/listening-monitor/internal/persistence/sqlstore/migration"
	"github.com/example/listening-monitor/internal/timeline"
	"github.com/example/listening-monitor/internal/worker"
)

// app owns the long-lived resources of the server process.
type app struct {
	storage    *sqlstore.Storage
	handler    http.Handler
	stopWorker func()
	logger     *slog.Logger
}

func newApp(ctx context.Context, cfg config.Config, logger *slog.Logger) (*app, error) {
	dialect, err := sqlstore.ParseDialect(cfg.DBDriver)
	if err != nil {
		return nil, err
	}
	storage, err := sqlstore.Open(ctx, sqlstore.DefaultConfig(dialect, cfg.DatabaseURL))
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}
	a := &app{storage: storage, logger: logger}

	migrator := storage.Migrator(logger)
	if cfg.AutoMigrate {
		err = migrator.RunMigrations(ctx)
	} else {
		err = migration.RequireUpToDate(ctx, migrator)
	}
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("database schema is not ready: %w", err)
	}

	now := time.Now
	calendar := timeline.NewCalendar(cfg.Location)
	lifecycle := application.NewLifecycleServiceWithLogger(storage, nil, now, logger)
	analytics := application.NewAnalyticsServiceWithLogger(storage, calendar, cfg.StuckSessionThreshold, now, logger)
	retention := application.NewRetentionServiceWithLogger(storage, now, logger)
	directory := application.NewDirectoryService(storage, logger)

	if cfg.SchedulerEnabled() {
		stop, err := worker.Start(worker.Options{
			RedisURL:      cfg.RedisURL,
			Schedule:      cfg.CleanupSchedule,
			Location:      cfg.Location,
			RetentionDays: cfg.RetentionDays,
		}, retention, logger)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.stopWorker = stop
	} else {
		logger.Info("scheduled cleanup disabled, no Redis URL configured")
	}

	a.handler = httptransport.NewRouter(httptransport.RouterConfig{
		Sessions:    httptransport.NewSessionHandler(lifecycle, logger),
		Directory:   httptransport.NewDirectoryHandler(directory, now, logger),
		Analytics:   httptransport.NewAnalyticsHandler(analytics, now, logger),
		Maintenance: httptransport.NewMaintenanceHandler(retention, cfg.RetentionDays, version, now, logger),
		RateLimiter: httptransport.NewRateLimiter(cfg.RateLimit, cfg.RateBurst),
		Logger:      logger,
		Middleware: []func(http.Handler) http.Handler{
			httptransport.RequestLogger(logger),
			httptransport.ClientIP(),
		},
	})
	return a, nil
}

// Close stops the worker and releases the database.
func (a *app) Close() {
	if a.stopWorker != nil {
		a.stopWorker()
		a.stopWorker = nil
	}
	if a.storage != nil {
		if err := a.storage.Close(); err != nil {
			a.logger.Error("failed to close storage", "error", err)
		}
		a.storage = nil
	}
}
