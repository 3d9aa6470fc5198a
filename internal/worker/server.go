package worker

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

// Options configures the background worker.
type Options struct {
	RedisURL string
	// Schedule is a cron expression for the periodic cleanup. Empty disables it.
	Schedule      string
	Location      *time.Location
	RetentionDays int
	Concurrency   int
}

// Start runs the task server and, when a schedule is set, the periodic
// cleanup scheduler. The returned stop function shuts both down.
func Start(opts Options, runner CleanupRunner, logger *slog.Logger) (stop func(), err error) {
	if logger == nil {
		logger = slog.Default()
	}
	redisOpt, err := asynq.ParseRedisURI(opts.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = 2
	}

	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency:     concurrency,
		ShutdownTimeout: 30 * time.Second,
		ErrorHandler:    errorHandler(logger),
		Logger:          newSlogAdapter(logger),
	})
	mux := asynq.NewServeMux()
	mux.Handle(TaskRetentionCleanup, HandleCleanup(runner, opts.RetentionDays, logger))
	if err := srv.Start(mux); err != nil {
		return nil, fmt.Errorf("failed to start worker: %w", err)
	}
	logger.Info("worker started", "concurrency", concurrency)

	if opts.Schedule == "" {
		return srv.Shutdown, nil
	}

	scheduler, err := newScheduler(redisOpt, opts, logger)
	if err != nil {
		srv.Shutdown()
		return nil, err
	}
	return func() {
		scheduler.Shutdown()
		srv.Shutdown()
	}, nil
}

func newScheduler(redisOpt asynq.RedisConnOpt, opts Options, logger *slog.Logger) (*asynq.Scheduler, error) {
	location := opts.Location
	if location == nil {
		location = time.Local
	}
	scheduler := asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{
		Location: location,
		LogLevel: asynq.InfoLevel,
		Logger:   newSlogAdapter(logger),
	})

	task, err := NewCleanupTask(CleanupPayload{DaysToKeep: Days(opts.RetentionDays)}, asynq.Unique(time.Hour))
	if err != nil {
		return nil, err
	}
	entryID, err := scheduler.Register(opts.Schedule, task)
	if err != nil {
		return nil, fmt.Errorf("failed to register cleanup schedule: %w", err)
	}
	if err := scheduler.Start(); err != nil {
		return nil, fmt.Errorf("failed to start scheduler: %w", err)
	}
	logger.Info("cleanup scheduler started", "schedule", opts.Schedule, "timezone", location.String(), "entry_id", entryID)
	return scheduler, nil
}
