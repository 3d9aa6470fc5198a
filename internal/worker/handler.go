package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/example/listening-monitor/internal/application"
)

// CleanupRunner performs retention cleanup.
type CleanupRunner interface {
	CleanupOldData(ctx context.Context, daysToKeep int) (application.CleanupReport, error)
	PreviewCleanup(ctx context.Context, daysToKeep int) (application.CleanupReport, error)
}

// HandleCleanup returns the asynq handler for TaskRetentionCleanup.
// Malformed payloads and invalid retention windows are not retried.
func HandleCleanup(runner CleanupRunner, defaultDays int, logger *slog.Logger) asynq.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	if defaultDays < 0 {
		defaultDays = application.DefaultRetentionDays
	}

	return func(ctx context.Context, task *asynq.Task) error {
		var payload CleanupPayload
		if len(task.Payload()) > 0 {
			if err := json.Unmarshal(task.Payload(), &payload); err != nil {
				return fmt.Errorf("invalid payload: %v: %w", err, asynq.SkipRetry)
			}
		}
		days := defaultDays
		if payload.DaysToKeep != nil {
			days = *payload.DaysToKeep
		}

		taskID, _ := asynq.GetTaskID(ctx)
		log := logger.With("task_type", task.Type(), "task_id", taskID, "days_to_keep", days, "dry_run", payload.DryRun)

		var (
			report application.CleanupReport
			err    error
		)
		if payload.DryRun {
			report, err = runner.PreviewCleanup(ctx, days)
		} else {
			report, err = runner.CleanupOldData(ctx, days)
		}
		if err != nil {
			var vErr *application.ValidationError
			if errors.As(err, &vErr) {
				log.ErrorContext(ctx, "cleanup task rejected", "error", err)
				return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
			}
			return fmt.Errorf("cleanup failed: %w", err)
		}

		log.InfoContext(ctx, "cleanup task completed",
			"cutoff", report.CutoffDate,
			"deleted_logs", report.DeletedLogs,
			"deleted_sessions", report.DeletedSessions,
		)
		return nil
	}
}

func errorHandler(logger *slog.Logger) asynq.ErrorHandlerFunc {
	return func(ctx context.Context, task *asynq.Task, err error) {
		retried, _ := asynq.GetRetryCount(ctx)
		maxRetry, _ := asynq.GetMaxRetry(ctx)

		logger.ErrorContext(ctx, "task execution failed",
			"task_type", task.Type(),
			"error", err,
			"retry_count", retried,
			"max_retry", maxRetry,
		)
		if retried >= maxRetry {
			logger.ErrorContext(ctx, "task archived after exhausting retries",
				"task_type", task.Type(),
				"payload", string(task.Payload()),
			)
		}
	}
}
