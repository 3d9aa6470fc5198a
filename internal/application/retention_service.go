package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/listening-monitor/internal/persistence"
)

// DefaultRetentionDays is the retention window used when none is configured.
const DefaultRetentionDays = 30

// RetentionService purges system logs and completed sessions older than a
// retention window.
type RetentionService struct {
	store  persistence.Store
	now    func() time.Time
	logger *slog.Logger
}

// NewRetentionService constructs a retention service with the provided dependencies.
func NewRetentionService(store persistence.Store, now func() time.Time) *RetentionService {
	return NewRetentionServiceWithLogger(store, now, nil)
}

// NewRetentionServiceWithLogger constructs a retention service with a specified logger.
func NewRetentionServiceWithLogger(store persistence.Store, now func() time.Time, logger *slog.Logger) *RetentionService {
	if now == nil {
		now = time.Now
	}
	return &RetentionService{store: store, now: now, logger: defaultLogger(logger)}
}

func (s *RetentionService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "RetentionService", operation, attrs...)
}

// CleanupOldData deletes logs older than the cutoff and completed sessions
// created before it. Active and failed sessions are kept.
//
// A run that deletes something appends a cleanup entry stamped at the current
// time. The newest cleanup entry is kept until a later run deletes something
// else, so repeating a run without new expired rows deletes nothing.
func (s *RetentionService) CleanupOldData(ctx context.Context, daysToKeep int) (report CleanupReport, err error) {
	if s == nil || s.store == nil {
		err = fmt.Errorf("RetentionService is not configured")
		return
	}
	logger := s.loggerWith(ctx, "CleanupOldData", "days_to_keep", daysToKeep)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "cleanup failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "cleanup completed",
			"cutoff", report.CutoffDate,
			"deleted_logs", report.DeletedLogs,
			"deleted_sessions", report.DeletedSessions,
		)
	}()

	if vErr := validateRetention(daysToKeep); vErr.HasErrors() {
		err = vErr
		return
	}

	now := s.now().UTC()
	report.CutoffDate = cutoffFor(now, daysToKeep)
	err = s.store.WithTx(ctx, func(repos persistence.Repositories) error {
		retention := repos.Retention()
		keepID, err := lastCleanupID(ctx, repos)
		if err != nil {
			return err
		}
		if report.DeletedLogs, err = retention.DeleteLogsBefore(ctx, report.CutoffDate, keepID); err != nil {
			return fmt.Errorf("delete logs: %w", err)
		}
		if report.DeletedSessions, err = retention.DeleteCompletedSessionsBefore(ctx, report.CutoffDate); err != nil {
			return fmt.Errorf("delete sessions: %w", err)
		}
		if report.DeletedLogs+report.DeletedSessions == 0 {
			return nil
		}
		// the new entry supersedes the previous one
		superseded, err := retention.DeleteLogsBefore(ctx, report.CutoffDate, 0)
		if err != nil {
			return fmt.Errorf("delete superseded cleanup entry: %w", err)
		}
		report.DeletedLogs += superseded
		if _, err := repos.Logs().AppendLog(ctx, persistence.SystemLog{
			Action:    persistence.ActionCleanup,
			IPAddress: clientIP(ctx, ""),
			Details: details("Cleanup removed %d logs and %d sessions older than %d days",
				report.DeletedLogs, report.DeletedSessions, daysToKeep),
			Timestamp: now,
		}); err != nil {
			return fmt.Errorf("append audit entry: %w", err)
		}
		return nil
	})
	if err != nil {
		report = CleanupReport{}
	}
	return
}

// PreviewCleanup reports what CleanupOldData would delete without changing anything.
func (s *RetentionService) PreviewCleanup(ctx context.Context, daysToKeep int) (report CleanupReport, err error) {
	if s == nil || s.store == nil {
		err = fmt.Errorf("RetentionService is not configured")
		return
	}
	if vErr := validateRetention(daysToKeep); vErr.HasErrors() {
		err = vErr
		return
	}

	report = CleanupReport{CutoffDate: cutoffFor(s.now().UTC(), daysToKeep), DryRun: true}
	err = s.store.WithReadTx(ctx, func(repos persistence.Repositories) error {
		retention := repos.Retention()
		keepID, err := lastCleanupID(ctx, repos)
		if err != nil {
			return err
		}
		if report.DeletedLogs, err = retention.CountLogsBefore(ctx, report.CutoffDate, keepID); err != nil {
			return err
		}
		if report.DeletedSessions, err = retention.CountCompletedSessionsBefore(ctx, report.CutoffDate); err != nil {
			return err
		}
		if keepID == 0 || report.DeletedLogs+report.DeletedSessions == 0 {
			return nil
		}
		all, err := retention.CountLogsBefore(ctx, report.CutoffDate, 0)
		if err != nil {
			return err
		}
		report.DeletedLogs = all
		return nil
	})
	if err != nil {
		s.loggerWith(ctx, "PreviewCleanup", "days_to_keep", daysToKeep).
			ErrorContext(ctx, "cleanup preview failed", "error", err, "error_kind", ErrorKind(err))
		report = CleanupReport{}
	}
	return
}

func lastCleanupID(ctx context.Context, repos persistence.Repositories) (int64, error) {
	last, err := repos.Logs().LatestLog(ctx, persistence.ActionCleanup)
	if err != nil {
		return 0, fmt.Errorf("find last cleanup: %w", err)
	}
	if last == nil {
		return 0, nil
	}
	return last.ID, nil
}

func cutoffFor(now time.Time, days int) time.Time {
	return now.Add(-time.Duration(days) * 24 * time.Hour)
}

func validateRetention(days int) *ValidationError {
	vErr := &ValidationError{}
	if days < 0 {
		vErr.add("days", "days to keep must not be negative")
	}
	return vErr
}
