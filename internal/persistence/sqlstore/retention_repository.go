package sqlstore

import (
	"context"
	"fmt"
	"time"

	"github.com/example/listening-monitor/internal/persistence"
)

// RetentionRepository implements persistence.RetentionRepository.
type RetentionRepository struct {
	repositories
}

func (r *RetentionRepository) CountLogsBefore(ctx context.Context, cutoff time.Time, keepID int64) (int64, error) {
	n, err := r.count(ctx, `SELECT COUNT(*) FROM system_logs WHERE timestamp < ? AND id <> ?`, formatTime(cutoff), keepID)
	if err != nil {
		return 0, fmt.Errorf("count logs before cutoff: %w", err)
	}
	return n, nil
}

func (r *RetentionRepository) DeleteLogsBefore(ctx context.Context, cutoff time.Time, keepID int64) (int64, error) {
	res, err := r.exec(ctx, `DELETE FROM system_logs WHERE timestamp < ? AND id <> ?`, formatTime(cutoff), keepID)
	if err != nil {
		return 0, fmt.Errorf("delete logs before cutoff: %w", err)
	}
	return res.RowsAffected()
}

// CountCompletedSessionsBefore counts completed sessions created before cutoff.
// Active and failed sessions are never eligible.
func (r *RetentionRepository) CountCompletedSessionsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	n, err := r.count(ctx,
		`SELECT COUNT(*) FROM sessions WHERE created_at < ? AND status = ?`,
		formatTime(cutoff), string(persistence.SessionStatusCompleted))
	if err != nil {
		return 0, fmt.Errorf("count sessions before cutoff: %w", err)
	}
	return n, nil
}

func (r *RetentionRepository) DeleteCompletedSessionsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.exec(ctx,
		`DELETE FROM sessions WHERE created_at < ? AND status = ?`,
		formatTime(cutoff), string(persistence.SessionStatusCompleted))
	if err != nil {
		return 0, fmt.Errorf("delete sessions before cutoff: %w", err)
	}
	return res.RowsAffected()
}
