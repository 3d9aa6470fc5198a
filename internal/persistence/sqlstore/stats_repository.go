package sqlstore

import (
	"context"
	"fmt"
	"time"

	"github.com/example/listening-monitor/internal/persistence"
)

// StatsRepository implements persistence.StatsRepository with aggregate queries.
type StatsRepository struct {
	repositories
}

func (r *StatsRepository) CountUsers(ctx context.Context) (int64, error) {
	n, err := r.count(ctx, `SELECT COUNT(*) FROM users`)
	if err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

// CountUsersByStatus reports every known status, including those with no users.
func (r *StatsRepository) CountUsersByStatus(ctx context.Context) (map[persistence.UserStatus]int64, error) {
	counts := map[persistence.UserStatus]int64{
		persistence.UserStatusOffline:   0,
		persistence.UserStatusIdle:      0,
		persistence.UserStatusListening: 0,
	}

	rows, err := r.query(ctx, `SELECT status, COUNT(*) FROM users GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count users by status: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			status string
			n      int64
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		counts[persistence.UserStatus(status)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate status counts: %w", err)
	}
	return counts, nil
}

func (r *StatsRepository) CountSessions(ctx context.Context, filter persistence.SessionFilter) (int64, error) {
	where, args := sessionWhere(filter)
	n, err := r.count(ctx, `SELECT COUNT(*) FROM sessions`+where, args...)
	if err != nil {
		return 0, fmt.Errorf("count sessions: %w", err)
	}
	return n, nil
}

func (r *StatsRepository) CountRecordings(ctx context.Context, filter persistence.RecordingFilter) (int64, error) {
	where, args := recordingWhere(filter)
	n, err := r.count(ctx, `SELECT COUNT(*) FROM recordings`+where, args...)
	if err != nil {
		return 0, fmt.Errorf("count recordings: %w", err)
	}
	return n, nil
}

// SumSessionDurations counts matching sessions and totals their durations.
func (r *StatsRepository) SumSessionDurations(ctx context.Context, filter persistence.SessionFilter) (persistence.DurationTotals, error) {
	where, args := sessionWhere(filter)
	var totals persistence.DurationTotals
	err := r.queryRow(ctx,
		`SELECT COUNT(*), CAST(COALESCE(SUM(duration_seconds), 0) AS BIGINT) FROM sessions`+where,
		args...,
	).Scan(&totals.Sessions, &totals.TotalSeconds)
	if err != nil {
		return persistence.DurationTotals{}, fmt.Errorf("sum session durations: %w", mapError(err))
	}
	return totals, nil
}

// SessionCreationTimes returns created_at of every matching session in ascending order.
func (r *StatsRepository) SessionCreationTimes(ctx context.Context, filter persistence.SessionFilter) ([]time.Time, error) {
	where, args := sessionWhere(filter)
	rows, err := r.query(ctx, `SELECT created_at FROM sessions`+where+` ORDER BY created_at ASC`, args...)
	if err != nil {
		return nil, fmt.Errorf("session creation times: %w", err)
	}
	defer rows.Close()

	times := make([]time.Time, 0)
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan created_at: %w", err)
		}
		t, err := parseTime(raw)
		if err != nil {
			return nil, err
		}
		times = append(times, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate creation times: %w", err)
	}
	return times, nil
}

// CountOrphanedRecordings counts recordings whose session row no longer exists.
func (r *StatsRepository) CountOrphanedRecordings(ctx context.Context) (int64, error) {
	n, err := r.count(ctx, `
		SELECT COUNT(*) FROM recordings r
		WHERE NOT EXISTS (SELECT 1 FROM sessions s WHERE s.session_id = r.session_id)
	`)
	if err != nil {
		return 0, fmt.Errorf("count orphaned recordings: %w", err)
	}
	return n, nil
}
