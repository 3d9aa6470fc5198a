package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/example/listening-monitor/internal/persistence"
)

// SystemLogRepository implements persistence.SystemLogRepository.
type SystemLogRepository struct {
	repositories
}

// AppendLog inserts an audit entry.
func (r *SystemLogRepository) AppendLog(ctx context.Context, entry persistence.SystemLog) (persistence.SystemLog, error) {
	if strings.TrimSpace(entry.Action) == "" {
		return persistence.SystemLog{}, persistence.ErrConstraintViolation
	}
	entry.Timestamp = r.timestamp(entry.Timestamp)

	err := r.queryRow(ctx, `
		INSERT INTO system_logs (action, user_id, session_id, ip_address, details, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id
	`,
		entry.Action,
		nullString(entry.UserID),
		nullString(entry.SessionID),
		nullString(entry.IPAddress),
		nullString(entry.Details),
		formatTime(entry.Timestamp),
	).Scan(&entry.ID)
	if err != nil {
		return persistence.SystemLog{}, fmt.Errorf("append %s log: %w", entry.Action, mapError(err))
	}
	return entry, nil
}

// ListRecentLogs returns up to limit entries, newest first.
func (r *SystemLogRepository) ListRecentLogs(ctx context.Context, limit int) ([]persistence.SystemLog, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.query(ctx, `
		SELECT id, action, user_id, session_id, ip_address, details, timestamp
		FROM system_logs
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list logs: %w", err)
	}
	defer rows.Close()

	logs := make([]persistence.SystemLog, 0)
	for rows.Next() {
		entry, err := scanLog(rows)
		if err != nil {
			return nil, err
		}
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate logs: %w", err)
	}
	return logs, nil
}

// LatestLog returns the newest entry recorded for action.
func (r *SystemLogRepository) LatestLog(ctx context.Context, action string) (*persistence.SystemLog, error) {
	entry, err := scanLog(r.queryRow(ctx, `
		SELECT id, action, user_id, session_id, ip_address, details, timestamp
		FROM system_logs
		WHERE action = ?
		ORDER BY timestamp DESC, id DESC
		LIMIT 1
	`, action))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func scanLog(row rowScanner) (persistence.SystemLog, error) {
	var (
		entry                                 persistence.SystemLog
		userID, sessionID, ipAddress, details sql.NullString
		timestamp                             string
	)
	if err := row.Scan(&entry.ID, &entry.Action, &userID, &sessionID, &ipAddress, &details, &timestamp); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.SystemLog{}, err
		}
		return persistence.SystemLog{}, fmt.Errorf("scan log: %w", err)
	}
	entry.UserID = stringPtr(userID)
	entry.SessionID = stringPtr(sessionID)
	entry.IPAddress = stringPtr(ipAddress)
	entry.Details = stringPtr(details)

	var err error
	if entry.Timestamp, err = parseTime(timestamp); err != nil {
		return persistence.SystemLog{}, err
	}
	return entry, nil
}
