package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/listening-monitor/internal/persistence"
)

// SessionRepository implements persistence.SessionRepository.
type SessionRepository struct {
	repositories
}

const sessionColumns = `id, session_id, user_id, status, start_time, end_time, location_lat, location_lng,
	audio_file_path, duration_seconds, created_at, updated_at`

// CreateSession inserts a session. A second active session for the same user
// is rejected by the partial unique index with persistence.ErrDuplicate.
func (r *SessionRepository) CreateSession(ctx context.Context, session persistence.Session) (persistence.Session, error) {
	if strings.TrimSpace(session.SessionID) == "" || strings.TrimSpace(session.UserID) == "" {
		return persistence.Session{}, persistence.ErrConstraintViolation
	}
	if session.Status == "" {
		session.Status = persistence.SessionStatusActive
	}
	session.StartTime = r.timestamp(session.StartTime)
	session.CreatedAt = r.timestamp(session.CreatedAt)
	session.UpdatedAt = session.CreatedAt

	err := r.queryRow(ctx, `
		INSERT INTO sessions (session_id, user_id, status, start_time, end_time, location_lat, location_lng,
			audio_file_path, duration_seconds, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`,
		session.SessionID,
		session.UserID,
		string(session.Status),
		formatTime(session.StartTime),
		nullTime(session.EndTime),
		nullFloat(session.LocationLat),
		nullFloat(session.LocationLng),
		nullString(session.AudioFilePath),
		session.DurationSeconds,
		formatTime(session.CreatedAt),
		formatTime(session.UpdatedAt),
	).Scan(&session.ID)
	if err != nil {
		return persistence.Session{}, fmt.Errorf("create session %s: %w", session.SessionID, mapError(err))
	}
	return session, nil
}

// GetSession returns nil when the session does not exist.
func (r *SessionRepository) GetSession(ctx context.Context, sessionID string) (*persistence.Session, error) {
	return r.getOne(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE session_id = ?`, sessionID)
}

// GetActiveSession returns nil when the user has no active session.
func (r *SessionRepository) GetActiveSession(ctx context.Context, userID string) (*persistence.Session, error) {
	return r.getOne(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE user_id = ? AND status = ?`,
		userID, string(persistence.SessionStatusActive))
}

// ListActiveSessions returns every active session, newest start first.
func (r *SessionRepository) ListActiveSessions(ctx context.Context) ([]persistence.Session, error) {
	return r.ListSessions(ctx, persistence.SessionFilter{
		Statuses: []persistence.SessionStatus{persistence.SessionStatusActive},
	})
}

// ListUserSessions returns the user's sessions, newest start first.
func (r *SessionRepository) ListUserSessions(ctx context.Context, userID string, limit int) ([]persistence.Session, error) {
	return r.ListSessions(ctx, persistence.SessionFilter{UserID: userID, Limit: limit})
}

// ListSessions returns matching sessions, newest start first.
func (r *SessionRepository) ListSessions(ctx context.Context, filter persistence.SessionFilter) ([]persistence.Session, error) {
	where, args := sessionWhere(filter)
	query := `SELECT ` + sessionColumns + ` FROM sessions` + where + ` ORDER BY start_time DESC, id DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}
	return r.list(ctx, query, args...)
}

// SearchSessions matches query as a case-insensitive substring of session_id or user_id.
func (r *SessionRepository) SearchSessions(ctx context.Context, query string) ([]persistence.Session, error) {
	pattern := "%" + escapeLike(strings.ToLower(strings.TrimSpace(query))) + "%"
	return r.list(ctx, `
		SELECT `+sessionColumns+` FROM sessions
		WHERE LOWER(session_id) LIKE ? ESCAPE '\' OR LOWER(user_id) LIKE ? ESCAPE '\'
		ORDER BY start_time DESC, id DESC
	`, pattern, pattern)
}

// UpdateSession writes status, end time, audio path and duration. Identity,
// owner, start time and captured location are immutable.
func (r *SessionRepository) UpdateSession(ctx context.Context, session persistence.Session) (persistence.Session, error) {
	if strings.TrimSpace(session.SessionID) == "" {
		return persistence.Session{}, persistence.ErrConstraintViolation
	}
	session.UpdatedAt = r.timestamp(session.UpdatedAt)

	res, err := r.exec(ctx, `
		UPDATE sessions
		SET status = ?, end_time = ?, audio_file_path = ?, duration_seconds = ?, updated_at = ?
		WHERE session_id = ?
	`,
		string(session.Status),
		nullTime(session.EndTime),
		nullString(session.AudioFilePath),
		session.DurationSeconds,
		formatTime(session.UpdatedAt),
		session.SessionID,
	)
	if err != nil {
		return persistence.Session{}, fmt.Errorf("update session %s: %w", session.SessionID, err)
	}
	if err := requireAffected(res); err != nil {
		return persistence.Session{}, err
	}

	stored, err := r.GetSession(ctx, session.SessionID)
	if err != nil {
		return persistence.Session{}, err
	}
	if stored == nil {
		return persistence.Session{}, persistence.ErrNotFound
	}
	return *stored, nil
}

// AttachRecording back-fills the audio path and duration in a single
// statement so a concurrent stop is never overwritten.
func (r *SessionRepository) AttachRecording(ctx context.Context, sessionID, audioFilePath string, durationSeconds int64, at time.Time) (*persistence.Session, error) {
	if strings.TrimSpace(sessionID) == "" || strings.TrimSpace(audioFilePath) == "" {
		return nil, persistence.ErrConstraintViolation
	}

	res, err := r.exec(ctx, `
		UPDATE sessions
		SET audio_file_path = ?, duration_seconds = ?, updated_at = ?
		WHERE session_id = ?
	`,
		audioFilePath,
		durationSeconds,
		formatTime(r.timestamp(at)),
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("attach recording to session %s: %w", sessionID, mapError(err))
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, fmt.Errorf("attach recording to session %s: %w", sessionID, err)
	} else if n == 0 {
		return nil, nil
	}
	return r.GetSession(ctx, sessionID)
}

func (r *SessionRepository) getOne(ctx context.Context, query string, args ...any) (*persistence.Session, error) {
	session, err := scanSession(r.queryRow(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", mapError(err))
	}
	return &session, nil
}

func (r *SessionRepository) list(ctx context.Context, query string, args ...any) ([]persistence.Session, error) {
	rows, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	sessions := make([]persistence.Session, 0)
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

// sessionWhere renders the filter as a WHERE clause with '?' placeholders.
func sessionWhere(filter persistence.SessionFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if filter.UserID != "" {
		conds = append(conds, "user_id = ?")
		args = append(args, filter.UserID)
	}
	if len(filter.Statuses) > 0 {
		marks := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			marks[i] = "?"
			args = append(args, string(status))
		}
		conds = append(conds, "status IN ("+strings.Join(marks, ", ")+")")
	}
	if filter.CreatedSince != nil {
		conds = append(conds, "created_at >= ?")
		args = append(args, formatTime(*filter.CreatedSince))
	}
	if filter.CreatedBefore != nil {
		conds = append(conds, "created_at < ?")
		args = append(args, formatTime(*filter.CreatedBefore))
	}
	if filter.StartedBefore != nil {
		conds = append(conds, "start_time < ?")
		args = append(args, formatTime(*filter.StartedBefore))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func scanSession(row rowScanner) (persistence.Session, error) {
	var (
		session          persistence.Session
		status           string
		start, endTime   sql.NullString
		lat, lng         sql.NullFloat64
		audioPath        sql.NullString
		created, updated string
	)
	if err := row.Scan(
		&session.ID,
		&session.SessionID,
		&session.UserID,
		&status,
		&start,
		&endTime,
		&lat,
		&lng,
		&audioPath,
		&session.DurationSeconds,
		&created,
		&updated,
	); err != nil {
		return persistence.Session{}, err
	}

	var err error
	session.Status = persistence.SessionStatus(status)
	session.LocationLat = floatPtr(lat)
	session.LocationLng = floatPtr(lng)
	session.AudioFilePath = stringPtr(audioPath)
	if session.StartTime, err = parseTime(start.String); err != nil {
		return persistence.Session{}, err
	}
	if session.EndTime, err = parseNullTime(endTime); err != nil {
		return persistence.Session{}, err
	}
	if session.CreatedAt, err = parseTime(created); err != nil {
		return persistence.Session{}, err
	}
	if session.UpdatedAt, err = parseTime(updated); err != nil {
		return persistence.Session{}, err
	}
	return session, nil
}
