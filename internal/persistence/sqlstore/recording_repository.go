package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/example/listening-monitor/internal/persistence"
)

// RecordingRepository implements persistence.RecordingRepository.
type RecordingRepository struct {
	repositories
}

const recordingColumns = `id, session_id, user_id, file_path, file_size_bytes, duration_seconds,
	audio_format, quality, created_at`

// CreateRecording inserts recording metadata. The session is not required to exist.
func (r *RecordingRepository) CreateRecording(ctx context.Context, recording persistence.Recording) (persistence.Recording, error) {
	if strings.TrimSpace(recording.UserID) == "" || strings.TrimSpace(recording.FilePath) == "" {
		return persistence.Recording{}, persistence.ErrConstraintViolation
	}
	if recording.AudioFormat == "" {
		recording.AudioFormat = "mp3"
	}
	if recording.Quality == "" {
		recording.Quality = "standard"
	}
	recording.CreatedAt = r.timestamp(recording.CreatedAt)

	err := r.queryRow(ctx, `
		INSERT INTO recordings (session_id, user_id, file_path, file_size_bytes, duration_seconds,
			audio_format, quality, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`,
		recording.SessionID,
		recording.UserID,
		recording.FilePath,
		recording.FileSizeBytes,
		recording.DurationSeconds,
		recording.AudioFormat,
		recording.Quality,
		formatTime(recording.CreatedAt),
	).Scan(&recording.ID)
	if err != nil {
		return persistence.Recording{}, fmt.Errorf("create recording %s: %w", recording.FilePath, mapError(err))
	}
	return recording, nil
}

// GetRecording returns nil when no recording has the id.
func (r *RecordingRepository) GetRecording(ctx context.Context, id int64) (*persistence.Recording, error) {
	return r.getOne(ctx, `SELECT `+recordingColumns+` FROM recordings WHERE id = ?`, id)
}

// LatestRecordingForUser returns the user's newest recording or nil.
func (r *RecordingRepository) LatestRecordingForUser(ctx context.Context, userID string) (*persistence.Recording, error) {
	return r.getOne(ctx, `
		SELECT `+recordingColumns+` FROM recordings
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`, userID)
}

// ListSessionRecordings returns the session's recordings in creation order.
func (r *RecordingRepository) ListSessionRecordings(ctx context.Context, sessionID string) ([]persistence.Recording, error) {
	return r.list(ctx, `
		SELECT `+recordingColumns+` FROM recordings
		WHERE session_id = ?
		ORDER BY created_at ASC, id ASC
	`, sessionID)
}

// ListRecordings returns matching recordings, newest first.
func (r *RecordingRepository) ListRecordings(ctx context.Context, filter persistence.RecordingFilter) ([]persistence.Recording, error) {
	where, args := recordingWhere(filter)
	query := `SELECT ` + recordingColumns + ` FROM recordings` + where + ` ORDER BY created_at DESC, id DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}
	return r.list(ctx, query, args...)
}

func (r *RecordingRepository) getOne(ctx context.Context, query string, args ...any) (*persistence.Recording, error) {
	recording, err := scanRecording(r.queryRow(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get recording: %w", mapError(err))
	}
	return &recording, nil
}

func (r *RecordingRepository) list(ctx context.Context, query string, args ...any) ([]persistence.Recording, error) {
	rows, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list recordings: %w", err)
	}
	defer rows.Close()

	recordings := make([]persistence.Recording, 0)
	for rows.Next() {
		recording, err := scanRecording(rows)
		if err != nil {
			return nil, fmt.Errorf("scan recording: %w", err)
		}
		recordings = append(recordings, recording)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recordings: %w", err)
	}
	return recordings, nil
}

func recordingWhere(filter persistence.RecordingFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if filter.UserID != "" {
		conds = append(conds, "user_id = ?")
		args = append(args, filter.UserID)
	}
	if filter.SessionID != "" {
		conds = append(conds, "session_id = ?")
		args = append(args, filter.SessionID)
	}
	if filter.CreatedSince != nil {
		conds = append(conds, "created_at >= ?")
		args = append(args, formatTime(*filter.CreatedSince))
	}
	if filter.CreatedBefore != nil {
		conds = append(conds, "created_at < ?")
		args = append(args, formatTime(*filter.CreatedBefore))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func scanRecording(row rowScanner) (persistence.Recording, error) {
	var (
		recording persistence.Recording
		created   string
	)
	if err := row.Scan(
		&recording.ID,
		&recording.SessionID,
		&recording.UserID,
		&recording.FilePath,
		&recording.FileSizeBytes,
		&recording.DurationSeconds,
		&recording.AudioFormat,
		&recording.Quality,
		&created,
	); err != nil {
		return persistence.Recording{}, err
	}
	var err error
	if recording.CreatedAt, err = parseTime(created); err != nil {
		return persistence.Recording{}, err
	}
	return recording, nil
}
