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

// UserRepository implements persistence.UserRepository.
type UserRepository struct {
	repositories
}

const userColumns = `id, user_id, phone_number, status, latitude, longitude, last_activity,
	current_session_id, created_at, updated_at`

// CreateUserIfNotExists inserts the user unless the user_id is taken and
// returns the stored row. An existing row is returned unchanged.
func (r *UserRepository) CreateUserIfNotExists(ctx context.Context, user persistence.User) (persistence.User, error) {
	userID := strings.TrimSpace(user.UserID)
	if userID == "" {
		return persistence.User{}, persistence.ErrConstraintViolation
	}
	if user.Status == "" {
		user.Status = persistence.UserStatusOffline
	}
	if !user.Status.Valid() {
		return persistence.User{}, fmt.Errorf("%w: unknown user status %q", persistence.ErrConstraintViolation, user.Status)
	}

	createdAt := r.timestamp(user.CreatedAt)
	lastActivity := createdAt
	if !user.LastActivity.IsZero() {
		lastActivity = user.LastActivity.UTC()
	}

	query := `
		INSERT INTO users (user_id, phone_number, status, latitude, longitude, last_activity,
			current_session_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO NOTHING
	`
	if _, err := r.exec(ctx, query,
		userID,
		user.PhoneNumber,
		string(user.Status),
		nullFloat(user.Latitude),
		nullFloat(user.Longitude),
		formatTime(lastActivity),
		nullString(user.CurrentSessionID),
		formatTime(createdAt),
		formatTime(createdAt),
	); err != nil {
		return persistence.User{}, fmt.Errorf("create user %s: %w", userID, err)
	}

	stored, err := r.GetUser(ctx, userID)
	if err != nil {
		return persistence.User{}, err
	}
	if stored == nil {
		return persistence.User{}, fmt.Errorf("create user %s: %w", userID, persistence.ErrNotFound)
	}
	return *stored, nil
}

// GetUser returns nil when the user does not exist.
func (r *UserRepository) GetUser(ctx context.Context, userID string) (*persistence.User, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, nil
	}

	user, err := scanUser(r.queryRow(ctx, `SELECT `+userColumns+` FROM users WHERE user_id = ?`, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", userID, err)
	}
	return &user, nil
}

// ListUsers returns every user, most recently active first.
func (r *UserRepository) ListUsers(ctx context.Context) ([]persistence.User, error) {
	return r.listUsers(ctx, `SELECT `+userColumns+` FROM users ORDER BY last_activity DESC, id ASC`)
}

// ListUsersByStatus returns users in the given status, most recently active first.
func (r *UserRepository) ListUsersByStatus(ctx context.Context, status persistence.UserStatus) ([]persistence.User, error) {
	return r.listUsers(ctx,
		`SELECT `+userColumns+` FROM users WHERE status = ? ORDER BY last_activity DESC, id ASC`,
		string(status))
}

// SearchUsers matches query as a case-insensitive substring of user_id or phone number.
func (r *UserRepository) SearchUsers(ctx context.Context, query string) ([]persistence.User, error) {
	pattern := "%" + escapeLike(strings.ToLower(strings.TrimSpace(query))) + "%"
	return r.listUsers(ctx, `
		SELECT `+userColumns+` FROM users
		WHERE LOWER(user_id) LIKE ? ESCAPE '\' OR LOWER(phone_number) LIKE ? ESCAPE '\'
		ORDER BY last_activity DESC, id ASC
	`, pattern, pattern)
}

// UpdateUserStatus sets status, current session and last activity.
func (r *UserRepository) UpdateUserStatus(ctx context.Context, userID string, status persistence.UserStatus, sessionID *string, at time.Time) (*persistence.User, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown user status %q", persistence.ErrConstraintViolation, status)
	}
	at = r.timestamp(at)

	res, err := r.exec(ctx, `
		UPDATE users
		SET status = ?, current_session_id = ?, last_activity = ?, updated_at = ?
		WHERE user_id = ?
	`, string(status), nullString(sessionID), formatTime(at), formatTime(at), userID)
	if err != nil {
		return nil, fmt.Errorf("update user %s status: %w", userID, err)
	}
	if err := requireAffected(res); err != nil {
		return nil, err
	}
	return r.GetUser(ctx, userID)
}

// UpdateUserLocation records the user's last known position.
func (r *UserRepository) UpdateUserLocation(ctx context.Context, userID string, latitude, longitude float64, at time.Time) (*persistence.User, error) {
	at = r.timestamp(at)

	res, err := r.exec(ctx, `
		UPDATE users SET latitude = ?, longitude = ?, updated_at = ? WHERE user_id = ?
	`, latitude, longitude, formatTime(at), userID)
	if err != nil {
		return nil, fmt.Errorf("update user %s location: %w", userID, err)
	}
	if err := requireAffected(res); err != nil {
		return nil, err
	}
	return r.GetUser(ctx, userID)
}

// LockUser takes a row lock on PostgreSQL. SQLite write transactions already
// hold the database write lock, so nothing more is needed there.
func (r *UserRepository) LockUser(ctx context.Context, userID string) error {
	if r.dialect != DialectPostgres {
		return nil
	}
	var id int64
	err := r.queryRow(ctx, `SELECT id FROM users WHERE user_id = ? FOR UPDATE`, userID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return persistence.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("lock user %s: %w", userID, mapError(err))
	}
	return nil
}

func (r *UserRepository) listUsers(ctx context.Context, query string, args ...any) ([]persistence.User, error) {
	rows, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := make([]persistence.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return users, nil
}

func scanUser(row rowScanner) (persistence.User, error) {
	var (
		user                           persistence.User
		status                         string
		latitude, longitude            sql.NullFloat64
		lastActivity, created, updated string
		currentSession                 sql.NullString
	)
	if err := row.Scan(
		&user.ID,
		&user.UserID,
		&user.PhoneNumber,
		&status,
		&latitude,
		&longitude,
		&lastActivity,
		&currentSession,
		&created,
		&updated,
	); err != nil {
		return persistence.User{}, err
	}

	var err error
	user.Status = persistence.UserStatus(status)
	user.Latitude = floatPtr(latitude)
	user.Longitude = floatPtr(longitude)
	user.CurrentSessionID = stringPtr(currentSession)
	if user.LastActivity, err = parseTime(lastActivity); err != nil {
		return persistence.User{}, err
	}
	if user.CreatedAt, err = parseTime(created); err != nil {
		return persistence.User{}, err
	}
	if user.UpdatedAt, err = parseTime(updated); err != nil {
		return persistence.User{}, err
	}
	return user, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
