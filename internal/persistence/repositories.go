package persistence

import (
	"context"
	"time"
)

// UserRepository exposes read and write access to monitored users.
type UserRepository interface {
	// GetUser returns nil when no user has the given identifier.
	GetUser(ctx context.Context, userID string) (*User, error)
	// ListUsers returns every user, most recently active first.
	ListUsers(ctx context.Context) ([]User, error)
	ListUsersByStatus(ctx context.Context, status UserStatus) ([]User, error)
	SearchUsers(ctx context.Context, query string) ([]User, error)
	// CreateUserIfNotExists inserts the user unless a row with the same UserID
	// exists, and returns the stored row either way. Existing rows are never modified.
	CreateUserIfNotExists(ctx context.Context, user User) (User, error)
	UpdateUserStatus(ctx context.Context, userID string, status UserStatus, sessionID *string, at time.Time) (*User, error)
	UpdateUserLocation(ctx context.Context, userID string, latitude, longitude float64, at time.Time) (*User, error)
	// LockUser blocks concurrent writers for the user's row until the enclosing
	// transaction finishes.
	LockUser(ctx context.Context, userID string) error
}

// SessionFilter narrows session queries. Zero values disable a condition.
type SessionFilter struct {
	UserID        string
	Statuses      []SessionStatus
	CreatedSince  *time.Time
	CreatedBefore *time.Time
	StartedBefore *time.Time
	Limit         int
}

// SessionRepository stores listening sessions.
type SessionRepository interface {
	CreateSession(ctx context.Context, session Session) (Session, error)
	// GetSession returns nil when the session does not exist.
	GetSession(ctx context.Context, sessionID string) (*Session, error)
	// GetActiveSession returns nil when the user has no active session.
	GetActiveSession(ctx context.Context, userID string) (*Session, error)
	ListActiveSessions(ctx context.Context) ([]Session, error)
	ListUserSessions(ctx context.Context, userID string, limit int) ([]Session, error)
	// ListSessions returns matching sessions, most recently started first.
	ListSessions(ctx context.Context, filter SessionFilter) ([]Session, error)
	SearchSessions(ctx context.Context, query string) ([]Session, error)
	// UpdateSession writes the mutable fields: status, end time, audio file path and duration.
	UpdateSession(ctx context.Context, session Session) (Session, error)
	// AttachRecording sets only the audio path and duration of a session and
	// returns nil when the session does not exist. Status and end time are
	// left to the lifecycle writes.
	AttachRecording(ctx context.Context, sessionID, audioFilePath string, durationSeconds int64, at time.Time) (*Session, error)
}

// RecordingFilter narrows recording queries. Zero values disable a condition.
type RecordingFilter struct {
	UserID        string
	SessionID     string
	CreatedSince  *time.Time
	CreatedBefore *time.Time
	Limit         int
}

// RecordingRepository stores recording metadata.
type RecordingRepository interface {
	CreateRecording(ctx context.Context, recording Recording) (Recording, error)
	GetRecording(ctx context.Context, id int64) (*Recording, error)
	LatestRecordingForUser(ctx context.Context, userID string) (*Recording, error)
	ListSessionRecordings(ctx context.Context, sessionID string) ([]Recording, error)
	// ListRecordings returns matching recordings, newest first.
	ListRecordings(ctx context.Context, filter RecordingFilter) ([]Recording, error)
}

// SystemLogRepository stores the audit trail.
type SystemLogRepository interface {
	AppendLog(ctx context.Context, entry SystemLog) (SystemLog, error)
	ListRecentLogs(ctx context.Context, limit int) ([]SystemLog, error)
	// LatestLog returns the newest entry with the given action, or nil.
	LatestLog(ctx context.Context, action string) (*SystemLog, error)
}

// DurationTotals aggregates session durations.
type DurationTotals struct {
	Sessions     int64
	TotalSeconds int64
}

// StatsRepository answers aggregate questions without loading full rows.
type StatsRepository interface {
	CountUsers(ctx context.Context) (int64, error)
	CountUsersByStatus(ctx context.Context) (map[UserStatus]int64, error)
	CountSessions(ctx context.Context, filter SessionFilter) (int64, error)
	CountRecordings(ctx context.Context, filter RecordingFilter) (int64, error)
	SumSessionDurations(ctx context.Context, filter SessionFilter) (DurationTotals, error)
	SessionCreationTimes(ctx context.Context, filter SessionFilter) ([]time.Time, error)
	CountOrphanedRecordings(ctx context.Context) (int64, error)
}

// RetentionRepository purges expired rows.
type RetentionRepository interface {
	// CountLogsBefore and DeleteLogsBefore skip the entry with id keepID; zero keeps nothing.
	CountLogsBefore(ctx context.Context, cutoff time.Time, keepID int64) (int64, error)
	DeleteLogsBefore(ctx context.Context, cutoff time.Time, keepID int64) (int64, error)
	CountCompletedSessionsBefore(ctx context.Context, cutoff time.Time) (int64, error)
	DeleteCompletedSessionsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Repositories groups the repositories that share one connection or transaction.
type Repositories interface {
	Users() UserRepository
	Sessions() SessionRepository
	Recordings() RecordingRepository
	Logs() SystemLogRepository
	Stats() StatsRepository
	Retention() RetentionRepository
}

// Store is the entry point to durable storage.
type Store interface {
	Repositories
	// WithTx runs fn inside a read-write transaction. The transaction commits
	// when fn returns nil and rolls back otherwise.
	WithTx(ctx context.Context, fn func(Repositories) error) error
	// WithReadTx runs fn inside a read-only transaction so that all reads see
	// the same snapshot.
	WithReadTx(ctx context.Context, fn func(Repositories) error) error
	Ping(ctx context.Context) error
}
