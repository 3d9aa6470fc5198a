package persistence

import "time"

// UserStatus describes what a monitored user is currently doing.
type UserStatus string

const (
	UserStatusOffline   UserStatus = "offline"
	UserStatusIdle      UserStatus = "idle"
	UserStatusListening UserStatus = "listening"
)

// Valid reports whether the status is one of the known values.
func (s UserStatus) Valid() bool {
	switch s {
	case UserStatusOffline, UserStatusIdle, UserStatusListening:
		return true
	}
	return false
}

// SessionStatus describes where a listening session is in its lifecycle.
type SessionStatus string

const (
	SessionStatusActive    SessionStatus = "active"
	SessionStatusCompleted SessionStatus = "completed"
	SessionStatusFailed    SessionStatus = "failed"
)

// Terminal reports whether the session can no longer change status.
func (s SessionStatus) Terminal() bool {
	return s == SessionStatusCompleted || s == SessionStatusFailed
}

// Audit actions written to the system log.
const (
	ActionStartListening = "start_listening"
	ActionStopListening  = "stop_listening"
	ActionUpload         = "upload"
	ActionError          = "error"
	ActionCleanup        = "cleanup"
)

// User is a monitored phone owner.
type User struct {
	ID               int64
	UserID           string
	PhoneNumber      string
	Status           UserStatus
	Latitude         *float64
	Longitude        *float64
	LastActivity     time.Time
	CurrentSessionID *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Session is one listening period for a single user.
type Session struct {
	ID              int64
	SessionID       string
	UserID          string
	Status          SessionStatus
	StartTime       time.Time
	EndTime         *time.Time
	LocationLat     *float64
	LocationLng     *float64
	AudioFilePath   *string
	DurationSeconds int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Recording is audio metadata captured during a session. SessionID is not
// enforced as a foreign key, so recordings may outlive their session.
type Recording struct {
	ID              int64
	SessionID       string
	UserID          string
	FilePath        string
	FileSizeBytes   int64
	DurationSeconds int64
	AudioFormat     string
	Quality         string
	CreatedAt       time.Time
}

// SystemLog is an append-only audit entry.
type SystemLog struct {
	ID        int64
	Action    string
	UserID    *string
	SessionID *string
	IPAddress *string
	Details   *string
	Timestamp time.Time
}
