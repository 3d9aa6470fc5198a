package testfixtures

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/example/listening-monitor/internal/persistence"
)

var (
	userCounter      uint64
	sessionCounter   uint64
	recordingCounter uint64
)

// ----------------------------- User fixtures -----------------------------

// UserOption configures a generated user.
type UserOption func(*persistence.User)

// NewUser returns a deterministic offline user with optional overrides.
func NewUser(opts ...UserOption) persistence.User {
	idx := atomic.AddUint64(&userCounter, 1)
	id := fmt.Sprintf("user%03d", idx)
	created := referenceTime.Add(-time.Duration(idx) * time.Hour)
	user := persistence.User{
		UserID:       id,
		PhoneNumber:  "+234" + id,
		Status:       persistence.UserStatusOffline,
		LastActivity: created,
		CreatedAt:    created,
		UpdatedAt:    created,
	}
	for _, opt := range opts {
		opt(&user)
	}
	return user
}

// WithUserID overrides the generated user identifier.
func WithUserID(id string) UserOption {
	return func(u *persistence.User) {
		u.UserID = id
		u.PhoneNumber = "+234" + id
	}
}

// WithPhoneNumber overrides the generated phone number.
func WithPhoneNumber(phone string) UserOption {
	return func(u *persistence.User) {
		u.PhoneNumber = phone
	}
}

// WithLocation sets the user's last known position.
func WithLocation(lat, lng float64) UserOption {
	return func(u *persistence.User) {
		u.Latitude = &lat
		u.Longitude = &lng
	}
}

// WithLastActivity sets last_activity and both row timestamps.
func WithLastActivity(t time.Time) UserOption {
	return func(u *persistence.User) {
		u.LastActivity = t
		u.CreatedAt = t
		u.UpdatedAt = t
	}
}

// --------------------------- Session fixtures ----------------------------

// SessionOption configures a generated session.
type SessionOption func(*persistence.Session)

// NewSession returns a completed session for userID that ran for duration
// starting at start.
func NewSession(userID string, start time.Time, duration time.Duration, opts ...SessionOption) persistence.Session {
	idx := atomic.AddUint64(&sessionCounter, 1)
	end := start.Add(duration)
	session := persistence.Session{
		SessionID:       fmt.Sprintf("sess_%s_%s_%08x", userID, start.UTC().Format("20060102_150405"), idx),
		UserID:          userID,
		Status:          persistence.SessionStatusCompleted,
		StartTime:       start,
		EndTime:         &end,
		DurationSeconds: int64(duration / time.Second),
		CreatedAt:       start,
		UpdatedAt:       end,
	}
	for _, opt := range opts {
		opt(&session)
	}
	return session
}

// Active turns the session into an open one.
func Active() SessionOption {
	return func(s *persistence.Session) {
		s.Status = persistence.SessionStatusActive
		s.EndTime = nil
		s.DurationSeconds = 0
		s.UpdatedAt = s.StartTime
	}
}

// Failed marks the session as failed, keeping its end time.
func Failed() SessionOption {
	return func(s *persistence.Session) {
		s.Status = persistence.SessionStatusFailed
	}
}

// CreatedAt overrides the session creation time independently of start_time.
func CreatedAt(t time.Time) SessionOption {
	return func(s *persistence.Session) {
		s.CreatedAt = t
	}
}

// WithSessionLocation sets the captured location.
func WithSessionLocation(lat, lng float64) SessionOption {
	return func(s *persistence.Session) {
		s.LocationLat = &lat
		s.LocationLng = &lng
	}
}

// -------------------------- Recording fixtures ---------------------------

// NewRecording returns recording metadata attached to sessionID.
func NewRecording(userID, sessionID string, created time.Time) persistence.Recording {
	idx := atomic.AddUint64(&recordingCounter, 1)
	return persistence.Recording{
		SessionID:       sessionID,
		UserID:          userID,
		FilePath:        fmt.Sprintf("recordings/%s/rec_%04d.mp3", userID, idx),
		FileSizeBytes:   int64(1024 * idx),
		DurationSeconds: 60,
		AudioFormat:     "mp3",
		Quality:         "standard",
		CreatedAt:       created,
	}
}

// ------------------------------- Seeding ---------------------------------

// SeedUser stores user and returns the persisted row.
func SeedUser(tb testing.TB, store persistence.Store, user persistence.User) persistence.User {
	tb.Helper()
	stored, err := store.Users().CreateUserIfNotExists(context.Background(), user)
	if err != nil {
		tb.Fatalf("seed user %s: %v", user.UserID, err)
	}
	return stored
}

// SeedSession stores session, creating its user on demand, and keeps the
// user's status consistent with an active session.
func SeedSession(tb testing.TB, store persistence.Store, session persistence.Session) persistence.Session {
	tb.Helper()
	ctx := context.Background()
	var stored persistence.Session
	err := store.WithTx(ctx, func(repos persistence.Repositories) error {
		if _, err := repos.Users().CreateUserIfNotExists(ctx, NewUser(WithUserID(session.UserID), WithLastActivity(session.StartTime))); err != nil {
			return err
		}
		var err error
		if stored, err = repos.Sessions().CreateSession(ctx, session); err != nil {
			return err
		}
		if session.Status == persistence.SessionStatusActive {
			_, err = repos.Users().UpdateUserStatus(ctx, session.UserID, persistence.UserStatusListening, &stored.SessionID, session.StartTime)
		}
		return err
	})
	if err != nil {
		tb.Fatalf("seed session %s: %v", session.SessionID, err)
	}
	return stored
}

// SeedRecording stores recording metadata without touching its session.
func SeedRecording(tb testing.TB, store persistence.Store, recording persistence.Recording) persistence.Recording {
	tb.Helper()
	stored, err := store.Recordings().CreateRecording(context.Background(), recording)
	if err != nil {
		tb.Fatalf("seed recording %s: %v", recording.FilePath, err)
	}
	return stored
}

// SeedLog appends an audit entry with the given action and timestamp.
func SeedLog(tb testing.TB, store persistence.Store, action string, at time.Time) persistence.SystemLog {
	tb.Helper()
	entry, err := store.Logs().AppendLog(context.Background(), persistence.SystemLog{Action: action, Timestamp: at})
	if err != nil {
		tb.Fatalf("seed log %s: %v", action, err)
	}
	return entry
}
