package application

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/example/listening-monitor/internal/persistence"
)

const maxUserIDLength = 128

// LifecycleService owns the session state machine: starting, stopping and
// attaching recordings. Every operation runs in a single store transaction.
type LifecycleService struct {
	store       persistence.Store
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewLifecycleService constructs a lifecycle service with the provided dependencies.
func NewLifecycleService(store persistence.Store, now func() time.Time) *LifecycleService {
	return NewLifecycleServiceWithLogger(store, nil, now, nil)
}

// NewLifecycleServiceWithLogger constructs a lifecycle service with a specified
// logger. idGenerator supplies the random suffix of session identifiers.
func NewLifecycleServiceWithLogger(store persistence.Store, idGenerator func() string, now func() time.Time, logger *slog.Logger) *LifecycleService {
	if idGenerator == nil {
		idGenerator = randomSuffix
	}
	if now == nil {
		now = time.Now
	}
	return &LifecycleService{store: store, idGenerator: idGenerator, now: now, logger: defaultLogger(logger)}
}

func (s *LifecycleService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "LifecycleService", operation, attrs...)
}

// StartSession opens a new active session for the user, creating the user on
// first contact and closing any session that is still active.
func (s *LifecycleService) StartSession(ctx context.Context, params StartSessionParams) (session persistence.Session, err error) {
	if s == nil || s.store == nil {
		err = fmt.Errorf("LifecycleService is not configured")
		return
	}

	userID := strings.TrimSpace(params.UserID)
	logger := s.loggerWith(ctx, "StartSession", "user_id", userID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to start session", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("session_id", session.SessionID).InfoContext(ctx, "session started")
	}()

	vErr := validateUserID(userID)
	vErr.merge(validateCoordinates(params.Latitude, params.Longitude))
	if vErr.HasErrors() {
		err = vErr
		return
	}

	now := s.now().UTC()
	ip := clientIP(ctx, params.IPAddress)
	sessionID := newSessionID(userID, now, s.idGenerator())

	err = s.store.WithTx(ctx, func(repos persistence.Repositories) error {
		users := repos.Users()
		if _, err := users.CreateUserIfNotExists(ctx, persistence.User{
			UserID:       userID,
			PhoneNumber:  defaultPhoneNumber(userID),
			Status:       persistence.UserStatusOffline,
			LastActivity: now,
			CreatedAt:    now,
		}); err != nil {
			return fmt.Errorf("ensure user: %w", err)
		}
		if err := users.LockUser(ctx, userID); err != nil {
			return fmt.Errorf("lock user: %w", err)
		}

		if _, err := s.stopActive(ctx, repos, userID, now, ip, logger); err != nil {
			return fmt.Errorf("close previous session: %w", err)
		}

		created, err := repos.Sessions().CreateSession(ctx, persistence.Session{
			SessionID:   sessionID,
			UserID:      userID,
			Status:      persistence.SessionStatusActive,
			StartTime:   now,
			LocationLat: params.Latitude,
			LocationLng: params.Longitude,
			CreatedAt:   now,
		})
		if err != nil {
			return fmt.Errorf("create session: %w", err)
		}

		if _, err := users.UpdateUserStatus(ctx, userID, persistence.UserStatusListening, &created.SessionID, now); err != nil {
			return fmt.Errorf("mark user listening: %w", err)
		}
		if params.Latitude != nil && params.Longitude != nil {
			if _, err := users.UpdateUserLocation(ctx, userID, *params.Latitude, *params.Longitude, now); err != nil {
				return fmt.Errorf("update user location: %w", err)
			}
		}

		if _, err := repos.Logs().AppendLog(ctx, persistence.SystemLog{
			Action:    persistence.ActionStartListening,
			UserID:    &userID,
			SessionID: &created.SessionID,
			IPAddress: ip,
			Details:   details("Started listening session for user %s", userID),
			Timestamp: now,
		}); err != nil {
			return fmt.Errorf("append audit entry: %w", err)
		}

		session = created
		return nil
	})
	return
}

// StopSession completes the user's active session. It returns nil without
// changing anything when the user has no active session.
func (s *LifecycleService) StopSession(ctx context.Context, userID string) (session *persistence.Session, err error) {
	if s == nil || s.store == nil {
		err = fmt.Errorf("LifecycleService is not configured")
		return
	}

	userID = strings.TrimSpace(userID)
	logger := s.loggerWith(ctx, "StopSession", "user_id", userID)
	defer func() {
		switch {
		case err != nil:
			logger.ErrorContext(ctx, "failed to stop session", "error", err, "error_kind", ErrorKind(err))
		case session == nil:
			logger.InfoContext(ctx, "no active session to stop")
		default:
			logger.With("session_id", session.SessionID, "duration_seconds", session.DurationSeconds).
				InfoContext(ctx, "session stopped")
		}
	}()

	if vErr := validateUserID(userID); vErr.HasErrors() {
		err = vErr
		return
	}

	now := s.now().UTC()
	ip := clientIP(ctx, "")
	err = s.store.WithTx(ctx, func(repos persistence.Repositories) error {
		if err := repos.Users().LockUser(ctx, userID); err != nil {
			if isNotFound(err) {
				return nil
			}
			return fmt.Errorf("lock user: %w", err)
		}
		stopped, err := s.stopActive(ctx, repos, userID, now, ip, logger)
		if err != nil {
			return err
		}
		session = stopped
		return nil
	})
	if err != nil {
		session = nil
	}
	return
}

// EndSessionByID stops the session with the given identifier if it is still
// active. Unknown and already finished sessions yield nil.
func (s *LifecycleService) EndSessionByID(ctx context.Context, sessionID string) (session *persistence.Session, err error) {
	if s == nil || s.store == nil {
		err = fmt.Errorf("LifecycleService is not configured")
		return
	}

	sessionID = strings.TrimSpace(sessionID)
	logger := s.loggerWith(ctx, "EndSessionByID", "session_id", sessionID)
	defer func() {
		switch {
		case err != nil:
			logger.ErrorContext(ctx, "failed to end session", "error", err, "error_kind", ErrorKind(err))
		case session == nil:
			logger.InfoContext(ctx, "session not active")
		default:
			logger.With("user_id", session.UserID).InfoContext(ctx, "session ended")
		}
	}()

	if sessionID == "" {
		vErr := &ValidationError{}
		vErr.add("session_id", "session id is required")
		err = vErr
		return
	}

	now := s.now().UTC()
	ip := clientIP(ctx, "")
	err = s.store.WithTx(ctx, func(repos persistence.Repositories) error {
		target, err := repos.Sessions().GetSession(ctx, sessionID)
		if err != nil {
			return fmt.Errorf("get session: %w", err)
		}
		if target == nil || target.Status != persistence.SessionStatusActive {
			return nil
		}
		if err := repos.Users().LockUser(ctx, target.UserID); err != nil && !isNotFound(err) {
			return fmt.Errorf("lock user: %w", err)
		}
		stopped, err := s.stopActive(ctx, repos, target.UserID, now, ip, logger)
		if err != nil {
			return err
		}
		if stopped != nil && stopped.SessionID == sessionID {
			session = stopped
		}
		return nil
	})
	if err != nil {
		session = nil
	}
	return
}

// stopActive completes the user's active session inside an open transaction.
func (s *LifecycleService) stopActive(ctx context.Context, repos persistence.Repositories, userID string, now time.Time, ip *string, logger *slog.Logger) (*persistence.Session, error) {
	active, err := repos.Sessions().GetActiveSession(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get active session: %w", err)
	}
	if active == nil {
		return nil, nil
	}

	duration, clamped := sessionDuration(active.StartTime, now)
	if clamped {
		logger.WarnContext(ctx, "negative session duration clamped to zero",
			"session_id", active.SessionID,
			"start_time", active.StartTime,
			"end_time", now,
		)
	}

	end := now
	active.Status = persistence.SessionStatusCompleted
	active.EndTime = &end
	active.DurationSeconds = duration
	active.UpdatedAt = now

	updated, err := repos.Sessions().UpdateSession(ctx, *active)
	if err != nil {
		return nil, fmt.Errorf("complete session: %w", err)
	}

	if _, err := repos.Users().UpdateUserStatus(ctx, userID, persistence.UserStatusIdle, nil, now); err != nil && !isNotFound(err) {
		return nil, fmt.Errorf("mark user idle: %w", err)
	}

	if _, err := repos.Logs().AppendLog(ctx, persistence.SystemLog{
		Action:    persistence.ActionStopListening,
		UserID:    &userID,
		SessionID: &updated.SessionID,
		IPAddress: ip,
		Details:   details("Stopped listening session after %d seconds", duration),
		Timestamp: now,
	}); err != nil {
		return nil, fmt.Errorf("append audit entry: %w", err)
	}
	return &updated, nil
}

// CreateRecording registers recording metadata and back-fills the session's
// audio path and duration when the session still exists.
func (s *LifecycleService) CreateRecording(ctx context.Context, params CreateRecordingParams) (recording persistence.Recording, err error) {
	if s == nil || s.store == nil {
		err = fmt.Errorf("LifecycleService is not configured")
		return
	}

	params.UserID = strings.TrimSpace(params.UserID)
	params.SessionID = strings.TrimSpace(params.SessionID)
	params.FilePath = strings.TrimSpace(params.FilePath)

	logger := s.loggerWith(ctx, "CreateRecording", "user_id", params.UserID, "session_id", params.SessionID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to register recording", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("recording_id", recording.ID).InfoContext(ctx, "recording registered")
	}()

	if vErr := validateRecording(params); vErr.HasErrors() {
		err = vErr
		return
	}

	now := s.now().UTC()
	ip := clientIP(ctx, params.IPAddress)
	err = s.store.WithTx(ctx, func(repos persistence.Repositories) error {
		created, err := repos.Recordings().CreateRecording(ctx, persistence.Recording{
			SessionID:       params.SessionID,
			UserID:          params.UserID,
			FilePath:        params.FilePath,
			FileSizeBytes:   params.FileSizeBytes,
			DurationSeconds: params.DurationSeconds,
			AudioFormat:     strings.TrimSpace(params.AudioFormat),
			Quality:         strings.TrimSpace(params.Quality),
			CreatedAt:       now,
		})
		if err != nil {
			return fmt.Errorf("create recording: %w", err)
		}

		owner, err := repos.Sessions().AttachRecording(ctx, params.SessionID, created.FilePath, created.DurationSeconds, now)
		if err != nil {
			return fmt.Errorf("attach recording to session: %w", err)
		}
		if owner == nil {
			logger.WarnContext(ctx, "recording registered for unknown session")
		}

		if _, err := repos.Logs().AppendLog(ctx, persistence.SystemLog{
			Action:    persistence.ActionUpload,
			UserID:    &created.UserID,
			SessionID: &created.SessionID,
			IPAddress: ip,
			Details:   details("Uploaded %s (%d bytes, %d seconds)", created.FilePath, created.FileSizeBytes, created.DurationSeconds),
			Timestamp: now,
		}); err != nil {
			return fmt.Errorf("append audit entry: %w", err)
		}

		recording = created
		return nil
	})
	return
}

// UpdateUserLocation records a new last known position for an existing user.
func (s *LifecycleService) UpdateUserLocation(ctx context.Context, userID string, latitude, longitude float64) (user persistence.User, err error) {
	if s == nil || s.store == nil {
		err = fmt.Errorf("LifecycleService is not configured")
		return
	}

	userID = strings.TrimSpace(userID)
	logger := s.loggerWith(ctx, "UpdateUserLocation", "user_id", userID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update location", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "location updated")
	}()

	vErr := validateUserID(userID)
	vErr.merge(validateCoordinates(&latitude, &longitude))
	if vErr.HasErrors() {
		err = vErr
		return
	}

	now := s.now().UTC()
	err = s.store.WithTx(ctx, func(repos persistence.Repositories) error {
		updated, err := repos.Users().UpdateUserLocation(ctx, userID, latitude, longitude, now)
		if err != nil {
			if isNotFound(err) {
				return ErrNotFound
			}
			return err
		}
		user = *updated
		return nil
	})
	return
}

// sessionDuration returns end-start in whole seconds, rounding half away from
// zero. Negative spans are reported as zero with clamped set.
func sessionDuration(start, end time.Time) (seconds int64, clamped bool) {
	d := end.Sub(start)
	if d < 0 {
		return 0, true
	}
	return int64(math.Round(d.Seconds())), false
}

// newSessionID formats sess_<user>_<YYYYmmdd_HHMMSS>_<suffix> using UTC.
func newSessionID(userID string, now time.Time, suffix string) string {
	return fmt.Sprintf("sess_%s_%s_%s", userID, now.UTC().Format("20060102_150405"), suffix)
}

func randomSuffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

func defaultPhoneNumber(userID string) string {
	return "+234" + userID
}

func details(format string, args ...any) *string {
	msg := fmt.Sprintf(format, args...)
	return &msg
}

func validateUserID(userID string) *ValidationError {
	vErr := &ValidationError{}
	switch {
	case userID == "":
		vErr.add("user_id", "user id is required")
	case len(userID) > maxUserIDLength:
		vErr.add("user_id", fmt.Sprintf("user id must be at most %d characters", maxUserIDLength))
	case strings.ContainsAny(userID, " \t\r\n/"):
		vErr.add("user_id", "user id must not contain whitespace or slashes")
	}
	return vErr
}

func validateCoordinates(latitude, longitude *float64) *ValidationError {
	vErr := &ValidationError{}
	if (latitude == nil) != (longitude == nil) {
		vErr.add("location", "latitude and longitude must be provided together")
		return vErr
	}
	if latitude == nil {
		return vErr
	}
	if math.IsNaN(*latitude) || *latitude < -90 || *latitude > 90 {
		vErr.add("latitude", "latitude must be between -90 and 90")
	}
	if math.IsNaN(*longitude) || *longitude < -180 || *longitude > 180 {
		vErr.add("longitude", "longitude must be between -180 and 180")
	}
	return vErr
}

func validateRecording(params CreateRecordingParams) *ValidationError {
	vErr := validateUserID(params.UserID)
	if params.SessionID == "" {
		vErr.add("session_id", "session id is required")
	}
	if params.FilePath == "" {
		vErr.add("file_path", "file path is required")
	}
	if params.FileSizeBytes < 0 {
		vErr.add("file_size_bytes", "file size must not be negative")
	}
	if params.DurationSeconds < 0 {
		vErr.add("duration_seconds", "duration must not be negative")
	}
	return vErr
}
