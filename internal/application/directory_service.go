package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/example/listening-monitor/internal/persistence"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// DirectoryService answers read-only lookups of users, sessions, recordings and logs.
type DirectoryService struct {
	store  persistence.Store
	logger *slog.Logger
}

// NewDirectoryService constructs a directory service.
func NewDirectoryService(store persistence.Store, logger *slog.Logger) *DirectoryService {
	return &DirectoryService{store: store, logger: defaultLogger(logger)}
}

func (s *DirectoryService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "DirectoryService", operation, attrs...)
}

// UserListFilter narrows ListUsers. Query takes precedence over Status.
type UserListFilter struct {
	Status persistence.UserStatus
	Query  string
}

// ListUsers returns users matching the filter, most recently active first.
func (s *DirectoryService) ListUsers(ctx context.Context, filter UserListFilter) (users []persistence.User, err error) {
	if s == nil || s.store == nil {
		return nil, fmt.Errorf("DirectoryService is not configured")
	}
	defer func() {
		if err != nil {
			s.loggerWith(ctx, "ListUsers").ErrorContext(ctx, "failed to list users", "error", err, "error_kind", ErrorKind(err))
		}
	}()

	query := strings.TrimSpace(filter.Query)
	switch {
	case query != "":
		return s.store.Users().SearchUsers(ctx, query)
	case filter.Status != "":
		if !filter.Status.Valid() {
			vErr := &ValidationError{}
			vErr.add("status", "status must be offline, idle or listening")
			return nil, vErr
		}
		return s.store.Users().ListUsersByStatus(ctx, filter.Status)
	default:
		return s.store.Users().ListUsers(ctx)
	}
}

// GetUser returns nil when the user is unknown.
func (s *DirectoryService) GetUser(ctx context.Context, userID string) (*persistence.User, error) {
	if s == nil || s.store == nil {
		return nil, fmt.Errorf("DirectoryService is not configured")
	}
	return s.store.Users().GetUser(ctx, strings.TrimSpace(userID))
}

// UserSessions returns the user's most recent sessions. It returns
// ErrNotFound when the user is unknown.
func (s *DirectoryService) UserSessions(ctx context.Context, userID string, limit int) ([]persistence.Session, error) {
	if s == nil || s.store == nil {
		return nil, fmt.Errorf("DirectoryService is not configured")
	}
	userID = strings.TrimSpace(userID)
	var sessions []persistence.Session
	err := s.store.WithReadTx(ctx, func(repos persistence.Repositories) error {
		user, err := repos.Users().GetUser(ctx, userID)
		if err != nil {
			return err
		}
		if user == nil {
			return ErrNotFound
		}
		sessions, err = repos.Sessions().ListUserSessions(ctx, userID, clampLimit(limit))
		return err
	})
	if err != nil && !isNotFound(err) {
		s.loggerWith(ctx, "UserSessions", "user_id", userID).
			ErrorContext(ctx, "failed to list user sessions", "error", err, "error_kind", ErrorKind(err))
	}
	return sessions, err
}

// GetSession returns the session and its recordings, or nil when it is unknown.
func (s *DirectoryService) GetSession(ctx context.Context, sessionID string) (*persistence.Session, []persistence.Recording, error) {
	if s == nil || s.store == nil {
		return nil, nil, fmt.Errorf("DirectoryService is not configured")
	}
	var (
		session    *persistence.Session
		recordings []persistence.Recording
	)
	err := s.store.WithReadTx(ctx, func(repos persistence.Repositories) error {
		var err error
		session, err = repos.Sessions().GetSession(ctx, strings.TrimSpace(sessionID))
		if err != nil || session == nil {
			return err
		}
		recordings, err = repos.Recordings().ListSessionRecordings(ctx, session.SessionID)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return session, recordings, nil
}

// SearchSessions matches the query against session and user identifiers.
func (s *DirectoryService) SearchSessions(ctx context.Context, query string) ([]persistence.Session, error) {
	if s == nil || s.store == nil {
		return nil, fmt.Errorf("DirectoryService is not configured")
	}
	return s.store.Sessions().SearchSessions(ctx, strings.TrimSpace(query))
}

// ActiveSessions lists sessions still in progress, newest first.
func (s *DirectoryService) ActiveSessions(ctx context.Context) ([]persistence.Session, error) {
	if s == nil || s.store == nil {
		return nil, fmt.Errorf("DirectoryService is not configured")
	}
	return s.store.Sessions().ListActiveSessions(ctx)
}

// LatestRecording returns the user's newest recording, or nil when there is none.
func (s *DirectoryService) LatestRecording(ctx context.Context, userID string) (*persistence.Recording, error) {
	if s == nil || s.store == nil {
		return nil, fmt.Errorf("DirectoryService is not configured")
	}
	return s.store.Recordings().LatestRecordingForUser(ctx, strings.TrimSpace(userID))
}

// RecentRecordings returns the newest recordings across all users.
func (s *DirectoryService) RecentRecordings(ctx context.Context, limit int) ([]persistence.Recording, error) {
	if s == nil || s.store == nil {
		return nil, fmt.Errorf("DirectoryService is not configured")
	}
	return s.store.Recordings().ListRecordings(ctx, persistence.RecordingFilter{Limit: clampLimit(limit)})
}

// RecentLogs returns the newest audit entries.
func (s *DirectoryService) RecentLogs(ctx context.Context, limit int) ([]persistence.SystemLog, error) {
	if s == nil || s.store == nil {
		return nil, fmt.Errorf("DirectoryService is not configured")
	}
	return s.store.Logs().ListRecentLogs(ctx, clampLimit(limit))
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return defaultListLimit
	case limit > maxListLimit:
		return maxListLimit
	default:
		return limit
	}
}
