package application

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/example/listening-monitor/internal/persistence"
	"github.com/example/listening-monitor/internal/timeline"
)

const (
	// DefaultStuckSessionThreshold is how long a session may stay active before it counts as stuck.
	DefaultStuckSessionThreshold = 6 * time.Hour
	// DefaultOverlapWindow bounds how far back the health check looks for overlapping sessions.
	DefaultOverlapWindow = 24 * time.Hour

	maxWindowDays = 366
)

// AnalyticsService computes read-only reports. Each report reads one snapshot.
type AnalyticsService struct {
	store          persistence.Store
	calendar       timeline.Calendar
	stuckThreshold time.Duration
	now            func() time.Time
	logger         *slog.Logger
}

// NewAnalyticsService constructs an analytics service using the local time zone.
func NewAnalyticsService(store persistence.Store, now func() time.Time) *AnalyticsService {
	return NewAnalyticsServiceWithLogger(store, timeline.NewCalendar(nil), DefaultStuckSessionThreshold, now, nil)
}

// NewAnalyticsServiceWithLogger constructs an analytics service with explicit
// calendar, stuck-session threshold and logger.
func NewAnalyticsServiceWithLogger(store persistence.Store, calendar timeline.Calendar, stuckThreshold time.Duration, now func() time.Time, logger *slog.Logger) *AnalyticsService {
	if stuckThreshold <= 0 {
		stuckThreshold = DefaultStuckSessionThreshold
	}
	if now == nil {
		now = time.Now
	}
	return &AnalyticsService{
		store:          store,
		calendar:       calendar,
		stuckThreshold: stuckThreshold,
		now:            now,
		logger:         defaultLogger(logger),
	}
}

func (s *AnalyticsService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "AnalyticsService", operation, attrs...)
}

// DashboardStats returns the headline counters. "Today" starts at local
// midnight and "this week" at local midnight seven days earlier.
func (s *AnalyticsService) DashboardStats(ctx context.Context) (stats DashboardStats, err error) {
	if s == nil || s.store == nil {
		err = fmt.Errorf("AnalyticsService is not configured")
		return
	}
	logger := s.loggerWith(ctx, "DashboardStats")
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to compute dashboard stats", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.DebugContext(ctx, "dashboard stats computed", "total_users", stats.TotalUsers, "active_sessions", stats.ActiveSessions)
	}()

	now := s.now()
	err = s.store.WithReadTx(ctx, func(repos persistence.Repositories) error {
		var err error
		stats, err = s.dashboardStats(ctx, repos, now)
		return err
	})
	return
}

func (s *AnalyticsService) dashboardStats(ctx context.Context, repos persistence.Repositories, now time.Time) (DashboardStats, error) {
	stats := repos.Stats()
	todayStart := s.calendar.StartOfDay(now)
	weekStart := s.calendar.DaysBefore(now, 7)

	var (
		out DashboardStats
		err error
	)
	if out.TotalUsers, err = stats.CountUsers(ctx); err != nil {
		return DashboardStats{}, err
	}
	if out.UsersByStatus, err = stats.CountUsersByStatus(ctx); err != nil {
		return DashboardStats{}, err
	}
	out.OnlineUsers = out.UsersByStatus[persistence.UserStatusListening] + out.UsersByStatus[persistence.UserStatusIdle]

	if out.ActiveSessions, err = stats.CountSessions(ctx, persistence.SessionFilter{
		Statuses: []persistence.SessionStatus{persistence.SessionStatusActive},
	}); err != nil {
		return DashboardStats{}, err
	}
	if out.SessionsToday, err = stats.CountSessions(ctx, persistence.SessionFilter{CreatedSince: &todayStart}); err != nil {
		return DashboardStats{}, err
	}
	if out.SessionsThisWeek, err = stats.CountSessions(ctx, persistence.SessionFilter{CreatedSince: &weekStart}); err != nil {
		return DashboardStats{}, err
	}
	if out.RecordingsToday, err = stats.CountRecordings(ctx, persistence.RecordingFilter{CreatedSince: &todayStart}); err != nil {
		return DashboardStats{}, err
	}
	if out.TotalRecordings, err = stats.CountRecordings(ctx, persistence.RecordingFilter{}); err != nil {
		return DashboardStats{}, err
	}
	if out.AvgSessionDuration, err = averageCompletedMinutes(ctx, stats); err != nil {
		return DashboardStats{}, err
	}
	return out, nil
}

// AverageSessionDuration returns the mean duration of completed sessions in
// minutes rounded to two decimals, or 0 when there are none.
func (s *AnalyticsService) AverageSessionDuration(ctx context.Context) (minutes float64, err error) {
	if s == nil || s.store == nil {
		err = fmt.Errorf("AnalyticsService is not configured")
		return
	}
	err = s.store.WithReadTx(ctx, func(repos persistence.Repositories) error {
		var err error
		minutes, err = averageCompletedMinutes(ctx, repos.Stats())
		return err
	})
	if err != nil {
		s.loggerWith(ctx, "AverageSessionDuration").ErrorContext(ctx, "failed to compute average duration", "error", err, "error_kind", ErrorKind(err))
	}
	return
}

func averageCompletedMinutes(ctx context.Context, stats persistence.StatsRepository) (float64, error) {
	totals, err := stats.SumSessionDurations(ctx, persistence.SessionFilter{
		Statuses: []persistence.SessionStatus{persistence.SessionStatusCompleted},
	})
	if err != nil {
		return 0, err
	}
	if totals.Sessions == 0 {
		return 0, nil
	}
	return round2(float64(totals.TotalSeconds) / float64(totals.Sessions) / 60), nil
}

// HourlyActivity buckets sessions created in the trailing window by local hour.
func (s *AnalyticsService) HourlyActivity(ctx context.Context, days int) (activity HourlyActivity, err error) {
	if s == nil || s.store == nil {
		err = fmt.Errorf("AnalyticsService is not configured")
		return
	}
	logger := s.loggerWith(ctx, "HourlyActivity", "days", days)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to compute hourly activity", "error", err, "error_kind", ErrorKind(err))
		}
	}()

	if vErr := validateWindow(days); vErr.HasErrors() {
		err = vErr
		return
	}

	since := s.calendar.TrailingDays(s.now(), days)
	var created []time.Time
	err = s.store.WithReadTx(ctx, func(repos persistence.Repositories) error {
		var err error
		created, err = repos.Stats().SessionCreationTimes(ctx, persistence.SessionFilter{CreatedSince: &since})
		return err
	})
	if err != nil {
		return
	}

	histogram := s.calendar.BucketByHour(created)
	peakHour, peakCount := histogram.Peak()
	activity = HourlyActivity{
		Days:      days,
		Counts:    histogram.Slice(),
		Total:     histogram.Total(),
		PeakHour:  peakHour,
		PeakCount: peakCount,
		Since:     since,
	}
	return
}

// UserActivitySummary aggregates the user's sessions and recordings created in
// the trailing window. The average divides completed listening time by all
// sessions in the window.
func (s *AnalyticsService) UserActivitySummary(ctx context.Context, userID string, days int) (summary UserActivitySummary, err error) {
	if s == nil || s.store == nil {
		err = fmt.Errorf("AnalyticsService is not configured")
		return
	}
	userID = strings.TrimSpace(userID)
	logger := s.loggerWith(ctx, "UserActivitySummary", "user_id", userID, "days", days)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to summarise user activity", "error", err, "error_kind", ErrorKind(err))
		}
	}()

	vErr := validateUserID(userID)
	vErr.merge(validateWindow(days))
	if vErr.HasErrors() {
		err = vErr
		return
	}

	since := s.calendar.TrailingDays(s.now(), days)
	summary = UserActivitySummary{UserID: userID, PeriodDays: days}
	err = s.store.WithReadTx(ctx, func(repos persistence.Repositories) error {
		user, err := repos.Users().GetUser(ctx, userID)
		if err != nil {
			return err
		}
		if user == nil {
			return ErrNotFound
		}

		stats := repos.Stats()
		if summary.TotalSessions, err = stats.CountSessions(ctx, persistence.SessionFilter{UserID: userID, CreatedSince: &since}); err != nil {
			return err
		}
		if summary.TotalRecordings, err = stats.CountRecordings(ctx, persistence.RecordingFilter{UserID: userID, CreatedSince: &since}); err != nil {
			return err
		}
		completed, err := stats.SumSessionDurations(ctx, persistence.SessionFilter{
			UserID:       userID,
			Statuses:     []persistence.SessionStatus{persistence.SessionStatusCompleted},
			CreatedSince: &since,
		})
		if err != nil {
			return err
		}
		summary.TotalListeningTimeSeconds = completed.TotalSeconds
		return nil
	})
	if err != nil {
		summary = UserActivitySummary{}
		return
	}

	summary.TotalListeningTimeMinutes = round2(float64(summary.TotalListeningTimeSeconds) / 60)
	if summary.TotalSessions > 0 {
		summary.AverageSessionDurationMinutes = round2(float64(summary.TotalListeningTimeSeconds) / float64(summary.TotalSessions) / 60)
	}
	return
}

// SystemHealthCheck looks for stuck, orphaned and overlapping records. A store
// that does not answer is reported through DatabaseResponsive, not as an error.
func (s *AnalyticsService) SystemHealthCheck(ctx context.Context) (health SystemHealth, err error) {
	if s == nil || s.store == nil {
		err = fmt.Errorf("AnalyticsService is not configured")
		return
	}
	logger := s.loggerWith(ctx, "SystemHealthCheck")
	defer func() {
		switch {
		case err != nil:
			logger.ErrorContext(ctx, "health check failed", "error", err, "error_kind", ErrorKind(err))
		case !health.Healthy():
			logger.WarnContext(ctx, "health check found anomalies",
				"database_responsive", health.DatabaseResponsive,
				"stuck_sessions", health.StuckSessions,
				"overlapping_sessions", health.OverlappingSessions,
				"orphaned_recordings", health.OrphanedRecordings,
			)
		}
	}()

	now := s.now()
	health.Timestamp = now
	if pingErr := s.store.Ping(ctx); pingErr != nil {
		logger.WarnContext(ctx, "database ping failed", "error", pingErr)
		return
	}

	stuckBefore := now.Add(-s.stuckThreshold)
	lastHour := now.Add(-time.Hour)
	overlapSince := now.Add(-DefaultOverlapWindow)
	active := []persistence.SessionStatus{persistence.SessionStatusActive}

	err = s.store.WithReadTx(ctx, func(repos persistence.Repositories) error {
		stats := repos.Stats()
		var err error
		if health.StuckSessions, err = stats.CountSessions(ctx, persistence.SessionFilter{Statuses: active, StartedBefore: &stuckBefore}); err != nil {
			return err
		}
		if health.RecentSessionsLastHour, err = stats.CountSessions(ctx, persistence.SessionFilter{CreatedSince: &lastHour}); err != nil {
			return err
		}
		if health.RecentRecordingsLastHour, err = stats.CountRecordings(ctx, persistence.RecordingFilter{CreatedSince: &lastHour}); err != nil {
			return err
		}
		if health.OrphanedRecordings, err = stats.CountOrphanedRecordings(ctx); err != nil {
			return err
		}
		if health.TotalActiveSessions, err = stats.CountSessions(ctx, persistence.SessionFilter{Statuses: active}); err != nil {
			return err
		}

		recent, err := repos.Sessions().ListSessions(ctx, persistence.SessionFilter{CreatedSince: &overlapSince})
		if err != nil {
			return err
		}
		open, err := repos.Sessions().ListActiveSessions(ctx)
		if err != nil {
			return err
		}
		health.OverlappingSessions = len(timeline.DetectOverlaps(sessionIntervals(recent, open), now))
		return nil
	})
	if err != nil {
		health = SystemHealth{}
		return
	}
	health.DatabaseResponsive = true
	return
}

// DashboardData assembles the live dashboard: users, active sessions and stats.
func (s *AnalyticsService) DashboardData(ctx context.Context) (data DashboardData, err error) {
	if s == nil || s.store == nil {
		err = fmt.Errorf("AnalyticsService is not configured")
		return
	}
	logger := s.loggerWith(ctx, "DashboardData")
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to assemble dashboard", "error", err, "error_kind", ErrorKind(err))
		}
	}()

	now := s.now()
	err = s.store.WithReadTx(ctx, func(repos persistence.Repositories) error {
		users, err := repos.Users().ListUsers(ctx)
		if err != nil {
			return err
		}
		active, err := repos.Sessions().ListActiveSessions(ctx)
		if err != nil {
			return err
		}
		activeByID := make(map[string]persistence.Session, len(active))
		for _, session := range active {
			activeByID[session.SessionID] = session
		}

		data.Users = make([]UserOverview, 0, len(users))
		for _, user := range users {
			overview := UserOverview{User: user}
			if overview.RecordingsCount, err = repos.Stats().CountRecordings(ctx, persistence.RecordingFilter{UserID: user.UserID}); err != nil {
				return err
			}
			if user.CurrentSessionID != nil {
				if session, ok := activeByID[*user.CurrentSessionID]; ok {
					started := session.StartTime
					overview.SessionStartedAt = &started
				}
			}
			data.Users = append(data.Users, overview)
		}

		data.ActiveSessions = make([]ActiveSessionOverview, 0, len(active))
		for _, session := range active {
			data.ActiveSessions = append(data.ActiveSessions, ActiveSessionOverview{
				Session:         session,
				DurationMinutes: elapsedMinutes(session.StartTime, now),
			})
		}

		data.Stats, err = s.dashboardStats(ctx, repos, now)
		return err
	})
	if err != nil {
		data = DashboardData{}
		return
	}
	data.LastUpdated = now
	return
}

func sessionIntervals(groups ...[]persistence.Session) []timeline.Interval {
	seen := make(map[string]bool)
	var intervals []timeline.Interval
	for _, group := range groups {
		for _, session := range group {
			if seen[session.SessionID] {
				continue
			}
			seen[session.SessionID] = true
			intervals = append(intervals, timeline.Interval{
				ID:    session.SessionID,
				Owner: session.UserID,
				Start: session.StartTime,
				End:   session.EndTime,
			})
		}
	}
	return intervals
}

// elapsedMinutes returns whole minutes between start and now, never negative.
func elapsedMinutes(start, now time.Time) int64 {
	d := now.Sub(start)
	if d < 0 {
		return 0
	}
	return int64(d / time.Minute)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func validateWindow(days int) *ValidationError {
	vErr := &ValidationError{}
	if days < 1 || days > maxWindowDays {
		vErr.add("days", fmt.Sprintf("days must be between 1 and %d", maxWindowDays))
	}
	return vErr
}
