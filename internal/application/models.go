package application

import (
	"time"

	"github.com/example/listening-monitor/internal/persistence"
)

// StartSessionParams carries the input for starting a listening session.
type StartSessionParams struct {
	UserID    string
	Latitude  *float64
	Longitude *float64
	// IPAddress overrides the address attached to the request context.
	IPAddress string
}

// CreateRecordingParams carries recording metadata registered by a device.
type CreateRecordingParams struct {
	SessionID       string
	UserID          string
	FilePath        string
	FileSizeBytes   int64
	DurationSeconds int64
	AudioFormat     string
	Quality         string
	IPAddress       string
}

// DashboardStats is the headline summary shown on the dashboard.
type DashboardStats struct {
	TotalUsers         int64
	ActiveSessions     int64
	OnlineUsers        int64
	SessionsToday      int64
	RecordingsToday    int64
	SessionsThisWeek   int64
	AvgSessionDuration float64 // minutes, two decimals
	TotalRecordings    int64
	UsersByStatus      map[persistence.UserStatus]int64
}

// HourlyActivity is a 24 slot histogram of session starts by local hour.
type HourlyActivity struct {
	Days      int
	Counts    []int
	Total     int
	PeakHour  int
	PeakCount int
	Since     time.Time
}

// UserActivitySummary aggregates one user's activity over a trailing window.
type UserActivitySummary struct {
	UserID                        string
	PeriodDays                    int
	TotalSessions                 int64
	TotalRecordings               int64
	TotalListeningTimeSeconds     int64
	TotalListeningTimeMinutes     float64
	AverageSessionDurationMinutes float64
}

// SystemHealth reports anomalies in the stored activity.
type SystemHealth struct {
	Timestamp                time.Time
	StuckSessions            int64
	RecentSessionsLastHour   int64
	RecentRecordingsLastHour int64
	OrphanedRecordings       int64
	TotalActiveSessions      int64
	OverlappingSessions      int
	DatabaseResponsive       bool
}

// Healthy reports whether no anomaly was found.
func (h SystemHealth) Healthy() bool {
	return h.DatabaseResponsive && h.StuckSessions == 0 && h.OverlappingSessions == 0
}

// UserOverview is one row of the live dashboard.
type UserOverview struct {
	User             persistence.User
	RecordingsCount  int64
	SessionStartedAt *time.Time
}

// ActiveSessionOverview is an active session with its elapsed time.
type ActiveSessionOverview struct {
	Session         persistence.Session
	DurationMinutes int64
}

// DashboardData is the full payload refreshed by the dashboard.
type DashboardData struct {
	Users          []UserOverview
	ActiveSessions []ActiveSessionOverview
	Stats          DashboardStats
	LastUpdated    time.Time
}

// CleanupReport describes what a retention run removed or would remove.
type CleanupReport struct {
	CutoffDate      time.Time
	DeletedLogs     int64
	DeletedSessions int64
	DryRun          bool
}
