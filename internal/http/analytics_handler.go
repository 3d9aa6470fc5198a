package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/example/listening-monitor/internal/application"
)

const (
	defaultHourlyDays  = 7
	defaultSummaryDays = 30
)

type analyticsService interface {
	DashboardStats(ctx context.Context) (application.DashboardStats, error)
	DashboardData(ctx context.Context) (application.DashboardData, error)
	HourlyActivity(ctx context.Context, days int) (application.HourlyActivity, error)
	UserActivitySummary(ctx context.Context, userID string, days int) (application.UserActivitySummary, error)
	SystemHealthCheck(ctx context.Context) (application.SystemHealth, error)
}

// AnalyticsHandler serves dashboard aggregates and health reports.
type AnalyticsHandler struct {
	service   analyticsService
	responder responder
	logger    *slog.Logger
	now       func() time.Time
}

func NewAnalyticsHandler(service analyticsService, now func() time.Time, logger *slog.Logger) *AnalyticsHandler {
	base := defaultLogger(logger)
	if now == nil {
		now = time.Now
	}
	return &AnalyticsHandler{service: service, responder: newResponder(base), logger: base, now: now}
}

func (h *AnalyticsHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "AnalyticsHandler", operation, attrs...)
}

func (h *AnalyticsHandler) ready(w http.ResponseWriter) bool {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return false
	}
	return true
}

func (h *AnalyticsHandler) fail(ctx context.Context, w http.ResponseWriter, operation string, err error, attrs ...any) {
	var vErr *application.ValidationError
	if !errors.As(err, &vErr) && !errors.Is(err, application.ErrNotFound) {
		h.log(ctx, operation, attrs...).ErrorContext(ctx, "request failed", "error", err, "error_kind", application.ErrorKind(err))
	}
	h.responder.handleServiceError(ctx, w, err)
}

type dashboardStatsDTO struct {
	TotalUsers         int64            `json:"total_users"`
	ActiveSessions     int64            `json:"active_sessions"`
	OnlineUsers        int64            `json:"online_users"`
	SessionsToday      int64            `json:"sessions_today"`
	RecordingsToday    int64            `json:"recordings_today"`
	SessionsThisWeek   int64            `json:"sessions_this_week"`
	AvgSessionDuration float64          `json:"avg_session_duration"`
	TotalRecordings    int64            `json:"total_recordings"`
	UsersByStatus      map[string]int64 `json:"users_by_status"`
}

func toDashboardStatsDTO(stats application.DashboardStats) dashboardStatsDTO {
	byStatus := make(map[string]int64, len(stats.UsersByStatus))
	for status, n := range stats.UsersByStatus {
		byStatus[string(status)] = n
	}
	return dashboardStatsDTO{
		TotalUsers:         stats.TotalUsers,
		ActiveSessions:     stats.ActiveSessions,
		OnlineUsers:        stats.OnlineUsers,
		SessionsToday:      stats.SessionsToday,
		RecordingsToday:    stats.RecordingsToday,
		SessionsThisWeek:   stats.SessionsThisWeek,
		AvgSessionDuration: stats.AvgSessionDuration,
		TotalRecordings:    stats.TotalRecordings,
		UsersByStatus:      byStatus,
	}
}

type dashboardStatsResponse struct {
	dashboardStatsDTO
	LastUpdated time.Time `json:"last_updated"`
}

func (h *AnalyticsHandler) DashboardStats(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	stats, err := h.service.DashboardStats(r.Context())
	if err != nil {
		h.fail(r.Context(), w, "DashboardStats", err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, dashboardStatsResponse{
		dashboardStatsDTO: toDashboardStatsDTO(stats),
		LastUpdated:       h.now(),
	})
}

type dashboardUserDTO struct {
	UserID           string       `json:"user_id"`
	Status           string       `json:"status"`
	Location         *locationDTO `json:"location"`
	LastActivity     time.Time    `json:"last_activity"`
	CurrentSessionID *string      `json:"current_session_id"`
	SessionStart     *time.Time   `json:"session_start"`
	PhoneNumber      string       `json:"phone_number"`
	LatestRecording  *string      `json:"latest_recording"`
	RecordingsCount  int64        `json:"recordings_count"`
}

type dashboardSessionDTO struct {
	SessionID       string    `json:"session_id"`
	UserID          string    `json:"user_id"`
	StartTime       time.Time `json:"start_time"`
	DurationMinutes int64     `json:"duration_minutes"`
}

type dashboardDataResponse struct {
	ActiveSessionsCount int                   `json:"active_sessions_count"`
	TotalUsers          int                   `json:"total_users"`
	ConnectionStatus    string                `json:"connection_status"`
	Users               []dashboardUserDTO    `json:"users"`
	ActiveSessions      []dashboardSessionDTO `json:"active_sessions"`
	Stats               dashboardStatsDTO     `json:"stats"`
	LastUpdated         time.Time             `json:"last_updated"`
}

func (h *AnalyticsHandler) DashboardData(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	data, err := h.service.DashboardData(r.Context())
	if err != nil {
		h.fail(r.Context(), w, "DashboardData", err)
		return
	}

	resp := dashboardDataResponse{
		ActiveSessionsCount: len(data.ActiveSessions),
		TotalUsers:          len(data.Users),
		ConnectionStatus:    "connected",
		Users:               make([]dashboardUserDTO, 0, len(data.Users)),
		ActiveSessions:      make([]dashboardSessionDTO, 0, len(data.ActiveSessions)),
		Stats:               toDashboardStatsDTO(data.Stats),
		LastUpdated:         data.LastUpdated,
	}
	for _, u := range data.Users {
		var latest *string
		if u.RecordingsCount > 0 {
			link := fmt.Sprintf("/api/audio/%s/latest", u.User.UserID)
			latest = &link
		}
		resp.Users = append(resp.Users, dashboardUserDTO{
			UserID:           u.User.UserID,
			Status:           string(u.User.Status),
			Location:         toLocationDTO(u.User.Latitude, u.User.Longitude),
			LastActivity:     u.User.LastActivity,
			CurrentSessionID: u.User.CurrentSessionID,
			SessionStart:     u.SessionStartedAt,
			PhoneNumber:      u.User.PhoneNumber,
			LatestRecording:  latest,
			RecordingsCount:  u.RecordingsCount,
		})
	}
	for _, s := range data.ActiveSessions {
		resp.ActiveSessions = append(resp.ActiveSessions, dashboardSessionDTO{
			SessionID:       s.Session.SessionID,
			UserID:          s.Session.UserID,
			StartTime:       s.Session.StartTime,
			DurationMinutes: s.DurationMinutes,
		})
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, resp)
}

type hourlyActivityResponse struct {
	Labels      []string  `json:"labels"`
	Data        []int     `json:"data"`
	Total       int       `json:"total"`
	PeakHour    string    `json:"peak_hour"`
	PeakCount   int       `json:"peak_count"`
	Days        int       `json:"days"`
	Since       time.Time `json:"since"`
	LastUpdated time.Time `json:"last_updated"`
}

func (h *AnalyticsHandler) HourlyActivity(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	days, vErr := queryInt(r, "days", defaultHourlyDays)
	if vErr != nil {
		h.responder.handleServiceError(r.Context(), w, vErr)
		return
	}

	activity, err := h.service.HourlyActivity(r.Context(), days)
	if err != nil {
		h.fail(r.Context(), w, "HourlyActivity", err, "days", days)
		return
	}

	labels := make([]string, len(activity.Counts))
	for hour := range labels {
		labels[hour] = hourLabel(hour)
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, hourlyActivityResponse{
		Labels:      labels,
		Data:        activity.Counts,
		Total:       activity.Total,
		PeakHour:    hourLabel(activity.PeakHour),
		PeakCount:   activity.PeakCount,
		Days:        activity.Days,
		Since:       activity.Since,
		LastUpdated: h.now(),
	})
}

func hourLabel(hour int) string {
	return fmt.Sprintf("%02d:00", hour)
}

type userSummaryResponse struct {
	UserID                        string  `json:"user_id"`
	PeriodDays                    int     `json:"period_days"`
	TotalSessions                 int64   `json:"total_sessions"`
	TotalRecordings               int64   `json:"total_recordings"`
	TotalListeningTimeSeconds     int64   `json:"total_listening_time_seconds"`
	TotalListeningTimeMinutes     float64 `json:"total_listening_time_minutes"`
	AverageSessionDurationMinutes float64 `json:"average_session_duration_minutes"`
}

func (h *AnalyticsHandler) UserSummary(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	userID := strings.TrimSpace(mux.Vars(r)["user_id"])
	days, vErr := queryInt(r, "days", defaultSummaryDays)
	if vErr != nil {
		h.responder.handleServiceError(r.Context(), w, vErr)
		return
	}

	summary, err := h.service.UserActivitySummary(r.Context(), userID, days)
	if err != nil {
		h.fail(r.Context(), w, "UserSummary", err, "user_id", userID)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, userSummaryResponse{
		UserID:                        summary.UserID,
		PeriodDays:                    summary.PeriodDays,
		TotalSessions:                 summary.TotalSessions,
		TotalRecordings:               summary.TotalRecordings,
		TotalListeningTimeSeconds:     summary.TotalListeningTimeSeconds,
		TotalListeningTimeMinutes:     summary.TotalListeningTimeMinutes,
		AverageSessionDurationMinutes: summary.AverageSessionDurationMinutes,
	})
}

type systemHealthResponse struct {
	Status                   string    `json:"status"`
	Timestamp                time.Time `json:"timestamp"`
	StuckSessions            int64     `json:"stuck_sessions"`
	RecentSessionsLastHour   int64     `json:"recent_sessions_last_hour"`
	RecentRecordingsLastHour int64     `json:"recent_recordings_last_hour"`
	OrphanedRecordings       int64     `json:"orphaned_recordings"`
	TotalActiveSessions      int64     `json:"total_active_sessions"`
	OverlappingSessions      int       `json:"overlapping_sessions"`
	DatabaseResponsive       bool      `json:"database_responsive"`
}

// SystemHealth answers 503 when the database does not respond and 200 otherwise;
// data anomalies only change the reported status.
func (h *AnalyticsHandler) SystemHealth(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	health, err := h.service.SystemHealthCheck(r.Context())
	if err != nil {
		h.fail(r.Context(), w, "SystemHealth", err)
		return
	}

	status := "healthy"
	code := http.StatusOK
	switch {
	case !health.DatabaseResponsive:
		status = "unavailable"
		code = http.StatusServiceUnavailable
	case !health.Healthy():
		status = "degraded"
	}
	h.responder.writeJSON(r.Context(), w, code, systemHealthResponse{
		Status:                   status,
		Timestamp:                health.Timestamp,
		StuckSessions:            health.StuckSessions,
		RecentSessionsLastHour:   health.RecentSessionsLastHour,
		RecentRecordingsLastHour: health.RecentRecordingsLastHour,
		OrphanedRecordings:       health.OrphanedRecordings,
		TotalActiveSessions:      health.TotalActiveSessions,
		OverlappingSessions:      health.OverlappingSessions,
		DatabaseResponsive:       health.DatabaseResponsive,
	})
}
