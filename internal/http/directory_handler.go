package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/example/listening-monitor/internal/application"
	"github.com/example/listening-monitor/internal/persistence"
)

type directoryService interface {
	ListUsers(ctx context.Context, filter application.UserListFilter) ([]persistence.User, error)
	GetUser(ctx context.Context, userID string) (*persistence.User, error)
	UserSessions(ctx context.Context, userID string, limit int) ([]persistence.Session, error)
	GetSession(ctx context.Context, sessionID string) (*persistence.Session, []persistence.Recording, error)
	SearchSessions(ctx context.Context, query string) ([]persistence.Session, error)
	ActiveSessions(ctx context.Context) ([]persistence.Session, error)
	LatestRecording(ctx context.Context, userID string) (*persistence.Recording, error)
	RecentRecordings(ctx context.Context, limit int) ([]persistence.Recording, error)
	RecentLogs(ctx context.Context, limit int) ([]persistence.SystemLog, error)
}

// DirectoryHandler serves read-only listings of users, sessions, recordings and logs.
type DirectoryHandler struct {
	service   directoryService
	responder responder
	logger    *slog.Logger
	now       func() time.Time
}

func NewDirectoryHandler(service directoryService, now func() time.Time, logger *slog.Logger) *DirectoryHandler {
	base := defaultLogger(logger)
	if now == nil {
		now = time.Now
	}
	return &DirectoryHandler{service: service, responder: newResponder(base), logger: base, now: now}
}

func (h *DirectoryHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "DirectoryHandler", operation, attrs...)
}

func (h *DirectoryHandler) ready(w http.ResponseWriter) bool {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return false
	}
	return true
}

func (h *DirectoryHandler) fail(ctx context.Context, w http.ResponseWriter, operation string, err error, attrs ...any) {
	var vErr *application.ValidationError
	if !errors.As(err, &vErr) && !errors.Is(err, application.ErrNotFound) {
		h.log(ctx, operation, attrs...).ErrorContext(ctx, "request failed", "error", err, "error_kind", application.ErrorKind(err))
	}
	h.responder.handleServiceError(ctx, w, err)
}

type listUsersResponse struct {
	Users []userDTO `json:"users"`
	Total int       `json:"total"`
}

func (h *DirectoryHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	q := r.URL.Query()
	users, err := h.service.ListUsers(r.Context(), application.UserListFilter{
		Status: persistence.UserStatus(strings.ToLower(strings.TrimSpace(q.Get("status")))),
		Query:  q.Get("q"),
	})
	if err != nil {
		h.fail(r.Context(), w, "ListUsers", err)
		return
	}

	resp := listUsersResponse{Users: make([]userDTO, 0, len(users)), Total: len(users)}
	for _, u := range users {
		resp.Users = append(resp.Users, toUserDTO(u))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, resp)
}

type userResponse struct {
	User userDTO `json:"user"`
}

func (h *DirectoryHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	userID := strings.TrimSpace(mux.Vars(r)["user_id"])
	user, err := h.service.GetUser(r.Context(), userID)
	if err != nil {
		h.fail(r.Context(), w, "GetUser", err, "user_id", userID)
		return
	}
	if user == nil {
		h.responder.handleServiceError(r.Context(), w, application.ErrNotFound)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, userResponse{User: toUserDTO(*user)})
}

type sessionsResponse struct {
	Sessions []sessionDTO `json:"sessions"`
	Total    int          `json:"total"`
}

func (h *DirectoryHandler) UserSessions(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	userID := strings.TrimSpace(mux.Vars(r)["user_id"])
	limit, vErr := queryInt(r, "limit", 0)
	if vErr != nil {
		h.responder.handleServiceError(r.Context(), w, vErr)
		return
	}

	sessions, err := h.service.UserSessions(r.Context(), userID, limit)
	if err != nil {
		h.fail(r.Context(), w, "UserSessions", err, "user_id", userID)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, sessionsResponse{Sessions: toSessionDTOs(sessions), Total: len(sessions)})
}

func (h *DirectoryHandler) SearchSessions(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	sessions, err := h.service.SearchSessions(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		h.fail(r.Context(), w, "SearchSessions", err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, sessionsResponse{Sessions: toSessionDTOs(sessions), Total: len(sessions)})
}

type sessionDetailResponse struct {
	Session    sessionDTO     `json:"session"`
	Recordings []recordingDTO `json:"recordings"`
}

func (h *DirectoryHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	sessionID := strings.TrimSpace(mux.Vars(r)["session_id"])
	session, recordings, err := h.service.GetSession(r.Context(), sessionID)
	if err != nil {
		h.fail(r.Context(), w, "GetSession", err, "session_id", sessionID)
		return
	}
	if session == nil {
		h.responder.handleServiceError(r.Context(), w, application.ErrNotFound)
		return
	}

	resp := sessionDetailResponse{Session: toSessionDTO(*session), Recordings: make([]recordingDTO, 0, len(recordings))}
	for _, rec := range recordings {
		resp.Recordings = append(resp.Recordings, toRecordingDTO(rec))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, resp)
}

type activeSessionDTO struct {
	SessionID       string       `json:"session_id"`
	UserID          string       `json:"user_id"`
	StartTime       time.Time    `json:"start_time"`
	Location        *locationDTO `json:"location"`
	DurationMinutes int64        `json:"duration_minutes"`
}

type activeSessionsResponse struct {
	ActiveSessions []activeSessionDTO `json:"active_sessions"`
}

func (h *DirectoryHandler) ActiveSessions(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	sessions, err := h.service.ActiveSessions(r.Context())
	if err != nil {
		h.fail(r.Context(), w, "ActiveSessions", err)
		return
	}

	now := h.now()
	resp := activeSessionsResponse{ActiveSessions: make([]activeSessionDTO, 0, len(sessions))}
	for _, s := range sessions {
		resp.ActiveSessions = append(resp.ActiveSessions, activeSessionDTO{
			SessionID:       s.SessionID,
			UserID:          s.UserID,
			StartTime:       s.StartTime,
			Location:        toLocationDTO(s.LocationLat, s.LocationLng),
			DurationMinutes: wholeMinutes(s.StartTime, now),
		})
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, resp)
}

type latestAudioResponse struct {
	UserID     string    `json:"user_id"`
	SessionID  string    `json:"session_id"`
	FilePath   string    `json:"file_path"`
	Duration   int64     `json:"duration"`
	RecordedAt time.Time `json:"recorded_at"`
	FileSize   int64     `json:"file_size"`
}

func (h *DirectoryHandler) LatestRecording(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	userID := strings.TrimSpace(mux.Vars(r)["user_id"])
	rec, err := h.service.LatestRecording(r.Context(), userID)
	if err != nil {
		h.fail(r.Context(), w, "LatestRecording", err, "user_id", userID)
		return
	}
	if rec == nil {
		h.responder.writeError(r.Context(), w, http.StatusNotFound, errNoAudio)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, latestAudioResponse{
		UserID:     userID,
		SessionID:  rec.SessionID,
		FilePath:   rec.FilePath,
		Duration:   rec.DurationSeconds,
		RecordedAt: rec.CreatedAt,
		FileSize:   rec.FileSizeBytes,
	})
}

type recentRecordingsResponse struct {
	Recordings []recordingDTO `json:"recordings"`
	Total      int            `json:"total"`
	Limit      int            `json:"limit"`
}

func (h *DirectoryHandler) RecentRecordings(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	limit, vErr := queryInt(r, "limit", 10)
	if vErr != nil {
		h.responder.handleServiceError(r.Context(), w, vErr)
		return
	}

	recordings, err := h.service.RecentRecordings(r.Context(), limit)
	if err != nil {
		h.fail(r.Context(), w, "RecentRecordings", err)
		return
	}

	resp := recentRecordingsResponse{Recordings: make([]recordingDTO, 0, len(recordings)), Total: len(recordings), Limit: limit}
	for _, rec := range recordings {
		resp.Recordings = append(resp.Recordings, toRecordingDTO(rec))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, resp)
}

type logsResponse struct {
	Logs []logDTO `json:"logs"`
}

func (h *DirectoryHandler) RecentLogs(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	limit, vErr := queryInt(r, "limit", 0)
	if vErr != nil {
		h.responder.handleServiceError(r.Context(), w, vErr)
		return
	}

	entries, err := h.service.RecentLogs(r.Context(), limit)
	if err != nil {
		h.fail(r.Context(), w, "RecentLogs", err)
		return
	}

	resp := logsResponse{Logs: make([]logDTO, 0, len(entries))}
	for _, e := range entries {
		resp.Logs = append(resp.Logs, toLogDTO(e))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, resp)
}

// wholeMinutes truncates the elapsed time to minutes, never below zero.
func wholeMinutes(start, now time.Time) int64 {
	if now.Before(start) {
		return 0
	}
	return int64(now.Sub(start) / time.Minute)
}
