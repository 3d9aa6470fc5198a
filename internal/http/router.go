package http

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
)

type RouterConfig struct {
	Sessions    *SessionHandler
	Directory   *DirectoryHandler
	Analytics   *AnalyticsHandler
	Maintenance *MaintenanceHandler
	// RateLimiter guards the mutating endpoints. Nil disables limiting.
	RateLimiter *RateLimiter
	Logger      *slog.Logger
	Middleware  []func(http.Handler) http.Handler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()
	res := newResponder(defaultLogger(cfg.Logger))
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		res.writeJSON(req.Context(), w, http.StatusNotFound, errorResponse{Message: statusMessage(http.StatusNotFound)})
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		res.writeJSON(req.Context(), w, http.StatusMethodNotAllowed, errorResponse{Message: statusMessage(http.StatusMethodNotAllowed)})
	})

	limited := func(h http.HandlerFunc) http.Handler { return h }
	if cfg.RateLimiter != nil {
		mw := cfg.RateLimiter.Middleware(cfg.Logger)
		limited = func(h http.HandlerFunc) http.Handler { return mw(h) }
	}

	// Routes live on the root router so a method mismatch answers 405.
	if cfg.Sessions != nil {
		r.Handle("/api/start-listening/{user_id}", limited(cfg.Sessions.Start)).Methods(http.MethodPost)
		r.Handle("/api/stop-listening/{user_id}", limited(cfg.Sessions.Stop)).Methods(http.MethodPost)
		r.Handle("/api/sessions/{session_id}/end", limited(cfg.Sessions.End)).Methods(http.MethodPost)
		r.Handle("/api/upload-recording", limited(cfg.Sessions.UploadRecording)).Methods(http.MethodPost)
	}

	if cfg.Maintenance != nil {
		r.Handle("/api/maintenance/cleanup", limited(cfg.Maintenance.Cleanup)).Methods(http.MethodPost)
		r.HandleFunc("/health", cfg.Maintenance.Liveness).Methods(http.MethodGet)
	}

	if cfg.Directory != nil {
		r.HandleFunc("/api/users", cfg.Directory.ListUsers).Methods(http.MethodGet)
		r.HandleFunc("/api/users/{user_id}", cfg.Directory.GetUser).Methods(http.MethodGet)
		r.HandleFunc("/api/users/{user_id}/sessions", cfg.Directory.UserSessions).Methods(http.MethodGet)
		r.HandleFunc("/api/audio/{user_id}/latest", cfg.Directory.LatestRecording).Methods(http.MethodGet)
		r.HandleFunc("/api/sessions", cfg.Directory.SearchSessions).Methods(http.MethodGet)
		r.HandleFunc("/api/sessions/active", cfg.Directory.ActiveSessions).Methods(http.MethodGet)
		r.HandleFunc("/api/sessions/{session_id}", cfg.Directory.GetSession).Methods(http.MethodGet)
		r.HandleFunc("/api/recordings/recent", cfg.Directory.RecentRecordings).Methods(http.MethodGet)
		r.HandleFunc("/api/logs", cfg.Directory.RecentLogs).Methods(http.MethodGet)
	}

	if cfg.Analytics != nil {
		r.HandleFunc("/api/users/{user_id}/summary", cfg.Analytics.UserSummary).Methods(http.MethodGet)
		r.HandleFunc("/api/dashboard-data", cfg.Analytics.DashboardData).Methods(http.MethodGet)
		r.HandleFunc("/api/dashboard/stats", cfg.Analytics.DashboardStats).Methods(http.MethodGet)
		r.HandleFunc("/api/analytics/hourly-activity", cfg.Analytics.HourlyActivity).Methods(http.MethodGet)
		r.HandleFunc("/api/health/system", cfg.Analytics.SystemHealth).Methods(http.MethodGet)
	}

	var handler http.Handler = r
	for i := len(cfg.Middleware) - 1; i >= 0; i-- {
		if cfg.Middleware[i] != nil {
			handler = cfg.Middleware[i](handler)
		}
	}
	return handler
}
