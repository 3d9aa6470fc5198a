package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/example/listening-monitor/internal/application"
)

type retentionService interface {
	CleanupOldData(ctx context.Context, daysToKeep int) (application.CleanupReport, error)
	PreviewCleanup(ctx context.Context, daysToKeep int) (application.CleanupReport, error)
}

// MaintenanceHandler serves retention cleanup and the liveness probe.
type MaintenanceHandler struct {
	service     retentionService
	defaultDays int
	version     string
	now         func() time.Time
	responder   responder
	logger      *slog.Logger
}

func NewMaintenanceHandler(service retentionService, defaultDays int, version string, now func() time.Time, logger *slog.Logger) *MaintenanceHandler {
	base := defaultLogger(logger)
	if now == nil {
		now = time.Now
	}
	if defaultDays <= 0 {
		defaultDays = application.DefaultRetentionDays
	}
	return &MaintenanceHandler{
		service:     service,
		defaultDays: defaultDays,
		version:     version,
		now:         now,
		responder:   newResponder(base),
		logger:      base,
	}
}

func (h *MaintenanceHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "MaintenanceHandler", operation, attrs...)
}

type cleanupResponse struct {
	Status          string    `json:"status"`
	DryRun          bool      `json:"dry_run"`
	DaysToKeep      int       `json:"days_to_keep"`
	CutoffDate      time.Time `json:"cutoff_date"`
	DeletedLogs     int64     `json:"deleted_logs"`
	DeletedSessions int64     `json:"deleted_sessions"`
}

func (h *MaintenanceHandler) Cleanup(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	days, vErr := queryInt(r, "days", h.defaultDays)
	if vErr != nil {
		h.responder.handleServiceError(r.Context(), w, vErr)
		return
	}
	dryRun, vErr := queryBool(r, "dry_run")
	if vErr != nil {
		h.responder.handleServiceError(r.Context(), w, vErr)
		return
	}

	logger := h.log(r.Context(), "Cleanup", "days_to_keep", days, "dry_run", dryRun)

	var (
		report application.CleanupReport
		err    error
	)
	if dryRun {
		report, err = h.service.PreviewCleanup(r.Context(), days)
	} else {
		report, err = h.service.CleanupOldData(r.Context(), days)
	}
	if err != nil {
		logger.ErrorContext(r.Context(), "cleanup failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "cleanup handled", "deleted_logs", report.DeletedLogs, "deleted_sessions", report.DeletedSessions)
	h.responder.writeJSON(r.Context(), w, http.StatusOK, cleanupResponse{
		Status:          "success",
		DryRun:          report.DryRun,
		DaysToKeep:      days,
		CutoffDate:      report.CutoffDate,
		DeletedLogs:     report.DeletedLogs,
		DeletedSessions: report.DeletedSessions,
	})
}

type livenessResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
}

func (h *MaintenanceHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	if h == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, livenessResponse{
		Status:    "healthy",
		Timestamp: h.now(),
		Version:   h.version,
	})
}
