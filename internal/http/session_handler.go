package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/example/listening-monitor/internal/application"
	"github.com/example/listening-monitor/internal/persistence"
)

type lifecycleService interface {
	StartSession(ctx context.Context, params application.StartSessionParams) (persistence.Session, error)
	StopSession(ctx context.Context, userID string) (*persistence.Session, error)
	EndSessionByID(ctx context.Context, sessionID string) (*persistence.Session, error)
	CreateRecording(ctx context.Context, params application.CreateRecordingParams) (persistence.Recording, error)
}

// SessionHandler serves the endpoints that change session state.
type SessionHandler struct {
	service   lifecycleService
	responder responder
	logger    *slog.Logger
}

func NewSessionHandler(service lifecycleService, logger *slog.Logger) *SessionHandler {
	base := defaultLogger(logger)
	return &SessionHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *SessionHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "SessionHandler", operation, attrs...)
}

type startListeningRequest struct {
	Lat *float64 `json:"lat"`
	Lng *float64 `json:"lng"`
}

type startListeningResponse struct {
	Status    string       `json:"status"`
	Message   string       `json:"message"`
	SessionID string       `json:"session_id"`
	UserID    string       `json:"user_id"`
	StartTime time.Time    `json:"start_time"`
	Location  *locationDTO `json:"location"`
}

func (h *SessionHandler) Start(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	userID := strings.TrimSpace(mux.Vars(r)["user_id"])
	if userID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidUserID)
		return
	}

	var req startListeningRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		h.log(r.Context(), "Start", "user_id", userID, "error_kind", "bad_request").WarnContext(r.Context(), "failed to decode start request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}
	if req.Lat == nil {
		lat, vErr := queryFloat(r, "lat")
		if vErr != nil {
			h.responder.handleServiceError(r.Context(), w, vErr)
			return
		}
		req.Lat = lat
	}
	if req.Lng == nil {
		lng, vErr := queryFloat(r, "lng")
		if vErr != nil {
			h.responder.handleServiceError(r.Context(), w, vErr)
			return
		}
		req.Lng = lng
	}

	logger := h.log(r.Context(), "Start", "user_id", userID)

	session, err := h.service.StartSession(r.Context(), application.StartSessionParams{
		UserID:    userID,
		Latitude:  req.Lat,
		Longitude: req.Lng,
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "start listening failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("session_id", session.SessionID).InfoContext(r.Context(), "listening started")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, startListeningResponse{
		Status:    "success",
		Message:   fmt.Sprintf("Started listening to user %s", userID),
		SessionID: session.SessionID,
		UserID:    userID,
		StartTime: session.StartTime,
		Location:  toLocationDTO(session.LocationLat, session.LocationLng),
	})
}

type stopListeningResponse struct {
	Status          string `json:"status"`
	Message         string `json:"message"`
	SessionID       string `json:"session_id"`
	DurationSeconds int64  `json:"duration_seconds"`
	DurationMinutes int64  `json:"duration_minutes"`
}

func (h *SessionHandler) Stop(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	userID := strings.TrimSpace(mux.Vars(r)["user_id"])
	if userID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidUserID)
		return
	}

	logger := h.log(r.Context(), "Stop", "user_id", userID)

	session, err := h.service.StopSession(r.Context(), userID)
	if err != nil {
		logger.ErrorContext(r.Context(), "stop listening failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	if session == nil {
		h.responder.writeError(r.Context(), w, http.StatusNotFound, errNoActiveSession)
		return
	}

	logger.With("session_id", session.SessionID).InfoContext(r.Context(), "listening stopped")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, stopListeningResponse{
		Status:          "success",
		Message:         fmt.Sprintf("Stopped listening to user %s", userID),
		SessionID:       session.SessionID,
		DurationSeconds: session.DurationSeconds,
		DurationMinutes: session.DurationSeconds / 60,
	})
}

type endSessionResponse struct {
	Status    string     `json:"status"`
	Message   string     `json:"message"`
	SessionID string     `json:"session_id"`
	EndedAt   *time.Time `json:"ended_at"`
}

func (h *SessionHandler) End(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	sessionID := strings.TrimSpace(mux.Vars(r)["session_id"])
	if sessionID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidSessionID)
		return
	}

	logger := h.log(r.Context(), "End", "session_id", sessionID)

	session, err := h.service.EndSessionByID(r.Context(), sessionID)
	if err != nil {
		logger.ErrorContext(r.Context(), "end session failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	if session == nil {
		h.responder.writeError(r.Context(), w, http.StatusNotFound, errNoActiveSession)
		return
	}

	logger.InfoContext(r.Context(), "session ended")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, endSessionResponse{
		Status:    "success",
		Message:   fmt.Sprintf("Session %s ended successfully", sessionID),
		SessionID: sessionID,
		EndedAt:   session.EndTime,
	})
}

type uploadRecordingRequest struct {
	UserID          string `json:"user_id"`
	SessionID       string `json:"session_id"`
	FilePath        string `json:"file_path"`
	FileSizeBytes   int64  `json:"file_size_bytes"`
	DurationSeconds int64  `json:"duration_seconds"`
	AudioFormat     string `json:"audio_format"`
	Quality         string `json:"quality"`
}

type uploadRecordingResponse struct {
	Status    string       `json:"status"`
	Message   string       `json:"message"`
	Recording recordingDTO `json:"recording"`
}

func (h *SessionHandler) UploadRecording(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req uploadRecordingRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		h.log(r.Context(), "UploadRecording", "error_kind", "bad_request").WarnContext(r.Context(), "failed to decode recording", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "UploadRecording", "user_id", req.UserID, "session_id", req.SessionID)

	recording, err := h.service.CreateRecording(r.Context(), application.CreateRecordingParams{
		SessionID:       req.SessionID,
		UserID:          req.UserID,
		FilePath:        req.FilePath,
		FileSizeBytes:   req.FileSizeBytes,
		DurationSeconds: req.DurationSeconds,
		AudioFormat:     req.AudioFormat,
		Quality:         req.Quality,
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "recording upload failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("recording_id", recording.ID).InfoContext(r.Context(), "recording registered")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, uploadRecordingResponse{
		Status:    "success",
		Message:   "Recording uploaded successfully",
		Recording: toRecordingDTO(recording),
	})
}
