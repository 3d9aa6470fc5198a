package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/example/listening-monitor/internal/persistence"
)

type locationDTO struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func toLocationDTO(lat, lng *float64) *locationDTO {
	if lat == nil || lng == nil {
		return nil
	}
	return &locationDTO{Lat: *lat, Lng: *lng}
}

type userDTO struct {
	UserID           string       `json:"user_id"`
	PhoneNumber      string       `json:"phone_number"`
	Status           string       `json:"status"`
	Location         *locationDTO `json:"location"`
	LastActivity     time.Time    `json:"last_activity"`
	CurrentSessionID *string      `json:"current_session_id"`
	CreatedAt        time.Time    `json:"created_at"`
}

func toUserDTO(user persistence.User) userDTO {
	return userDTO{
		UserID:           user.UserID,
		PhoneNumber:      user.PhoneNumber,
		Status:           string(user.Status),
		Location:         toLocationDTO(user.Latitude, user.Longitude),
		LastActivity:     user.LastActivity,
		CurrentSessionID: user.CurrentSessionID,
		CreatedAt:        user.CreatedAt,
	}
}

type sessionDTO struct {
	SessionID       string       `json:"session_id"`
	UserID          string       `json:"user_id"`
	Status          string       `json:"status"`
	StartTime       time.Time    `json:"start_time"`
	EndTime         *time.Time   `json:"end_time"`
	Location        *locationDTO `json:"location"`
	AudioFilePath   *string      `json:"audio_file_path"`
	DurationSeconds int64        `json:"duration_seconds"`
	CreatedAt       time.Time    `json:"created_at"`
}

func toSessionDTO(session persistence.Session) sessionDTO {
	return sessionDTO{
		SessionID:       session.SessionID,
		UserID:          session.UserID,
		Status:          string(session.Status),
		StartTime:       session.StartTime,
		EndTime:         session.EndTime,
		Location:        toLocationDTO(session.LocationLat, session.LocationLng),
		AudioFilePath:   session.AudioFilePath,
		DurationSeconds: session.DurationSeconds,
		CreatedAt:       session.CreatedAt,
	}
}

func toSessionDTOs(sessions []persistence.Session) []sessionDTO {
	out := make([]sessionDTO, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, toSessionDTO(s))
	}
	return out
}

type recordingDTO struct {
	ID          int64     `json:"id"`
	SessionID   string    `json:"session_id"`
	UserID      string    `json:"user_id"`
	FilePath    string    `json:"file_path"`
	FileSize    int64     `json:"file_size"`
	Duration    int64     `json:"duration"`
	AudioFormat string    `json:"audio_format"`
	Quality     string    `json:"quality"`
	CreatedAt   time.Time `json:"created_at"`
}

func toRecordingDTO(rec persistence.Recording) recordingDTO {
	return recordingDTO{
		ID:          rec.ID,
		SessionID:   rec.SessionID,
		UserID:      rec.UserID,
		FilePath:    rec.FilePath,
		FileSize:    rec.FileSizeBytes,
		Duration:    rec.DurationSeconds,
		AudioFormat: rec.AudioFormat,
		Quality:     rec.Quality,
		CreatedAt:   rec.CreatedAt,
	}
}

type logDTO struct {
	ID        int64     `json:"id"`
	Action    string    `json:"action"`
	UserID    *string   `json:"user_id"`
	SessionID *string   `json:"session_id"`
	IPAddress *string   `json:"ip_address"`
	Details   *string   `json:"details"`
	Timestamp time.Time `json:"timestamp"`
}

func toLogDTO(entry persistence.SystemLog) logDTO {
	return logDTO{
		ID:        entry.ID,
		Action:    entry.Action,
		UserID:    entry.UserID,
		SessionID: entry.SessionID,
		IPAddress: entry.IPAddress,
		Details:   entry.Details,
		Timestamp: entry.Timestamp,
	}
}

// decodeOptionalJSON decodes the body into dst. An empty body leaves dst untouched.
func decodeOptionalJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(dst)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
