// Package http exposes the listening monitor over JSON/HTTP.
//
// The router exposes the following endpoints:
//   - POST /api/start-listening/{user_id}: opens a listening session, closing any
//     session already active for the user. Optional body {"lat","lng"}; the same
//     values are accepted as query parameters.
//   - POST /api/stop-listening/{user_id}: closes the active session. 404 when the
//     user has nothing active.
//   - POST /api/sessions/{session_id}/end: closes a session by id.
//   - POST /api/upload-recording: registers recording metadata exchanged as the
//     `uploadRecordingRequest` payload defined in session_handler.go.
//   - GET /api/users, /api/users/{user_id}, /api/users/{user_id}/sessions: user
//     directory. /api/users accepts `status` and `q` filters.
//   - GET /api/users/{user_id}/summary?days=N: per user activity summary.
//   - GET /api/audio/{user_id}/latest, /api/recordings/recent?limit=N: recordings.
//   - GET /api/sessions?q=, /api/sessions/active, /api/sessions/{session_id}: sessions.
//   - GET /api/dashboard-data, /api/dashboard/stats, /api/analytics/hourly-activity?days=N:
//     dashboard analytics.
//   - GET /api/logs?limit=N: recent audit entries.
//   - GET /api/health/system: data anomaly report.
//   - POST /api/maintenance/cleanup?days=N&dry_run=true: retention cleanup or preview.
//   - GET /health: liveness probe.
//
// Mutating endpoints are rate limited per client address. Request/response DTOs
// live alongside their handlers.
package http
