package ipc

import "lyriscope/internal/api"

// PingRequest checks daemon liveness.
type PingRequest struct{}

// PingResponse acknowledges a ping.
type PingResponse struct {
	PID int `json:"pid"`
}

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// PipelineStatus mirrors the status DTO for internal IPC callers.
type PipelineStatus = api.PipelineStatus

// CheckResult describes one startup readiness check.
type CheckResult = api.CheckResult

// IndexSummary describes the configured image index.
type IndexSummary = api.IndexSummary

// StatusResponse represents combined daemon/pipeline status information.
type StatusResponse struct {
	Running    bool           `json:"running"`
	PID        int            `json:"pid"`
	LockPath   string         `json:"lock_path"`
	LogPath    string         `json:"log_path"`
	BridgeAddr string         `json:"bridge_addr"`
	Pipeline   PipelineStatus `json:"pipeline"`
	Checks     []CheckResult  `json:"checks"`
	Index      *IndexSummary  `json:"index"`
}

// SongRequest fetches the currently tracked song.
type SongRequest struct{}

// SongResponse contains the pipeline's view of the current song.
type SongResponse struct {
	Song api.SongView `json:"song"`
}

// StopRequest stops the daemon.
type StopRequest struct{}

// StopResponse indicates stop result.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}

// TestNotificationRequest triggers a notification test.
type TestNotificationRequest struct{}

// TestNotificationResponse reports notification test outcome.
type TestNotificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}
