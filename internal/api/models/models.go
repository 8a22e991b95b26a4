package models

import (
	"time"

	"github.com/smazurov/snapcam/internal/capture"
	"github.com/smazurov/snapcam/internal/metrics"
)

// Health check models
type HealthData struct {
	Status  string `json:"status" example:"ok" doc:"Service status"`
	Message string `json:"message" example:"API is healthy" doc:"Status message"`
	Camera  bool   `json:"camera" example:"true" doc:"Whether a camera is open"`
}

type HealthResponse struct {
	Body HealthData
}

// Version models
type VersionData struct {
	Version   string `json:"version" example:"dev" doc:"Application version"`
	GitCommit string `json:"git_commit" example:"abc1234" doc:"Git commit hash"`
	BuildDate string `json:"build_date" example:"2025-01-27T10:30:00Z" doc:"Build timestamp"`
	BuildID   string `json:"build_id" example:"42" doc:"Build identifier"`
	GoVersion string `json:"go_version" example:"go1.24.0" doc:"Go compiler version"`
	Compiler  string `json:"compiler" example:"gc" doc:"Go compiler"`
	Platform  string `json:"platform" example:"linux/arm64" doc:"Target platform"`
}

type VersionResponse struct {
	Body VersionData
}

// Camera models
type CameraStatusResponse struct {
	Body capture.Status
}

type CaptureResponse struct {
	Body capture.Result
}

type CaptureStatsData struct {
	DeviceID     string  `json:"device_id" doc:"Stable device identifier"`
	Delivered    uint64  `json:"delivered" doc:"Cycles that delivered a frame"`
	Timeouts     uint64  `json:"timeouts" doc:"Cycles that timed out"`
	Cancelled    uint64  `json:"cancelled" doc:"Cycles whose request was cancelled"`
	Errors       uint64  `json:"errors" doc:"Cycles that failed"`
	LastOutcome  string  `json:"last_outcome,omitempty" example:"delivered" doc:"Outcome of the latest cycle"`
	LastDuration float64 `json:"last_duration_ms,omitempty" doc:"Duration of the latest cycle"`
	LastCycleAt  string  `json:"last_cycle_at,omitempty" doc:"When the latest cycle finished"`
}

type CaptureStatsResponse struct {
	Body CaptureStatsData
}

// NewCaptureStats converts recorded metrics.
func NewCaptureStats(deviceID string, s *metrics.CaptureStats) CaptureStatsData {
	data := CaptureStatsData{DeviceID: deviceID}
	if s == nil {
		return data
	}
	data.Delivered = s.Delivered
	data.Timeouts = s.Timeouts
	data.Cancelled = s.Cancelled
	data.Errors = s.Errors
	data.LastOutcome = s.LastOutcome
	data.LastDuration = float64(s.LastDuration.Microseconds()) / 1000
	if !s.LastCycleAt.IsZero() {
		data.LastCycleAt = s.LastCycleAt.Format(time.RFC3339)
	}
	return data
}

// Log models
type LogEntry struct {
	Timestamp  string         `json:"timestamp" example:"2025-01-09T10:30:00.123Z" doc:"Log timestamp"`
	Level      string         `json:"level" example:"info" doc:"Log level"`
	Module     string         `json:"module" example:"camera" doc:"Source module"`
	Message    string         `json:"message" doc:"Log message"`
	Attributes map[string]any `json:"attributes,omitempty" doc:"Structured log attributes"`
}

type LogsInput struct {
	Limit  int    `query:"limit" default:"100" minimum:"1" maximum:"1000" doc:"Most recent entries to return"`
	Module string `query:"module" example:"camera" doc:"Only entries from this logger module"`
	Level  string `query:"level" enum:"debug,info,warn,error" doc:"Minimum level to return"`
}

type LogsData struct {
	Entries []LogEntry `json:"entries" doc:"Log entries, oldest first"`
	Count   int        `json:"count" doc:"Number of entries returned"`
}

type LogsResponse struct {
	Body LogsData
}
