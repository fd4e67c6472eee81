package models

import "time"

const (
	RunRunning   = "running"
	RunSucceeded = "succeeded"
	RunFailed    = "failed"
	RunIdle      = "idle"
)

// Run records one routed request. Content is never stored.
type Run struct {
	ID           string     `json:"id"`
	Modality     Modality   `json:"modality"`
	Status       string     `json:"status"`
	ErrorKind    string     `json:"error_kind,omitempty"`
	InputBytes   int64      `json:"input_bytes"`
	SummaryChars int        `json:"summary_chars"`
	StartedAt    time.Time  `json:"started_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
}
