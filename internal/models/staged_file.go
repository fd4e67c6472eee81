package models

import "time"

const (
	StagedActive   = "active"
	StagedReleased = "released"
)

// StagedFile is an upload written to a uniquely named temporary file for one request.
type StagedFile struct {
	ID         int64     `json:"id"`
	Modality   Modality  `json:"modality"`
	FileName   string    `json:"file_name"`
	StoredPath string    `json:"stored_path"`
	MimeType   string    `json:"mime_type"`
	Size       int64     `json:"size"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}
