package models

// SummaryResult is what a pathway hands back for display.
type SummaryResult struct {
	RunID           string   `json:"run_id,omitempty"`
	Modality        Modality `json:"choice"`
	Label           string   `json:"label"`
	ExtractedText   string   `json:"extracted_text,omitempty"`
	Summary         string   `json:"summary"`
	VideoID         string   `json:"video_id,omitempty"`
	ThumbnailURL    string   `json:"thumbnail_url,omitempty"`
	EmptyExtraction bool     `json:"empty_extraction"`
}
