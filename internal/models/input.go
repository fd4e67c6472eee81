package models

import (
	"io"
	"path/filepath"
	"strings"
)

// Upload is a binary payload received from the client.
type Upload struct {
	FileName string
	Size     int64
	Content  io.Reader
}

// Extension returns the lower-cased file extension without the dot.
func (u *Upload) Extension() string {
	if u == nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(u.FileName)), ".")
}

// RawInput carries whichever payload the selected modality needs.
type RawInput struct {
	Text   string
	URL    string
	Upload *Upload
	// FirstPageOnly restricts document extraction to page one.
	FirstPageOnly bool
}

// HasText reports whether any text was entered. The text itself is opaque,
// so whitespace still counts.
func (in RawInput) HasText() bool {
	return in.Text != ""
}

func (in RawInput) HasURL() bool {
	return strings.TrimSpace(in.URL) != ""
}

func (in RawInput) HasUpload() bool {
	return in.Upload != nil && in.Upload.Content != nil
}
