package models

import (
	"fmt"
	"strings"
)

// Modality is the input type a client selects for one summary request.
type Modality string

const (
	ModalityText     Modality = "text"
	ModalityDocument Modality = "document"
	ModalityVideo    Modality = "video"
	ModalityAudio    Modality = "audio"
)

var modalityLabels = map[Modality]string{
	ModalityText:     "Summarize Text",
	ModalityDocument: "Summarize Document",
	ModalityVideo:    "Summarize YouTube Video",
	ModalityAudio:    "Summarize Audio",
}

// Choices lists the selectable modalities in display order.
func Choices() []Modality {
	return []Modality{ModalityText, ModalityDocument, ModalityVideo, ModalityAudio}
}

// Label returns the display string shown for the modality.
func (m Modality) Label() string {
	return modalityLabels[m]
}

func (m Modality) Valid() bool {
	_, ok := modalityLabels[m]
	return ok
}

// ParseChoice accepts either a display label ("Summarize Audio") or a short id ("audio").
func ParseChoice(raw string) (Modality, error) {
	val := strings.TrimSpace(raw)
	if val == "" {
		return "", fmt.Errorf("%w: choice is required", ErrInputMalformed)
	}
	for m, label := range modalityLabels {
		if strings.EqualFold(val, label) || strings.EqualFold(val, string(m)) {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w: unknown choice %q", ErrInputMalformed, raw)
}
