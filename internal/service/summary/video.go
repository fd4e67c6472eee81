package summary

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"omnisum/internal/models"
	"omnisum/internal/service/transcript"
)

// VideoPrompt is prepended to every flattened transcript. The word limit is
// advisory to the model and not enforced here.
const VideoPrompt = "You are a YouTube video summarizer. You will be taking the transcript text " +
	"and summarizing the entire video, providing the important summary as bullet points " +
	"within 250 words. Please provide the summary of the text given here: "

const thumbnailURLFormat = "http://img.youtube.com/vi/%s/0.jpg"

var videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ParseVideoID extracts the "v" query parameter of a watch URL.
func ParseVideoID(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", models.ErrNoInput
	}
	if !strings.Contains(raw, "=") {
		return "", fmt.Errorf("%w: %q has no video parameter", models.ErrInputMalformed, raw)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: parse video url: %v", models.ErrInputMalformed, err)
	}
	id := u.Query().Get("v")
	if id == "" {
		return "", fmt.Errorf("%w: %q has no v parameter", models.ErrInputMalformed, raw)
	}
	if !videoIDPattern.MatchString(id) {
		return "", fmt.Errorf("%w: invalid video id %q", models.ErrInputMalformed, id)
	}
	return id, nil
}

// ThumbnailURL returns the preview image shown next to a video.
func ThumbnailURL(videoID string) string {
	return fmt.Sprintf(thumbnailURLFormat, videoID)
}

// FlattenTranscript concatenates fragment texts, each preceded by one space.
func FlattenTranscript(fragments []transcript.Fragment) string {
	var builder strings.Builder
	for _, f := range fragments {
		builder.WriteString(" ")
		builder.WriteString(f.Text)
	}
	return builder.String()
}
