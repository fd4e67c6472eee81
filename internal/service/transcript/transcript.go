package transcript

import (
	"context"
	"errors"
	"fmt"

	"github.com/kkdai/youtube/v2"
	"go.uber.org/zap"

	"omnisum/internal/models"
)

// Fragment is one caption entry. Timing is kept for caching only.
type Fragment struct {
	Text       string `json:"text"`
	OffsetMs   int    `json:"offset_ms"`
	DurationMs int    `json:"duration_ms"`
}

// Fetcher returns the time-ordered caption fragments of a video.
type Fetcher interface {
	Fetch(ctx context.Context, videoID string) ([]Fragment, error)
}

// YoutubeFetcher reads captions through the public YouTube player API.
type YoutubeFetcher struct {
	client   *youtube.Client
	language string
	logger   *zap.Logger
}

func NewYoutubeFetcher(language string, logger *zap.Logger) *YoutubeFetcher {
	if language == "" {
		language = "en"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &YoutubeFetcher{client: &youtube.Client{}, language: language, logger: logger}
}

func (f *YoutubeFetcher) Fetch(ctx context.Context, videoID string) ([]Fragment, error) {
	video, err := f.client.GetVideoContext(ctx, videoID)
	if err != nil {
		return nil, models.Wrap(models.ErrExternalService, fmt.Errorf("get video %s: %w", videoID, err))
	}
	segments, err := f.client.GetTranscriptCtx(ctx, video, f.language)
	if err != nil {
		if errors.Is(err, youtube.ErrTranscriptDisabled) {
			return nil, models.Wrap(models.ErrExternalService, fmt.Errorf("video %s has no %s captions: %w", videoID, f.language, err))
		}
		return nil, models.Wrap(models.ErrExternalService, fmt.Errorf("get transcript %s: %w", videoID, err))
	}
	fragments := make([]Fragment, 0, len(segments))
	for _, seg := range segments {
		fragments = append(fragments, Fragment{
			Text:       seg.Text,
			OffsetMs:   seg.StartMs,
			DurationMs: seg.Duration,
		})
	}
	f.logger.Debug("transcript fetched", zap.String("video_id", videoID), zap.Int("fragments", len(fragments)))
	return fragments, nil
}
