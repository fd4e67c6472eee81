package summary

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"omnisum/internal/models"
	"omnisum/internal/service/gemini"
	"omnisum/internal/service/transcript"
)

const (
	// EmptyPass forwards empty extracted text to the summarizer and flags the result.
	EmptyPass = "pass"
	// EmptySkip short-circuits empty extracted text with models.ErrEmptyResult.
	EmptySkip = "skip"
)

var (
	documentExtensions = map[string]bool{"pdf": true}
	audioExtensions    = map[string]bool{"wav": true, "mp3": true}
)

// Engine compresses text into a summary.
type Engine interface {
	Summarize(ctx context.Context, text string) (string, error)
}

// DocumentExtractor returns the text of a staged document.
type DocumentExtractor interface {
	Extract(ctx context.Context, path string, firstPageOnly bool) (string, error)
}

// Generator is the generative-content backend used for videos and audio.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	SummarizeFile(ctx context.Context, path, mimeType, instruction string) (string, error)
}

// Stager writes uploads to temporary files and releases them.
type Stager interface {
	Stage(ctx context.Context, modality models.Modality, upload *models.Upload) (*models.StagedFile, error)
	Release(ctx context.Context, staged *models.StagedFile) error
}

// Deps are the collaborators of a Router.
type Deps struct {
	Engine      Engine
	Documents   DocumentExtractor
	Transcripts transcript.Fetcher
	Generator   Generator
	Stager      Stager
}

// Router dispatches one modality to exactly one pathway.
type Router struct {
	deps        Deps
	emptyPolicy string
	logger      *zap.Logger
}

// NewRouter builds a Router; emptyPolicy is EmptyPass or EmptySkip.
func NewRouter(deps Deps, emptyPolicy string, logger *zap.Logger) *Router {
	if emptyPolicy == "" {
		emptyPolicy = EmptyPass
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{deps: deps, emptyPolicy: emptyPolicy, logger: logger}
}

// Route runs the pathway for modality. When the payload that modality needs is
// absent it returns models.ErrNoInput without touching any collaborator.
func (r *Router) Route(ctx context.Context, modality models.Modality, in models.RawInput) (*models.SummaryResult, error) {
	var (
		result *models.SummaryResult
		err    error
	)
	switch modality {
	case models.ModalityText:
		if !in.HasText() {
			return nil, models.ErrNoInput
		}
		result, err = r.summarizeText(ctx, in.Text)
	case models.ModalityDocument:
		if !in.HasUpload() {
			return nil, models.ErrNoInput
		}
		result, err = r.summarizeDocument(ctx, in.Upload, in.FirstPageOnly)
	case models.ModalityVideo:
		if !in.HasURL() {
			return nil, models.ErrNoInput
		}
		result, err = r.summarizeVideo(ctx, in.URL)
	case models.ModalityAudio:
		if !in.HasUpload() {
			return nil, models.ErrNoInput
		}
		result, err = r.summarizeAudio(ctx, in.Upload)
	default:
		return nil, fmt.Errorf("%w: unknown modality %q", models.ErrInputMalformed, modality)
	}
	if err != nil {
		return nil, err
	}
	result.Modality = modality
	result.Label = modality.Label()
	return result, nil
}

// SummarizeText forwards text to the engine unchanged.
func (r *Router) SummarizeText(ctx context.Context, text string) (string, error) {
	summary, err := r.deps.Engine.Summarize(ctx, text)
	if err != nil {
		return "", models.Wrap(models.ErrExternalService, err)
	}
	return summary, nil
}

func (r *Router) summarizeText(ctx context.Context, text string) (*models.SummaryResult, error) {
	summary, err := r.SummarizeText(ctx, text)
	if err != nil {
		return nil, err
	}
	return &models.SummaryResult{ExtractedText: text, Summary: summary}, nil
}

func (r *Router) summarizeDocument(ctx context.Context, upload *models.Upload, firstPageOnly bool) (*models.SummaryResult, error) {
	if ext := upload.Extension(); !documentExtensions[ext] {
		return nil, fmt.Errorf("%w: unsupported document extension %q", models.ErrInputMalformed, ext)
	}
	staged, err := r.deps.Stager.Stage(ctx, models.ModalityDocument, upload)
	if err != nil {
		return nil, err
	}
	defer r.release(ctx, staged)

	if staged.MimeType != "application/pdf" {
		return nil, fmt.Errorf("%w: %s is not a pdf (%s)", models.ErrInputMalformed, upload.FileName, staged.MimeType)
	}
	text, err := r.deps.Documents.Extract(ctx, staged.StoredPath, firstPageOnly)
	if err != nil {
		return nil, err
	}
	empty, err := r.checkEmpty(text)
	if err != nil {
		return nil, err
	}
	summary, err := r.SummarizeText(ctx, text)
	if err != nil {
		return nil, err
	}
	return &models.SummaryResult{ExtractedText: text, Summary: summary, EmptyExtraction: empty}, nil
}

func (r *Router) summarizeVideo(ctx context.Context, rawURL string) (*models.SummaryResult, error) {
	videoID, err := ParseVideoID(rawURL)
	if err != nil {
		return nil, err
	}
	fragments, err := r.deps.Transcripts.Fetch(ctx, videoID)
	if err != nil {
		return nil, models.Wrap(models.ErrExternalService, err)
	}
	flat := FlattenTranscript(fragments)
	// a video without transcript text is never sent to the model
	if strings.TrimSpace(flat) == "" {
		return nil, fmt.Errorf("%w: video %s has an empty transcript", models.ErrEmptyResult, videoID)
	}
	notes, err := r.deps.Generator.Generate(ctx, VideoPrompt+flat)
	if err != nil {
		return nil, models.Wrap(models.ErrExternalService, err)
	}
	return &models.SummaryResult{
		ExtractedText: flat,
		Summary:       notes,
		VideoID:       videoID,
		ThumbnailURL:  ThumbnailURL(videoID),
	}, nil
}

func (r *Router) summarizeAudio(ctx context.Context, upload *models.Upload) (*models.SummaryResult, error) {
	if ext := upload.Extension(); !audioExtensions[ext] {
		return nil, fmt.Errorf("%w: unsupported audio extension %q", models.ErrInputMalformed, ext)
	}
	staged, err := r.deps.Stager.Stage(ctx, models.ModalityAudio, upload)
	if err != nil {
		return nil, err
	}
	defer r.release(ctx, staged)

	if !strings.HasPrefix(staged.MimeType, "audio/") {
		return nil, fmt.Errorf("%w: %s is not audio (%s)", models.ErrInputMalformed, upload.FileName, staged.MimeType)
	}
	summary, err := r.deps.Generator.SummarizeFile(ctx, staged.StoredPath, staged.MimeType, gemini.AudioPrompt)
	if err != nil {
		return nil, models.Wrap(models.ErrExternalService, err)
	}
	return &models.SummaryResult{Summary: summary}, nil
}

func (r *Router) checkEmpty(text string) (bool, error) {
	if strings.TrimSpace(text) != "" {
		return false, nil
	}
	if r.emptyPolicy == EmptySkip {
		return true, models.ErrEmptyResult
	}
	r.logger.Info("empty extraction passed to summarizer")
	return true, nil
}

func (r *Router) release(ctx context.Context, staged *models.StagedFile) {
	if err := r.deps.Stager.Release(context.WithoutCancel(ctx), staged); err != nil {
		r.logger.Warn("release staged file", zap.String("path", staged.StoredPath), zap.Error(err))
	}
}
