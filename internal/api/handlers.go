package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"omnisum/internal/auth"
	"omnisum/internal/models"
	"omnisum/internal/service/summary"
	"omnisum/internal/worker"
)

const defaultMaxUploadBytes = 25 << 20

// Summarizer runs one summary request for a client.
type Summarizer interface {
	Summarize(ctx context.Context, clientKey string, modality models.Modality, in models.RawInput) (*models.SummaryResult, error)
}

// RunLister lists recent run metadata.
type RunLister interface {
	Recent(ctx context.Context, limit int) ([]models.Run, error)
}

type Options struct {
	MaxUploadBytes int64
	// DefaultPageMode applies when a document request carries no pages field.
	DefaultPageMode string
}

// Handler wires HTTP routes to the summary manager.
type Handler struct {
	summarizer     Summarizer
	runs           RunLister
	auth           *auth.Service
	maxUploadBytes int64
	firstPageOnly  bool
	logger         *zap.Logger
}

// NewHandler constructs a Handler instance.
func NewHandler(summarizer Summarizer, runs RunLister, authService *auth.Service, opts Options, logger *zap.Logger) *Handler {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxUploadBytes
	}
	if authService == nil {
		authService = auth.NewService(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		summarizer:     summarizer,
		runs:           runs,
		auth:           authService,
		maxUploadBytes: opts.MaxUploadBytes,
		firstPageOnly:  opts.DefaultPageMode == "first_page",
		logger:         logger,
	}
}

// RegisterRoutes attaches all HTTP routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api")
	api.GET("/health", h.health)
	gated := api.Group("")
	gated.Use(h.auth.Middleware())
	gated.GET("/choices", h.listChoices)
	gated.GET("/videos/preview", h.previewVideo)
	gated.POST("/summarize", h.summarize)
	gated.GET("/runs", h.listRuns)
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) listChoices(c *gin.Context) {
	choices := make([]gin.H, 0, len(models.Choices()))
	for _, m := range models.Choices() {
		choices = append(choices, gin.H{"id": m, "label": m.Label()})
	}
	c.JSON(http.StatusOK, gin.H{"choices": choices})
}

func (h *Handler) previewVideo(c *gin.Context) {
	videoID, err := summary.ParseVideoID(c.Query("url"))
	if err != nil {
		if errors.Is(err, models.ErrNoInput) {
			c.JSON(http.StatusOK, gin.H{"state": "awaiting_input"})
			return
		}
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"video_id":      videoID,
		"thumbnail_url": summary.ThumbnailURL(videoID),
	})
}

func (h *Handler) summarize(c *gin.Context) {
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes+1<<20)
		if err := c.Request.ParseMultipartForm(h.maxUploadBytes); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large", "kind": "input_malformed"})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid multipart form", "kind": "input_malformed"})
			return
		}
	}
	modality, err := models.ParseChoice(c.PostForm("choice"))
	if err != nil {
		writeError(c, err)
		return
	}
	in := models.RawInput{
		Text:          c.PostForm("text"),
		URL:           c.PostForm("url"),
		FirstPageOnly: h.firstPageOnly,
	}
	switch c.PostForm("pages") {
	case "":
	case "all":
		in.FirstPageOnly = false
	case "first_page":
		in.FirstPageOnly = true
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "pages must be all or first_page", "kind": "input_malformed"})
		return
	}

	if modality == models.ModalityDocument || modality == models.ModalityAudio {
		file, err := c.FormFile("file")
		switch {
		case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
		case err != nil:
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid file field", "kind": "input_malformed"})
			return
		default:
			if file.Size > h.maxUploadBytes {
				c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large", "kind": "input_malformed"})
				return
			}
			f, err := file.Open()
			if err != nil {
				writeError(c, models.Wrap(models.ErrUploadIO, err))
				return
			}
			defer f.Close()
			in.Upload = &models.Upload{FileName: file.Filename, Size: file.Size, Content: f}
		}
	}

	result, err := h.summarizer.Summarize(c.Request.Context(), auth.ClientKeyFromContext(c), modality, in)
	if err != nil {
		if errors.Is(err, models.ErrNoInput) {
			c.JSON(http.StatusOK, gin.H{
				"state":  "awaiting_input",
				"choice": modality,
				"label":  modality.Label(),
			})
			return
		}
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) listRuns(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit", "kind": "input_malformed"})
			return
		}
		limit = n
	}
	runs, err := h.runs.Recent(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("list runs", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list runs failed", "kind": "internal"})
		return
	}
	if runs == nil {
		runs = []models.Run{}
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

func writeError(c *gin.Context, err error) {
	status, kind := statusFor(err)
	c.JSON(status, gin.H{"error": err.Error(), "kind": kind})
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, worker.ErrDispatcherBusy):
		return http.StatusTooManyRequests, "busy"
	case errors.Is(err, worker.ErrDispatcherStopped):
		return http.StatusServiceUnavailable, "unavailable"
	}
	kind := models.ErrorKind(err)
	switch kind {
	case "input_malformed":
		return http.StatusBadRequest, kind
	case "upload_io":
		return http.StatusInternalServerError, kind
	case "missing_credential":
		return http.StatusUnauthorized, kind
	case "empty_result":
		return http.StatusUnprocessableEntity, kind
	case "timeout":
		return http.StatusGatewayTimeout, kind
	case "external_service":
		return http.StatusBadGateway, kind
	default:
		return http.StatusInternalServerError, kind
	}
}
