package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"omnisum/internal/models"
)

const (
	// AudioPrompt accompanies every uploaded audio file.
	AudioPrompt = "Please summarize the following audio."

	filePollInterval = 2 * time.Second
)

// Settings configures the generative-content backend.
type Settings struct {
	APIKey     string
	VideoModel string
	AudioModel string
}

// Client talks to the Gemini API. The underlying genai client is created on
// first use; a missing key is reported then, not at construction.
type Client struct {
	settings Settings
	logger   *zap.Logger

	mu     sync.Mutex
	client *genai.Client
}

// New returns a client; the genai connection is opened on first use.
func New(settings Settings, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{settings: settings, logger: logger}
}

// Generate submits a text prompt to the video model and returns its reply verbatim.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	client, err := c.genai(ctx)
	if err != nil {
		return "", err
	}
	result, err := client.Models.GenerateContent(ctx, c.settings.VideoModel, genai.Text(prompt), nil)
	if err != nil {
		return "", models.Wrap(models.ErrExternalService, fmt.Errorf("generate content: %w", err))
	}
	return responseText(result)
}

// SummarizeFile uploads the file at path, asks the audio model to follow
// instruction against it and deletes the remote copy afterwards.
func (c *Client) SummarizeFile(ctx context.Context, path, mimeType, instruction string) (string, error) {
	client, err := c.genai(ctx)
	if err != nil {
		return "", err
	}
	file, err := client.Files.UploadFromPath(ctx, path, &genai.UploadFileConfig{MIMEType: mimeType})
	if err != nil {
		return "", models.Wrap(models.ErrExternalService, fmt.Errorf("upload file: %w", err))
	}
	defer func() {
		// the request context may already be done
		delCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if _, err := client.Files.Delete(delCtx, file.Name, nil); err != nil {
			c.logger.Warn("delete uploaded file", zap.String("name", file.Name), zap.Error(err))
		}
	}()

	file, err = c.waitActive(ctx, client, file)
	if err != nil {
		return "", err
	}

	parts := []*genai.Part{
		genai.NewPartFromText(instruction),
		genai.NewPartFromURI(file.URI, file.MIMEType),
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
	result, err := client.Models.GenerateContent(ctx, c.settings.AudioModel, contents, nil)
	if err != nil {
		return "", models.Wrap(models.ErrExternalService, fmt.Errorf("generate content: %w", err))
	}
	return responseText(result)
}

func (c *Client) waitActive(ctx context.Context, client *genai.Client, file *genai.File) (*genai.File, error) {
	for {
		switch file.State {
		case genai.FileStateActive, genai.FileStateUnspecified:
			return file, nil
		case genai.FileStateFailed:
			return nil, models.Wrap(models.ErrExternalService, fmt.Errorf("file %s failed processing", file.Name))
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(filePollInterval):
		}
		next, err := client.Files.Get(ctx, file.Name, nil)
		if err != nil {
			return nil, models.Wrap(models.ErrExternalService, fmt.Errorf("get file %s: %w", file.Name, err))
		}
		file = next
	}
}

func (c *Client) genai(ctx context.Context) (*genai.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client != nil {
		return c.client, nil
	}
	if strings.TrimSpace(c.settings.APIKey) == "" {
		return nil, fmt.Errorf("%w: GOOGLE_API_KEY is not set", models.ErrMissingCredential)
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  c.settings.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, models.Wrap(models.ErrExternalService, fmt.Errorf("create client: %w", err))
	}
	c.client = client
	return client, nil
}

func responseText(result *genai.GenerateContentResponse) (string, error) {
	if result != nil && len(result.Candidates) > 0 && result.Candidates[0].Content != nil {
		var text string
		for _, part := range result.Candidates[0].Content.Parts {
			if part.Text != "" {
				text += part.Text
			}
		}
		return text, nil
	}
	return "", models.Wrap(models.ErrExternalService, errors.New("empty response from Gemini"))
}
