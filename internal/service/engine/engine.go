package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"omnisum/internal/models"
)

const systemPrompt = "You are a summarization engine. " +
	"Condense the text supplied by the user into a shorter passage that keeps its key points. " +
	"Output only the summary."

// Settings selects the chat model behind the engine.
type Settings struct {
	Provider string
	Model    string
	BaseURL  string
	APIKey   string
}

// Factory builds a chat model for the given settings.
type Factory func(ctx context.Context, s Settings) (model.BaseChatModel, error)

// ChatEngine summarizes text with an eino chat model. The model is built on
// first use so a missing credential only fails the request that needs it.
type ChatEngine struct {
	settings Settings
	factory  Factory
	logger   *zap.Logger

	mu        sync.Mutex
	chatModel model.BaseChatModel
}

// New returns an engine that builds its chat model with NewChatModel on first use.
func New(settings Settings, logger *zap.Logger) *ChatEngine {
	return NewWithFactory(settings, NewChatModel, logger)
}

// NewWithFactory is New with a custom model factory.
func NewWithFactory(settings Settings, factory Factory, logger *zap.Logger) *ChatEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	settings.Provider = strings.ToLower(strings.TrimSpace(settings.Provider))
	return &ChatEngine{settings: settings, factory: factory, logger: logger}
}

// Summarize sends text to the model unchanged and returns its reply verbatim.
func (e *ChatEngine) Summarize(ctx context.Context, text string) (string, error) {
	cm, err := e.model(ctx)
	if err != nil {
		return "", err
	}
	schemaMessages := []*schema.Message{
		{
			Role:    schema.System,
			Content: systemPrompt,
		},
		{
			Role:    schema.User,
			Content: text,
		},
	}
	resp, err := cm.Generate(ctx, schemaMessages)
	if err != nil {
		return "", models.Wrap(models.ErrExternalService, fmt.Errorf("summarize text: %w", err))
	}
	if resp == nil {
		return "", models.Wrap(models.ErrExternalService, errors.New("summarize text: empty response"))
	}
	e.logger.Debug("text summarized",
		zap.String("provider", e.settings.Provider),
		zap.Int("input_chars", len(text)),
		zap.Int("summary_chars", len(resp.Content)))
	return resp.Content, nil
}

func (e *ChatEngine) model(ctx context.Context) (model.BaseChatModel, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.chatModel != nil {
		return e.chatModel, nil
	}
	if strings.TrimSpace(e.settings.APIKey) == "" {
		return nil, fmt.Errorf("%w: no api key for provider %q", models.ErrMissingCredential, e.settings.Provider)
	}
	cm, err := e.factory(ctx, e.settings)
	if err != nil {
		return nil, models.Wrap(models.ErrExternalService, fmt.Errorf("init %s chat model: %w", e.settings.Provider, err))
	}
	e.chatModel = cm
	return cm, nil
}

// NewChatModel builds the eino chat model for openai, gemini or claude.
func NewChatModel(ctx context.Context, s Settings) (model.BaseChatModel, error) {
	switch s.Provider {
	case "openai":
		return openai.NewChatModel(ctx, &openai.ChatModelConfig{
			BaseURL: s.BaseURL,
			Model:   s.Model,
			APIKey:  s.APIKey,
		})
	case "gemini":
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  s.APIKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			return nil, fmt.Errorf("new gemini client: %w", err)
		}
		return gemini.NewChatModel(ctx, &gemini.Config{
			Client: client,
			Model:  s.Model,
		})
	case "claude":
		var baseURLPtr *string
		if s.BaseURL != "" {
			baseURLPtr = &s.BaseURL
		}
		return claude.NewChatModel(ctx, &claude.Config{
			APIKey:    s.APIKey,
			Model:     s.Model,
			BaseURL:   baseURLPtr,
			MaxTokens: 3000,
		})
	default:
		return nil, fmt.Errorf("invalid provider: %s", s.Provider)
	}
}
