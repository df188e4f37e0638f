package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"google.golang.org/genai"

	"chatclone/internal/config"
	"chatclone/internal/models"
)

// Completer turns an ordered message history into one assistant message.
type Completer interface {
	Complete(ctx context.Context, history []models.Message, temperature float32) (models.Message, error)
}

// CompletionError wraps any failure of the completion call: transport, provider
// rejection or an unusable response.
type CompletionError struct {
	Provider string
	Model    string
	Err      error
}

func (e *CompletionError) Error() string {
	return fmt.Sprintf("completion failed (%s/%s): %v", e.Provider, e.Model, e.Err)
}

func (e *CompletionError) Unwrap() error {
	return e.Err
}

type aiService struct {
	chatModel model.BaseChatModel
	provider  string
	model     string
}

// NewAiService builds the chat model for the configured provider.
func NewAiService(ctx context.Context, cfg config.ProviderConfig) (Completer, error) {
	var (
		chatModel model.ToolCallingChatModel
		err       error
	)
	switch cfg.Name {
	case config.ProviderOpenAI:
		chatModel, err = openai.NewChatModel(ctx, &openai.ChatModelConfig{
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			APIKey:  cfg.APIKey,
		})
	case config.ProviderGemini:
		var client *genai.Client
		client, err = genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  cfg.APIKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			return nil, errors.Wrap(err, "create gemini client")
		}
		chatModel, err = gemini.NewChatModel(ctx, &gemini.Config{
			Client: client,
			Model:  cfg.Model,
		})
	case config.ProviderClaude:
		var baseURLPtr *string
		if cfg.BaseURL != "" {
			baseURLPtr = &cfg.BaseURL
		}
		maxTokens := cfg.MaxTokens
		if maxTokens <= 0 {
			maxTokens = 3000
		}
		chatModel, err = claude.NewChatModel(ctx, &claude.Config{
			APIKey:    cfg.APIKey,
			Model:     cfg.Model,
			BaseURL:   baseURLPtr,
			MaxTokens: maxTokens,
		})
	default:
		return nil, &config.ConfigurationError{Key: "provider.name", Reason: fmt.Sprintf("unknown provider %q", cfg.Name)}
	}
	if err != nil {
		return nil, errors.Wrapf(err, "init %s chat model", cfg.Name)
	}
	log.Info().Str("provider", cfg.Name).Str("model", cfg.Model).Msg("completion client ready")
	return NewWithModel(chatModel, cfg.Name, cfg.Model), nil
}

// NewWithModel wraps an already constructed eino chat model.
func NewWithModel(chatModel model.BaseChatModel, provider, modelName string) Completer {
	return &aiService{chatModel: chatModel, provider: provider, model: modelName}
}

// Complete sends the full history in one request and returns the assistant reply.
func (s *aiService) Complete(ctx context.Context, history []models.Message, temperature float32) (models.Message, error) {
	if len(history) == 0 {
		return models.Message{}, s.fail(errors.New("empty message history"))
	}
	resp, err := s.chatModel.Generate(ctx, convertMessages(history), model.WithTemperature(temperature))
	if err != nil {
		return models.Message{}, s.fail(err)
	}
	if resp == nil || strings.TrimSpace(resp.Content) == "" {
		return models.Message{}, s.fail(errors.New("empty response"))
	}
	return models.AssistantMessage(resp.Content), nil
}

func (s *aiService) fail(err error) error {
	return &CompletionError{Provider: s.provider, Model: s.model, Err: err}
}

func convertMessages(history []models.Message) []*schema.Message {
	messages := make([]*schema.Message, 0, len(history))
	for _, msg := range history {
		var role schema.RoleType
		switch msg.Role {
		case models.RoleAssistant:
			role = schema.Assistant
		default:
			role = schema.User
		}
		messages = append(messages, &schema.Message{
			Role:    role,
			Content: msg.Content,
		})
	}
	return messages
}
