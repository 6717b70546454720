package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"
	"go.uber.org/zap"

	"github.com/chatnova/backend/internal/models"
)

const (
	DefaultModel = "gpt-3.5-turbo"

	maxTokens      = 1000
	temperature    = 0.7
	requestTimeout = 30 * time.Second

	// Returned when the provider answers without a usable choice.
	fallbackReply = "Sorry, I could not generate a response."
)

// Client produces one assistant reply from the full prior message sequence.
// It holds no session state; the caller sends the complete context on every
// call.
type Client struct {
	llm    llms.Model
	logger *zap.Logger
}

func New(baseURL, token, model string, logger *zap.Logger) (*Client, error) {
	if model == "" {
		model = DefaultModel
	}
	opts := []openai.Option{
		openai.WithToken(token),
		openai.WithModel(model),
	}
	if baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}

	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("initialize completion backend: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{llm: llm, logger: logger}, nil
}

// Complete sends the prior messages, ending in the newest user message, and
// returns the generated assistant text.
func (c *Client) Complete(ctx context.Context, prior []models.Message) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	resp, err := c.llm.GenerateContent(ctx, toContent(prior),
		llms.WithMaxTokens(maxTokens),
		llms.WithTemperature(temperature),
	)
	if err != nil {
		c.logger.Warn("completion call failed", zap.Error(err), zap.Int("context_len", len(prior)))
		return "", fmt.Errorf("%w: generate completion: %w", models.ErrExternalService, err)
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Content == "" {
		return fallbackReply, nil
	}
	return resp.Choices[0].Content, nil
}

func toContent(prior []models.Message) []llms.MessageContent {
	contents := make([]llms.MessageContent, 0, len(prior))
	for _, msg := range prior {
		role := schema.ChatMessageTypeHuman
		if msg.Role == models.RoleAssistant {
			role = schema.ChatMessageTypeAI
		}
		contents = append(contents, llms.TextParts(role, msg.Content))
	}
	return contents
}
