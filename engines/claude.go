package engines

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const defaultClaudeMaxTokens = 1024

// Claude uses the Anthropic messages API. It has no embedding endpoint.
type Claude struct {
	client    anthropic.Client
	model     string
	maxTokens int
}

func NewClaude(cfg BackendConfig) (*Claude, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("%w: anthropic needs a model", ErrInvalidConfig)
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.ServerURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.ServerURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}
	return &Claude{
		client:    anthropic.NewClient(opts...),
		model:     cfg.Model,
		maxTokens: cfg.maxTokens(defaultClaudeMaxTokens),
	}, nil
}

func (c *Claude) Chat(prompt *ChatPrompt) (*ChatMessage, error) {
	var system []anthropic.TextBlockParam
	var messages []anthropic.MessageParam
	for _, msg := range prompt.History {
		switch msg.Role {
		case ConvRoleSystem:
			system = append(system, anthropic.TextBlockParam{Text: msg.Text})
		case ConvRoleAssistant:
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Text)))
		default:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Text)))
		}
	}

	resp, err := c.client.Messages.New(context.Background(), anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: int64(c.maxTokens),
		System:    system,
		Messages:  messages,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to chat with %s: %w", c.model, err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return nil, ErrEmptyResponse
	}
	return &ChatMessage{Role: ConvRoleAssistant, Text: text.String()}, nil
}
