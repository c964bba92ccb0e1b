package completion

import (
	"context"
	"fmt"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/param"
)

const DefaultAnthropicModel = "claude-3-5-haiku-latest"

// AnthropicClient implements Client using the Anthropic Messages API.
type AnthropicClient struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

func NewAnthropicClient(apiKey, model string, opts ...option.RequestOption) *AnthropicClient {
	if strings.TrimSpace(model) == "" {
		model = DefaultAnthropicModel
	}
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &AnthropicClient{
		client:    anthropic.NewClient(opts...),
		model:     model,
		maxTokens: 300,
	}
}

func (c *AnthropicClient) Complete(ctx context.Context, req Request) (string, error) {
	msg, err := c.client.Messages.New(ctx, c.buildParams(req))
	if err != nil {
		return "", fmt.Errorf("anthropic complete: %w", err)
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	out := strings.TrimSpace(text.String())
	if out == "" {
		return "", ErrEmptyCompletion
	}
	return out, nil
}

func (c *AnthropicClient) buildParams(req Request) anthropic.MessageNewParams {
	turns := conversation(req)
	messages := make([]anthropic.MessageParam, 0, len(turns))
	for _, m := range turns {
		if m.Role == "assistant" {
			// The Messages API requires the first turn to come from the user.
			if len(messages) == 0 {
				continue
			}
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
			continue
		}
		messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
	}

	return anthropic.MessageNewParams{
		Model:       anthropic.Model(c.model),
		Messages:    messages,
		MaxTokens:   c.maxTokens,
		System:      []anthropic.TextBlockParam{{Text: systemPrompt(req)}},
		Temperature: param.NewOpt(0.4),
	}
}
