// Package completion obtains the agent's raw reply from a language model.
package completion

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ent0n29/gbird/internal/reliability"
	"github.com/ent0n29/gbird/internal/reply"
)

var (
	ErrNoAPIKey = errors.New("completion: API key required")
	// ErrEmptyCompletion is returned when the model produced no text.
	ErrEmptyCompletion = errors.New("completion: empty response")
)

// Request is one reply-generation call. System overrides the default prompt
// derived from Context when set.
type Request struct {
	Transcript string                 `json:"transcript"`
	Context    *reply.RequestContext  `json:"context,omitempty"`
	History    []reply.HistoryMessage `json:"history,omitempty"`
	System     string                 `json:"-"`
}

// FromReplyRequest adapts an assembled request.
func FromReplyRequest(r reply.Request) Request {
	return Request{Transcript: r.Transcript, Context: r.Context, History: r.History}
}

// Client returns raw model output for the response parser.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Config controls client construction.
type Config struct {
	Provider        string
	GroqAPIKey      string
	GroqBaseURL     string
	GroqModel       string
	AnthropicAPIKey string
	AnthropicModel  string
	HTTPTimeout     time.Duration
}

// APIError is a non-2xx answer from a completion backend.
type APIError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("completion [%s]: API error %d: %s", e.Provider, e.StatusCode, e.Message)
}

func (e *APIError) IsRetryable() bool {
	return reliability.IsRetryableHTTPStatus(e.StatusCode)
}

func NewClient(cfg Config) (Client, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if provider == "" {
		provider = "auto"
	}

	switch provider {
	case "auto":
		return newAutoClient(cfg), nil
	case "groq":
		if strings.TrimSpace(cfg.GroqAPIKey) == "" {
			return nil, fmt.Errorf("groq: %w", ErrNoAPIKey)
		}
		return NewGroqClient(cfg.GroqBaseURL, cfg.GroqAPIKey, cfg.GroqModel, WithHTTPTimeout(cfg.HTTPTimeout)), nil
	case "anthropic":
		if strings.TrimSpace(cfg.AnthropicAPIKey) == "" {
			return nil, fmt.Errorf("anthropic: %w", ErrNoAPIKey)
		}
		return NewAnthropicClient(cfg.AnthropicAPIKey, cfg.AnthropicModel), nil
	case "mock":
		return NewMockClient(), nil
	default:
		return nil, fmt.Errorf("unsupported completion provider %q", cfg.Provider)
	}
}

// newAutoClient prefers Groq, then Anthropic, then the mock. When both keys
// are present Anthropic serves as the fallback.
func newAutoClient(cfg Config) Client {
	var groq, claude Client
	if strings.TrimSpace(cfg.GroqAPIKey) != "" {
		groq = NewGroqClient(cfg.GroqBaseURL, cfg.GroqAPIKey, cfg.GroqModel, WithHTTPTimeout(cfg.HTTPTimeout))
	}
	if strings.TrimSpace(cfg.AnthropicAPIKey) != "" {
		claude = NewAnthropicClient(cfg.AnthropicAPIKey, cfg.AnthropicModel)
	}
	switch {
	case groq != nil && claude != nil:
		return NewFallbackClient(groq, claude)
	case groq != nil:
		return groq
	case claude != nil:
		return claude
	default:
		return NewMockClient()
	}
}

// systemPrompt returns req.System or the prompt built from the context.
func systemPrompt(req Request) string {
	if s := strings.TrimSpace(req.System); s != "" {
		return s
	}
	return reply.SystemPrompt(req.Context)
}

// conversation returns history followed by the transcript. The transcript is
// not repeated when it is already the newest user message.
func conversation(req Request) []reply.HistoryMessage {
	out := make([]reply.HistoryMessage, 0, len(req.History)+1)
	for _, m := range req.History {
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		role := m.Role
		if role != "assistant" {
			role = "user"
		}
		out = append(out, reply.HistoryMessage{Role: role, Content: m.Content})
	}
	transcript := strings.TrimSpace(req.Transcript)
	if transcript == "" {
		return out
	}
	if n := len(out); n > 0 && out[n-1].Role == "user" && strings.TrimSpace(out[n-1].Content) == transcript {
		return out
	}
	return append(out, reply.HistoryMessage{Role: "user", Content: transcript})
}
