package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultGroqBaseURL = "https://api.groq.com/openai/v1"
	DefaultGroqModel   = "llama-3.1-8b-instant"
)

// GroqClient calls an OpenAI-compatible chat completions endpoint.
type GroqClient struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

type GroqOption func(*GroqClient)

// WithHTTPTimeout bounds each request. Zero leaves the client without a timeout.
func WithHTTPTimeout(d time.Duration) GroqOption {
	return func(c *GroqClient) { c.httpClient = &http.Client{Timeout: d} }
}

func WithHTTPClient(hc *http.Client) GroqOption {
	return func(c *GroqClient) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

func NewGroqClient(baseURL, apiKey, model string, opts ...GroqOption) *GroqClient {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultGroqBaseURL
	}
	if strings.TrimSpace(model) == "" {
		model = DefaultGroqModel
	}
	c := &GroqClient{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:     strings.TrimSpace(apiKey),
		model:      model,
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (c *GroqClient) Complete(ctx context.Context, req Request) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("groq: %w", ErrNoAPIKey)
	}

	msgs := []chatMessage{{Role: "system", Content: systemPrompt(req)}}
	for _, m := range conversation(req) {
		msgs = append(msgs, chatMessage{Role: m.Role, Content: m.Content})
	}
	payload, err := json.Marshal(chatRequest{
		Model:          c.model,
		Messages:       msgs,
		Temperature:    0.4,
		MaxTokens:      300,
		ResponseFormat: &responseFormat{Type: "json_object"},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	res, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return "", &APIError{Provider: "groq", StatusCode: res.StatusCode, Message: errorMessage(body)}
	}

	var out chatResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", ErrEmptyCompletion
	}
	text := strings.TrimSpace(out.Choices[0].Message.Content)
	if text == "" {
		return "", ErrEmptyCompletion
	}
	return text, nil
}

func errorMessage(body []byte) string {
	var out chatResponse
	if err := json.Unmarshal(body, &out); err == nil && out.Error != nil && out.Error.Message != "" {
		return out.Error.Message
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 512 {
		msg = msg[:512]
	}
	return msg
}
