package voice

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	DefaultElevenLabsBaseURL = "https://api.elevenlabs.io"
	DefaultElevenLabsVoiceID = "JBFqnCBsd6RMkjVDRZzb"
	DefaultElevenLabsModelID = "eleven_multilingual_v2"

	elevenLabsOutputFormat = "mp3_44100_128"
)

type ElevenLabsConfig struct {
	APIKey      string
	BaseURL     string
	VoiceID     string
	ModelID     string
	HTTPTimeout time.Duration
}

// ElevenLabsClient synthesizes replies and proxies the voice design API.
type ElevenLabsClient struct {
	cfg        ElevenLabsConfig
	httpClient *http.Client
}

func NewElevenLabsClient(cfg ElevenLabsConfig) *ElevenLabsClient {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = DefaultElevenLabsBaseURL
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if strings.TrimSpace(cfg.VoiceID) == "" {
		cfg.VoiceID = DefaultElevenLabsVoiceID
	}
	if strings.TrimSpace(cfg.ModelID) == "" {
		cfg.ModelID = DefaultElevenLabsModelID
	}
	return &ElevenLabsClient{cfg: cfg, httpClient: &http.Client{Timeout: cfg.HTTPTimeout}}
}

func (c *ElevenLabsClient) Configured() bool { return c.cfg.APIKey != "" }

type ttsRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style"`
	UseSpeakerBoost bool    `json:"use_speaker_boost"`
}

// Synthesize renders text with the configured voice as MP3.
func (c *ElevenLabsClient) Synthesize(ctx context.Context, text string) (Audio, error) {
	if !c.Configured() {
		return Audio{}, fmt.Errorf("elevenlabs tts: %w", ErrNoAPIKey)
	}
	spoken := SpeechText(text)
	if spoken == "" {
		return Audio{}, fmt.Errorf("elevenlabs tts: nothing to speak")
	}

	endpoint := fmt.Sprintf("%s/v1/text-to-speech/%s?output_format=%s",
		c.cfg.BaseURL, url.PathEscape(c.cfg.VoiceID), elevenLabsOutputFormat)
	raw, err := c.post(ctx, endpoint, ttsRequest{
		Text:    spoken,
		ModelID: c.cfg.ModelID,
		VoiceSettings: voiceSettings{
			Stability:       0.42,
			SimilarityBoost: 0.8,
			Style:           0.1,
			UseSpeakerBoost: true,
		},
	}, "audio/mpeg")
	if err != nil {
		return Audio{}, fmt.Errorf("elevenlabs tts: %w", err)
	}
	if len(raw) == 0 {
		return Audio{}, ErrEmptySynthesis
	}
	return Audio{Base64: base64.StdEncoding.EncodeToString(raw), MediaType: "audio/mpeg"}, nil
}

// ValidationError is a request rejected before reaching ElevenLabs.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

var blockedVoiceTerms = []string{
	"chicano",
	"mexican",
	"latino",
	"latina",
	"hispanic",
	"mexicali",
	"cholo",
	"gangster",
}

// DesignRequest asks for generated voice previews from a description.
type DesignRequest struct {
	VoiceDescription string   `json:"voice_description"`
	Text             *string  `json:"text,omitempty"`
	ModelID          string   `json:"model_id,omitempty"`
	AutoGenerateText *bool    `json:"auto_generate_text,omitempty"`
	OutputFormat     string   `json:"output_format,omitempty"`
	Seed             *int64   `json:"seed,omitempty"`
	GuidanceScale    *float64 `json:"guidance_scale,omitempty"`
	Loudness         *float64 `json:"loudness,omitempty"`
	Quality          *float64 `json:"quality,omitempty"`
	StreamPreviews   *bool    `json:"stream_previews,omitempty"`
}

func (r DesignRequest) Validate() error {
	if utf8.RuneCountInString(strings.TrimSpace(r.VoiceDescription)) < 20 {
		return &ValidationError{Message: "voice_description must be at least 20 characters."}
	}
	if utf8.RuneCountInString(r.VoiceDescription) > 1000 {
		return &ValidationError{Message: "voice_description must be 1000 characters or fewer."}
	}
	lowered := strings.ToLower(r.VoiceDescription)
	for _, term := range blockedVoiceTerms {
		if strings.Contains(lowered, term) {
			return &ValidationError{Message: "Please describe the voice using neutral traits (pitch, pace, energy, clarity)."}
		}
	}
	if r.Text != nil && *r.Text != "" {
		if n := utf8.RuneCountInString(*r.Text); n < 100 || n > 1000 {
			return &ValidationError{Message: "text must be between 100 and 1000 characters when provided."}
		}
	}
	return nil
}

func (r DesignRequest) query() url.Values {
	q := url.Values{}
	if r.OutputFormat != "" {
		q.Set("output_format", r.OutputFormat)
	}
	if r.AutoGenerateText != nil {
		q.Set("auto_generate_text", strconv.FormatBool(*r.AutoGenerateText))
	}
	if r.Seed != nil {
		q.Set("seed", strconv.FormatInt(*r.Seed, 10))
	}
	if r.GuidanceScale != nil {
		q.Set("guidance_scale", strconv.FormatFloat(*r.GuidanceScale, 'f', -1, 64))
	}
	if r.Loudness != nil {
		q.Set("loudness", strconv.FormatFloat(*r.Loudness, 'f', -1, 64))
	}
	if r.Quality != nil {
		q.Set("quality", strconv.FormatFloat(*r.Quality, 'f', -1, 64))
	}
	if r.StreamPreviews != nil {
		q.Set("stream_previews", strconv.FormatBool(*r.StreamPreviews))
	}
	return q
}

// Design returns ElevenLabs' preview payload unchanged.
func (c *ElevenLabsClient) Design(ctx context.Context, req DesignRequest) (json.RawMessage, error) {
	if !c.Configured() {
		return nil, ErrNoAPIKey
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	body := struct {
		VoiceDescription string  `json:"voice_description"`
		Text             *string `json:"text,omitempty"`
		ModelID          string  `json:"model_id,omitempty"`
	}{req.VoiceDescription, req.Text, req.ModelID}

	endpoint := c.cfg.BaseURL + "/v1/text-to-voice/design"
	if q := req.query(); len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	raw, err := c.post(ctx, endpoint, body, "application/json")
	if err != nil {
		return nil, err
	}
	return json.RawMessage(raw), nil
}

// CreateRequest saves one of the designed previews as a library voice.
type CreateRequest struct {
	VoiceName                 string            `json:"voice_name"`
	VoiceDescription          string            `json:"voice_description"`
	GeneratedVoiceID          string            `json:"generated_voice_id"`
	Labels                    map[string]string `json:"labels,omitempty"`
	PlayedNotSelectedVoiceIDs []string          `json:"played_not_selected_voice_ids,omitempty"`
}

func (r CreateRequest) Validate() error {
	required := []struct{ name, value string }{
		{"voice_name", r.VoiceName},
		{"voice_description", r.VoiceDescription},
		{"generated_voice_id", r.GeneratedVoiceID},
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			return &ValidationError{Message: f.name + " is required."}
		}
	}
	return nil
}

func (c *ElevenLabsClient) Create(ctx context.Context, req CreateRequest) (json.RawMessage, error) {
	if !c.Configured() {
		return nil, ErrNoAPIKey
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	raw, err := c.post(ctx, c.cfg.BaseURL+"/v1/text-to-voice/create", req, "application/json")
	if err != nil {
		return nil, err
	}
	return json.RawMessage(raw), nil
}

func (c *ElevenLabsClient) post(ctx context.Context, endpoint string, payload any, accept string) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", accept)
	req.Header.Set("xi-api-key", c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil, context.Canceled
		}
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{
			Provider:   "elevenlabs",
			StatusCode: resp.StatusCode,
			Message:    upstreamMessage(raw),
			Detail:     upstreamDetail(raw),
		}
	}
	return raw, nil
}

// upstreamDetail is the body's "detail" field, the whole JSON body, or nil.
func upstreamDetail(body []byte) json.RawMessage {
	var out struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &out); err == nil && len(out.Detail) > 0 && string(out.Detail) != "null" {
		return out.Detail
	}
	if json.Valid(body) && len(bytes.TrimSpace(body)) > 0 {
		return json.RawMessage(body)
	}
	return nil
}
