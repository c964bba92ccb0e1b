package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultGroqBaseURL  = "https://api.groq.com/openai/v1"
	DefaultGroqSTTModel = "whisper-large-v3-turbo"
)

// GroqTranscriber posts one utterance to an OpenAI-compatible
// /audio/transcriptions endpoint.
type GroqTranscriber struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

func NewGroqTranscriber(baseURL, apiKey, model string, timeout time.Duration) *GroqTranscriber {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultGroqBaseURL
	}
	if strings.TrimSpace(model) == "" {
		model = DefaultGroqSTTModel
	}
	return &GroqTranscriber{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:     strings.TrimSpace(apiKey),
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (g *GroqTranscriber) Transcribe(ctx context.Context, audio []byte, mediaType string) (string, error) {
	if g.apiKey == "" {
		return "", fmt.Errorf("groq stt: %w", ErrNoAPIKey)
	}
	if len(audio) == 0 {
		return "", ErrNoAudio
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "speech."+fileExtension(mediaType))
	if err != nil {
		_ = mw.Close()
		return "", err
	}
	if _, err := fw.Write(audio); err != nil {
		_ = mw.Close()
		return "", err
	}
	_ = mw.WriteField("model", g.model)
	_ = mw.WriteField("temperature", "0.0")
	_ = mw.WriteField("response_format", "json")
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/audio/transcriptions", &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return "", context.Canceled
		}
		return "", fmt.Errorf("groq stt: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("groq stt: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &APIError{Provider: "groq", StatusCode: resp.StatusCode, Message: upstreamMessage(raw)}
	}

	var out struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("groq stt: decode response: %w", err)
	}
	text := strings.TrimSpace(out.Text)
	if text == "" {
		return "", ErrEmptyTranscript
	}
	return text, nil
}

// fileExtension picks the upload filename suffix the backend sniffs formats from.
func fileExtension(mediaType string) string {
	mt, _, err := mime.ParseMediaType(mediaType)
	if err != nil {
		mt = strings.ToLower(strings.TrimSpace(mediaType))
	}
	switch mt {
	case "audio/wav", "audio/x-wav", "audio/wave":
		return "wav"
	case "audio/ogg":
		return "ogg"
	case "audio/mpeg", "audio/mp3":
		return "mp3"
	case "audio/mp4", "audio/m4a", "audio/x-m4a":
		return "m4a"
	default:
		return "webm"
	}
}

// upstreamMessage extracts {"error":{"message"}} or {"detail"} from an error body.
func upstreamMessage(body []byte) string {
	var out struct {
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &out); err == nil {
		if out.Error != nil && out.Error.Message != "" {
			return out.Error.Message
		}
		if len(out.Detail) > 0 {
			var s string
			if json.Unmarshal(out.Detail, &s) == nil && s != "" {
				return s
			}
			var d struct {
				Message string `json:"message"`
			}
			if json.Unmarshal(out.Detail, &d) == nil && d.Message != "" {
				return d.Message
			}
			return string(out.Detail)
		}
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 512 {
		msg = msg[:512]
	}
	return msg
}
