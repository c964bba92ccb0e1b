package voice

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ent0n29/gbird/internal/reliability"
)

var (
	ErrMicrophoneUnavailable = errors.New("microphone unavailable")
	ErrNoAPIKey              = errors.New("voice: API key required")
	ErrEmptyTranscript       = errors.New("transcription returned no text")
	ErrNoAudio               = errors.New("no audio captured")
	ErrEmptySynthesis        = errors.New("synthesis returned no audio")
)

// APIError is a non-2xx answer from a speech backend.
type APIError struct {
	Provider   string
	StatusCode int
	Message    string
	Detail     json.RawMessage // upstream JSON error body, if any
}

func (e *APIError) Error() string {
	return fmt.Sprintf("voice [%s]: API error %d: %s", e.Provider, e.StatusCode, e.Message)
}

func (e *APIError) IsRetryable() bool {
	return reliability.IsRetryableHTTPStatus(e.StatusCode)
}

// ErrorCode labels err for metrics and console error events.
func ErrorCode(err error) string {
	var apiErr *APIError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrMicrophoneUnavailable):
		return "microphone_unavailable"
	case errors.Is(err, ErrNoAPIKey):
		return "missing_api_key"
	case errors.Is(err, ErrEmptyTranscript):
		return "empty_transcript"
	case errors.Is(err, ErrNoAudio):
		return "no_audio"
	case errors.As(err, &apiErr):
		return fmt.Sprintf("http_%d", apiErr.StatusCode)
	default:
		return reliability.Classify(err)
	}
}
