package voice

import (
	"context"
	"strings"

	"github.com/ent0n29/gbird/internal/audio"
)

// MockTranscript is what MockTranscriber hears when nothing else is set.
const MockTranscript = "status"

// MockTranscriber is the offline stand-in used when no STT backend is configured.
type MockTranscriber struct {
	Text string
}

func NewMockTranscriber() *MockTranscriber { return &MockTranscriber{Text: MockTranscript} }

func (m *MockTranscriber) Transcribe(ctx context.Context, data []byte, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", ErrNoAudio
	}
	text := strings.TrimSpace(m.Text)
	if text == "" {
		return "", ErrEmptyTranscript
	}
	return text, nil
}

// MockSynthesizer answers every request with a short WAV beep.
type MockSynthesizer struct{}

func NewMockSynthesizer() *MockSynthesizer { return &MockSynthesizer{} }

func (MockSynthesizer) Synthesize(ctx context.Context, _ string) (Audio, error) {
	if err := ctx.Err(); err != nil {
		return Audio{}, err
	}
	return Audio{Base64: audio.BeepBase64(), MediaType: "audio/wav"}, nil
}
