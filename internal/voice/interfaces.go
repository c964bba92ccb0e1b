package voice

import "context"

// Audio is synthesized speech as returned to the console.
type Audio struct {
	Base64    string `json:"audio_base64"`
	MediaType string `json:"media_type"`
}

// Transcriber turns one captured utterance into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, mediaType string) (string, error)
}

// Synthesizer renders reply text as speech.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (Audio, error)
}

// Recording is the joined payload of one capture.
type Recording struct {
	Data      []byte
	MediaType string
}

// Microphone hands out captures. Open fails with ErrMicrophoneUnavailable
// when no input device can be acquired.
type Microphone interface {
	Open(ctx context.Context) (Capture, error)
}

// Capture buffers audio until Stop.
type Capture interface {
	Stop() (Recording, error)
}
