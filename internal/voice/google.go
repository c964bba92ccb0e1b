package voice

import (
	"context"
	"fmt"
	"mime"
	"strings"

	speech "cloud.google.com/go/speech/apiv1"
	speechpb "cloud.google.com/go/speech/apiv1/speechpb"

	"github.com/ent0n29/gbird/internal/audio"
)

const DefaultGoogleLanguage = "en-US"

type recognizeFunc func(ctx context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error)

// GoogleTranscriber runs synchronous recognition against Cloud Speech-to-Text.
// Credentials come from the ambient Google application default credentials.
type GoogleTranscriber struct {
	recognize recognizeFunc
	close     func() error
	language  string
}

func NewGoogleTranscriber(ctx context.Context, language string) (*GoogleTranscriber, error) {
	c, err := speech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("google stt: %w", err)
	}
	g := newGoogleTranscriber(func(ctx context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error) {
		return c.Recognize(ctx, req)
	}, language)
	g.close = c.Close
	return g, nil
}

func newGoogleTranscriber(fn recognizeFunc, language string) *GoogleTranscriber {
	if strings.TrimSpace(language) == "" {
		language = DefaultGoogleLanguage
	}
	return &GoogleTranscriber{recognize: fn, language: language}
}

func (g *GoogleTranscriber) Close() error {
	if g.close == nil {
		return nil
	}
	return g.close()
}

func (g *GoogleTranscriber) Transcribe(ctx context.Context, data []byte, mediaType string) (string, error) {
	if len(data) == 0 {
		return "", ErrNoAudio
	}
	cfg := recognitionConfig(data, mediaType)
	cfg.LanguageCode = g.language
	cfg.EnableAutomaticPunctuation = true

	resp, err := g.recognize(ctx, &speechpb.RecognizeRequest{
		Config: cfg,
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: data},
		},
	})
	if err != nil {
		return "", fmt.Errorf("google stt: %w", err)
	}

	// Each result covers a consecutive stretch of audio; the first
	// alternative is the most likely one.
	var parts []string
	for _, r := range resp.GetResults() {
		alts := r.GetAlternatives()
		if len(alts) == 0 {
			continue
		}
		if t := strings.TrimSpace(alts[0].GetTranscript()); t != "" {
			parts = append(parts, t)
		}
	}
	text := strings.Join(parts, " ")
	if text == "" {
		return "", ErrEmptyTranscript
	}
	return text, nil
}

func recognitionConfig(data []byte, mediaType string) *speechpb.RecognitionConfig {
	mt, _, err := mime.ParseMediaType(mediaType)
	if err != nil {
		mt = strings.ToLower(strings.TrimSpace(mediaType))
	}
	switch mt {
	case "audio/webm":
		return &speechpb.RecognitionConfig{Encoding: speechpb.RecognitionConfig_WEBM_OPUS, SampleRateHertz: 48000}
	case "audio/ogg":
		return &speechpb.RecognitionConfig{Encoding: speechpb.RecognitionConfig_OGG_OPUS, SampleRateHertz: 48000}
	case "audio/wav", "audio/x-wav", "audio/wave":
		if info, err := audio.ParseWAV(data); err == nil && info.BitsPerSample == 16 {
			return &speechpb.RecognitionConfig{
				Encoding:          speechpb.RecognitionConfig_LINEAR16,
				SampleRateHertz:   int32(info.SampleRate),
				AudioChannelCount: int32(info.Channels),
			}
		}
	}
	// WAV and FLAC headers are self-describing.
	return &speechpb.RecognitionConfig{Encoding: speechpb.RecognitionConfig_ENCODING_UNSPECIFIED}
}
