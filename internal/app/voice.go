package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/ent0n29/gbird/internal/config"
	"github.com/ent0n29/gbird/internal/voice"
)

type transcriberSetup struct {
	transcriber voice.Transcriber
	provider    string
	detail      string
	cleanup     func() error
}

type synthesizerSetup struct {
	synthesizer voice.Synthesizer
	provider    string
	detail      string
}

func resolveTranscriber(ctx context.Context, cfg config.Config, log logrus.FieldLogger) (transcriberSetup, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.STTProvider))
	if mode == "" {
		mode = "auto"
	}

	tryGroq := func() (transcriberSetup, bool) {
		if strings.TrimSpace(cfg.GroqAPIKey) == "" {
			return transcriberSetup{}, false
		}
		t := voice.NewGroqTranscriber(cfg.GroqBaseURL, cfg.GroqAPIKey, cfg.GroqSTTModel, cfg.ServiceHTTPTimeout)
		return transcriberSetup{transcriber: t, provider: "groq", detail: "groq " + cfg.GroqSTTModel}, true
	}

	tryGoogle := func(fatal bool) (transcriberSetup, bool, error) {
		g, err := voice.NewGoogleTranscriber(ctx, cfg.GoogleSTTLanguage)
		if err != nil {
			if fatal {
				return transcriberSetup{}, false, fmt.Errorf("google stt init failed: %w", err)
			}
			log.WithError(err).Warn("google stt unavailable")
			return transcriberSetup{}, false, nil
		}
		return transcriberSetup{
			transcriber: g,
			provider:    "google",
			detail:      "google speech " + cfg.GoogleSTTLanguage,
			cleanup:     g.Close,
		}, true, nil
	}

	mock := transcriberSetup{transcriber: voice.NewMockTranscriber(), provider: "mock", detail: "mock"}

	switch mode {
	case "groq":
		s, ok := tryGroq()
		if !ok {
			return transcriberSetup{}, fmt.Errorf("STT_PROVIDER=groq but GROQ_API_KEY is not set")
		}
		return s, nil
	case "google":
		s, _, err := tryGoogle(true)
		return s, err
	case "mock":
		return mock, nil
	case "auto":
		groq, hasGroq := tryGroq()
		var google transcriberSetup
		var hasGoogle bool
		if strings.TrimSpace(cfg.GoogleCredentials) != "" {
			var err error
			google, hasGoogle, err = tryGoogle(false)
			if err != nil {
				return transcriberSetup{}, err
			}
		}
		switch {
		case hasGroq && hasGoogle:
			return transcriberSetup{
				transcriber: voice.NewFailoverTranscriber(groq.transcriber, google.transcriber),
				provider:    "groq+google",
				detail:      groq.detail + " (fallback " + google.detail + ")",
				cleanup:     google.cleanup,
			}, nil
		case hasGroq:
			return groq, nil
		case hasGoogle:
			return google, nil
		}
		mock.detail = "mock (no groq key and google credentials unavailable)"
		return mock, nil
	default:
		return transcriberSetup{}, fmt.Errorf("invalid STT_PROVIDER: %q (expected auto|groq|google|mock)", cfg.STTProvider)
	}
}

func resolveSynthesizer(cfg config.Config, eleven *voice.ElevenLabsClient) (synthesizerSetup, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.TTSProvider))
	if mode == "" {
		mode = "auto"
	}
	elevenSetup := synthesizerSetup{synthesizer: eleven, provider: "elevenlabs", detail: "elevenlabs " + cfg.ElevenLabsTTSModel}
	mock := synthesizerSetup{synthesizer: voice.NewMockSynthesizer(), provider: "mock", detail: "mock beep"}

	switch mode {
	case "elevenlabs":
		if !eleven.Configured() {
			return synthesizerSetup{}, fmt.Errorf("TTS_PROVIDER=elevenlabs but ELEVENLABS_API_KEY is not set")
		}
		return elevenSetup, nil
	case "mock":
		return mock, nil
	case "auto":
		if eleven.Configured() {
			return elevenSetup, nil
		}
		mock.detail = "mock beep (no elevenlabs key)"
		return mock, nil
	default:
		return synthesizerSetup{}, fmt.Errorf("invalid TTS_PROVIDER: %q (expected auto|elevenlabs|mock)", cfg.TTSProvider)
	}
}
