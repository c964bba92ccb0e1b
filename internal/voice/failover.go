package voice

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
)

// NewFailoverTranscriber prefers primary and switches to fallback when a
// primary call fails. Once fallback succeeds it stays active until it fails;
// then primary is retried. Canceled calls never trigger a switch.
func NewFailoverTranscriber(primary, fallback Transcriber) Transcriber {
	return &failoverTranscriber{primary: primary, fallback: fallback}
}

type failoverTranscriber struct {
	primary        Transcriber
	fallback       Transcriber
	fallbackActive atomic.Bool
}

func (f *failoverTranscriber) Transcribe(ctx context.Context, audio []byte, mediaType string) (string, error) {
	if f.fallbackActive.Load() {
		text, fbErr := f.fallback.Transcribe(ctx, audio, mediaType)
		if fbErr == nil || !shouldFailover(fbErr) {
			return text, fbErr
		}
		// Fallback failed after being active; try primary again.
		text, prErr := f.primary.Transcribe(ctx, audio, mediaType)
		if prErr == nil {
			f.fallbackActive.Store(false)
			return text, nil
		}
		return "", fmt.Errorf("stt fallback failed: %v; stt primary failed: %w", fbErr, prErr)
	}

	text, prErr := f.primary.Transcribe(ctx, audio, mediaType)
	if prErr == nil || !shouldFailover(prErr) {
		return text, prErr
	}
	text, fbErr := f.fallback.Transcribe(ctx, audio, mediaType)
	if fbErr != nil {
		return "", fmt.Errorf("stt primary failed: %v; stt fallback failed: %w", prErr, fbErr)
	}
	f.fallbackActive.Store(true)
	return text, nil
}

// shouldFailover is false for caller cancellation and for audio the backend
// heard but could not turn into words.
func shouldFailover(err error) bool {
	return !errors.Is(err, context.Canceled) &&
		!errors.Is(err, context.DeadlineExceeded) &&
		!errors.Is(err, ErrEmptyTranscript)
}
