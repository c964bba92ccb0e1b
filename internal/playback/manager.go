// Package playback owns the synthesized-speech playable and the alert tone
// generator. Each slot holds at most one active resource.
package playback

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ent0n29/gbird/internal/audio"
	"github.com/ent0n29/gbird/internal/reply"
)

const (
	AlertFrequencyHz = 880
	AlertDuration    = 350 * time.Millisecond
	AlarmFrequencyHz = 660
	SirenLowHz       = 520
	SirenHighHz      = 880
	SirenInterval    = 450 * time.Millisecond
)

var ErrClosed = errors.New("playback: manager closed")

// Playable is a started speech clip. Done is closed when playback ends or
// the playable is released.
type Playable interface {
	Done() <-chan struct{}
	Release()
}

// Speaker renders speech clips.
type Speaker interface {
	Play(clip audio.Clip) (Playable, error)
}

// Oscillator is one running tone generator.
type Oscillator interface {
	SetFrequency(hz float64)
	Stop()
}

// ToneOutput starts tone generators.
type ToneOutput interface {
	StartTone(hz float64) (Oscillator, error)
}

type Option func(*Manager)

// WithToneTiming overrides the alert length and siren interval.
func WithToneTiming(alert, siren time.Duration) Option {
	return func(m *Manager) {
		if alert > 0 {
			m.alertDuration = alert
		}
		if siren > 0 {
			m.sirenInterval = siren
		}
	}
}

type Manager struct {
	speaker Speaker
	tones   ToneOutput

	alertDuration time.Duration
	sirenInterval time.Duration

	mu     sync.Mutex
	speech Playable
	tone   *activeTone
	closed bool
}

type activeTone struct {
	kind  reply.SFX
	osc   Oscillator
	timer *time.Timer
	quit  chan struct{}
}

func NewManager(speaker Speaker, tones ToneOutput, opts ...Option) *Manager {
	m := &Manager{
		speaker:       speaker,
		tones:         tones,
		alertDuration: AlertDuration,
		sirenInterval: SirenInterval,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// PlaySpeech releases any current playable and starts clip.
func (m *Manager) PlaySpeech(clip audio.Clip) (Playable, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	m.releaseSpeechLocked()
	if m.speaker == nil {
		return nil, fmt.Errorf("playback: no speaker configured")
	}
	p, err := m.speaker.Play(clip)
	if err != nil {
		return nil, fmt.Errorf("start playback: %w", err)
	}
	m.speech = p
	return p, nil
}

// HasSpeech reports whether a speech playable is held.
func (m *Manager) HasSpeech() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.speech != nil
}

func (m *Manager) StopSpeech() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.releaseSpeechLocked()
}

func (m *Manager) releaseSpeechLocked() {
	if m.speech != nil {
		m.speech.Release()
		m.speech = nil
	}
}

// PlayTone starts the tone for kind, stopping any active tone first.
// SFXNone starts nothing and leaves an active tone running.
func (m *Manager) PlayTone(kind reply.SFX) error {
	if kind == reply.SFXNone || kind == "" {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.stopToneLocked()
	if m.tones == nil {
		return fmt.Errorf("playback: no tone output configured")
	}

	var freq float64
	switch kind {
	case reply.SFXAlert:
		freq = AlertFrequencyHz
	case reply.SFXAlarm:
		freq = AlarmFrequencyHz
	case reply.SFXSiren:
		freq = SirenLowHz
	default:
		return fmt.Errorf("playback: unknown tone %q", kind)
	}

	osc, err := m.tones.StartTone(freq)
	if err != nil {
		return fmt.Errorf("start tone: %w", err)
	}
	t := &activeTone{kind: kind, osc: osc, quit: make(chan struct{})}
	m.tone = t

	switch kind {
	case reply.SFXAlert:
		t.timer = time.AfterFunc(m.alertDuration, func() { m.expireTone(t) })
	case reply.SFXSiren:
		go m.runSiren(t)
	}
	return nil
}

// ActiveTone returns the running tone kind, or SFXNone.
func (m *Manager) ActiveTone() reply.SFX {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tone == nil {
		return reply.SFXNone
	}
	return m.tone.kind
}

// ActiveTones is 0 or 1.
func (m *Manager) ActiveTones() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tone == nil {
		return 0
	}
	return 1
}

func (m *Manager) StopTone() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopToneLocked()
}

func (m *Manager) stopToneLocked() {
	t := m.tone
	if t == nil {
		return
	}
	m.tone = nil
	if t.timer != nil {
		t.timer.Stop()
	}
	close(t.quit)
	t.osc.Stop()
}

func (m *Manager) expireTone(t *activeTone) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tone == t {
		m.stopToneLocked()
	}
}

func (m *Manager) runSiren(t *activeTone) {
	ticker := time.NewTicker(m.sirenInterval)
	defer ticker.Stop()
	high := false
	for {
		select {
		case <-t.quit:
			return
		case <-ticker.C:
			m.mu.Lock()
			if m.tone != t {
				m.mu.Unlock()
				return
			}
			high = !high
			if high {
				t.osc.SetFrequency(SirenHighHz)
			} else {
				t.osc.SetFrequency(SirenLowHz)
			}
			m.mu.Unlock()
		}
	}
}

// Stop releases the speech playable and the tone generator. It is safe to
// call when nothing is active.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.releaseSpeechLocked()
	m.stopToneLocked()
}

// Close stops everything and rejects further playback.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.releaseSpeechLocked()
	m.stopToneLocked()
	m.closed = true
	return nil
}
