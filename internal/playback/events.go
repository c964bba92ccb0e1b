package playback

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ent0n29/gbird/internal/audio"
)

type EventType string

const (
	EventSpeechStart   EventType = "speech_start"
	EventSpeechEnd     EventType = "speech_end"
	EventToneStart     EventType = "tone_start"
	EventToneFrequency EventType = "tone_frequency"
	EventToneStop      EventType = "tone_stop"
)

// Event describes a rendering instruction for a remote console.
type Event struct {
	Type        EventType `json:"type"`
	ClipID      string    `json:"clip_id,omitempty"`
	MediaType   string    `json:"media_type,omitempty"`
	AudioBase64 string    `json:"audio_base64,omitempty"`
	ToneID      string    `json:"tone_id,omitempty"`
	FrequencyHz float64   `json:"frequency_hz,omitempty"`
	Released    bool      `json:"released,omitempty"`
}

// EventOutput renders speech and tones by emitting Events, leaving actual
// audio output to whoever consumes them. Speech completes after the clip's
// duration.
type EventOutput struct {
	emit func(Event)
}

func NewEventOutput(emit func(Event)) *EventOutput {
	if emit == nil {
		emit = func(Event) {}
	}
	return &EventOutput{emit: emit}
}

func (o *EventOutput) Play(clip audio.Clip) (Playable, error) {
	p := &timedPlayable{clipID: clip.ID, emit: o.emit, done: make(chan struct{})}
	o.emit(Event{
		Type:        EventSpeechStart,
		ClipID:      clip.ID,
		MediaType:   clip.MediaType,
		AudioBase64: clip.Base64(),
	})
	p.mu.Lock()
	p.timer = time.AfterFunc(clip.Duration, func() { p.finish(false) })
	p.mu.Unlock()
	return p, nil
}

func (o *EventOutput) StartTone(hz float64) (Oscillator, error) {
	osc := &eventOscillator{id: uuid.NewString(), emit: o.emit}
	o.emit(Event{Type: EventToneStart, ToneID: osc.id, FrequencyHz: hz})
	return osc, nil
}

type timedPlayable struct {
	clipID string
	emit   func(Event)
	once   sync.Once
	done   chan struct{}

	mu    sync.Mutex
	timer *time.Timer
}

func (p *timedPlayable) Done() <-chan struct{} { return p.done }

func (p *timedPlayable) Release() { p.finish(true) }

func (p *timedPlayable) finish(released bool) {
	p.once.Do(func() {
		p.mu.Lock()
		if p.timer != nil {
			p.timer.Stop()
		}
		p.mu.Unlock()
		p.emit(Event{Type: EventSpeechEnd, ClipID: p.clipID, Released: released})
		close(p.done)
	})
}

type eventOscillator struct {
	id   string
	emit func(Event)
	once sync.Once
}

func (o *eventOscillator) SetFrequency(hz float64) {
	o.emit(Event{Type: EventToneFrequency, ToneID: o.id, FrequencyHz: hz})
}

func (o *eventOscillator) Stop() {
	o.once.Do(func() { o.emit(Event{Type: EventToneStop, ToneID: o.id}) })
}
