package voice

import (
	"bytes"
	"context"
	"sync"
)

const defaultCaptureMediaType = "audio/webm"

// BufferMicrophone is fed by a remote client: the console reports whether it
// holds an input device and streams encoded chunks while a capture is open.
type BufferMicrophone struct {
	mu        sync.Mutex
	available bool
	mediaType string
	current   *bufferCapture

	// armed holds chunks that arrive between a start request and the
	// capture actually opening.
	armed   bool
	pending [][]byte
}

func NewBufferMicrophone() *BufferMicrophone {
	return &BufferMicrophone{mediaType: defaultCaptureMediaType}
}

// SetAvailable records whether the client was granted microphone access and
// the container format its chunks will use.
func (m *BufferMicrophone) SetAvailable(ok bool, mediaType string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.available = ok
	if mediaType != "" {
		m.mediaType = mediaType
	}
}

func (m *BufferMicrophone) Open(ctx context.Context) (Capture, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.available {
		return nil, ErrMicrophoneUnavailable
	}
	c := &bufferCapture{owner: m, mediaType: m.mediaType, chunks: m.pending}
	m.current = c
	m.armed = false
	m.pending = nil
	return c, nil
}

// Arm starts holding chunks for the next capture. Call it before asking the
// controller to start so the head of the utterance survives the handoff.
func (m *BufferMicrophone) Arm() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.armed = m.available
	m.pending = nil
}

// Write appends one chunk to the open capture. Chunks arriving with no
// capture open are dropped unless the microphone is armed.
func (m *BufferMicrophone) Write(chunk []byte) bool {
	if len(chunk) == 0 {
		return false
	}
	m.mu.Lock()
	c := m.current
	if c == nil {
		armed := m.armed
		if armed {
			m.pending = append(m.pending, append([]byte(nil), chunk...))
		}
		m.mu.Unlock()
		return armed
	}
	m.mu.Unlock()
	return c.write(chunk)
}

type bufferCapture struct {
	owner     *BufferMicrophone
	mediaType string

	mu      sync.Mutex
	chunks  [][]byte
	stopped bool
}

func (c *bufferCapture) write(chunk []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return false
	}
	c.chunks = append(c.chunks, append([]byte(nil), chunk...))
	return true
}

func (c *bufferCapture) Stop() (Recording, error) {
	c.mu.Lock()
	c.stopped = true
	data := bytes.Join(c.chunks, nil)
	c.chunks = nil
	c.mu.Unlock()

	c.owner.mu.Lock()
	if c.owner.current == c {
		c.owner.current = nil
	}
	c.owner.armed = false
	c.owner.pending = nil
	c.owner.mu.Unlock()

	if len(data) == 0 {
		return Recording{}, ErrNoAudio
	}
	return Recording{Data: data, MediaType: c.mediaType}, nil
}

// StaticMicrophone replays a fixed recording on every capture. The CLI uses
// it to push an audio file through the pipeline.
type StaticMicrophone struct {
	Recording Recording
	Err       error
}

func (m *StaticMicrophone) Open(ctx context.Context) (Capture, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.Err != nil {
		return nil, m.Err
	}
	return staticCapture{rec: m.Recording}, nil
}

type staticCapture struct {
	rec Recording
}

func (c staticCapture) Stop() (Recording, error) {
	if len(c.rec.Data) == 0 {
		return Recording{}, ErrNoAudio
	}
	return c.rec, nil
}
