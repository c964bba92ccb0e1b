// Package session tracks recording sessions: one utterance's trip from
// capture to playback.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

var (
	ErrNotFound = errors.New("session not found")
	// ErrAlreadyOpen is returned by Open while another session is active.
	ErrAlreadyOpen = errors.New("recording session already open")
)

const defaultHistory = 20

type Session struct {
	ID             string     `json:"session_id"`
	Status         Status     `json:"status"`
	Stage          string     `json:"stage"`
	Error          string     `json:"error,omitempty"`
	StartedAt      time.Time  `json:"started_at"`
	LastActivityAt time.Time  `json:"last_activity_at"`
	EndedAt        *time.Time `json:"ended_at,omitempty"`
}

// Manager allows at most one active session and remembers recently ended ones.
type Manager struct {
	mu      sync.RWMutex
	active  *Session
	ended   []*Session
	keep    int
	onEnd   func(*Session)
	started int
}

func NewManager(keep int) *Manager {
	if keep <= 0 {
		keep = defaultHistory
	}
	return &Manager{keep: keep}
}

func (m *Manager) SetEndHook(hook func(*Session)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onEnd = hook
}

// Open starts a new session in stage.
func (m *Manager) Open(stage string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active != nil {
		return nil, ErrAlreadyOpen
	}
	now := time.Now().UTC()
	m.active = &Session{
		ID:             uuid.NewString(),
		Status:         StatusActive,
		Stage:          stage,
		StartedAt:      now,
		LastActivityAt: now,
	}
	m.started++
	return clone(m.active), nil
}

// Active returns the open session, if any.
func (m *Manager) Active() (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.active == nil {
		return nil, false
	}
	return clone(m.active), true
}

// Advance records that the session moved to stage.
func (m *Manager) Advance(sessionID, stage string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil || m.active.ID != sessionID {
		return ErrNotFound
	}
	m.active.Stage = stage
	m.active.LastActivityAt = time.Now().UTC()
	return nil
}

// End closes the active session. A non-nil cause marks it failed.
func (m *Manager) End(sessionID string, cause error) (*Session, error) {
	m.mu.Lock()
	if m.active == nil || m.active.ID != sessionID {
		m.mu.Unlock()
		return nil, ErrNotFound
	}
	s := m.active
	m.active = nil

	now := time.Now().UTC()
	s.Status = StatusCompleted
	if cause != nil {
		s.Status = StatusFailed
		s.Error = cause.Error()
	}
	s.LastActivityAt = now
	s.EndedAt = &now

	m.ended = append(m.ended, s)
	if len(m.ended) > m.keep {
		m.ended = append([]*Session(nil), m.ended[len(m.ended)-m.keep:]...)
	}
	hook := m.onEnd
	out := clone(s)
	m.mu.Unlock()

	if hook != nil {
		hook(clone(s))
	}
	return out, nil
}

// Recent returns up to n ended sessions, newest first.
func (m *Manager) Recent(n int) []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if n <= 0 || n > len(m.ended) {
		n = len(m.ended)
	}
	out := make([]*Session, 0, n)
	for i := len(m.ended) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, clone(m.ended[i]))
	}
	return out
}

// ActiveCount is 0 or 1.
func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.active == nil {
		return 0
	}
	return 1
}

// StartedCount is the number of sessions opened since construction.
func (m *Manager) StartedCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.started
}

func clone(s *Session) *Session {
	c := *s
	if s.EndedAt != nil {
		t := *s.EndedAt
		c.EndedAt = &t
	}
	return &c
}
