package session

import (
	"errors"
	"testing"
)

func TestManagerOpenAdvanceEnd(t *testing.T) {
	m := NewManager(0)
	s, err := m.Open("recording")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if s.ID == "" || s.Status != StatusActive {
		t.Fatalf("unexpected session: %+v", s)
	}
	if err := m.Advance(s.ID, "transcribing"); err != nil {
		t.Fatalf("Advance() error = %v", err)
	}
	got, ok := m.Active()
	if !ok || got.Stage != "transcribing" {
		t.Fatalf("Active() = %+v, %v, want stage transcribing", got, ok)
	}

	ended, err := m.End(s.ID, nil)
	if err != nil {
		t.Fatalf("End() error = %v", err)
	}
	if ended.Status != StatusCompleted || ended.EndedAt == nil {
		t.Fatalf("ended = %+v, want completed with EndedAt", ended)
	}
	if m.ActiveCount() != 0 {
		t.Fatalf("ActiveCount() = %d, want 0", m.ActiveCount())
	}
}

func TestManagerAllowsOneActiveSession(t *testing.T) {
	m := NewManager(0)
	if _, err := m.Open("recording"); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if _, err := m.Open("recording"); !errors.Is(err, ErrAlreadyOpen) {
		t.Fatalf("second Open() error = %v, want ErrAlreadyOpen", err)
	}
	if m.ActiveCount() != 1 || m.StartedCount() != 1 {
		t.Fatalf("ActiveCount = %d StartedCount = %d, want 1/1", m.ActiveCount(), m.StartedCount())
	}
}

func TestManagerEndFailedAndHistory(t *testing.T) {
	m := NewManager(2)
	var hooked []*Session
	m.SetEndHook(func(s *Session) { hooked = append(hooked, s) })

	for i := 0; i < 3; i++ {
		s, err := m.Open("recording")
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		var cause error
		if i == 2 {
			cause = errors.New("microphone unavailable")
		}
		if _, err := m.End(s.ID, cause); err != nil {
			t.Fatalf("End() error = %v", err)
		}
	}

	recent := m.Recent(10)
	if len(recent) != 2 {
		t.Fatalf("len(Recent) = %d, want 2", len(recent))
	}
	if recent[0].Status != StatusFailed || recent[0].Error != "microphone unavailable" {
		t.Fatalf("newest = %+v, want failed with error", recent[0])
	}
	if len(hooked) != 3 {
		t.Fatalf("hook calls = %d, want 3", len(hooked))
	}
	if _, err := m.End("missing", nil); !errors.Is(err, ErrNotFound) {
		t.Fatalf("End(missing) error = %v, want ErrNotFound", err)
	}
}
