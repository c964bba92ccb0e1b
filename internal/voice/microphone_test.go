package voice

import (
	"context"
	"errors"
	"testing"
)

func TestBufferMicrophoneUnavailableUntilGranted(t *testing.T) {
	mic := NewBufferMicrophone()
	if _, err := mic.Open(context.Background()); !errors.Is(err, ErrMicrophoneUnavailable) {
		t.Fatalf("Open() error = %v, want ErrMicrophoneUnavailable", err)
	}
	if mic.Write([]byte("x")) {
		t.Fatalf("Write() without capture = true, want false")
	}
}

func TestBufferMicrophoneJoinsChunks(t *testing.T) {
	mic := NewBufferMicrophone()
	mic.SetAvailable(true, "audio/ogg")

	c, err := mic.Open(context.Background())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	for _, chunk := range []string{"ab", "", "cd", "ef"} {
		mic.Write([]byte(chunk))
	}
	rec, err := c.Stop()
	if err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if string(rec.Data) != "abcdef" || rec.MediaType != "audio/ogg" {
		t.Fatalf("Stop() = (%q, %q), want (abcdef, audio/ogg)", rec.Data, rec.MediaType)
	}
	if mic.Write([]byte("late")) {
		t.Fatalf("Write() after Stop = true, want false")
	}
}

func TestBufferMicrophoneArmedKeepsEarlyChunks(t *testing.T) {
	mic := NewBufferMicrophone()
	mic.Arm()
	if mic.Write([]byte("lost")) {
		t.Fatalf("Write() armed without permission = true, want false")
	}

	mic.SetAvailable(true, "audio/wav")
	mic.Arm()
	if !mic.Write([]byte("RIFF")) {
		t.Fatalf("Write() while armed = false, want true")
	}
	c, err := mic.Open(context.Background())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	mic.Write([]byte("data"))
	rec, err := c.Stop()
	if err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if string(rec.Data) != "RIFFdata" {
		t.Fatalf("Stop() data = %q, want RIFFdata", rec.Data)
	}
	if mic.Write([]byte("late")) {
		t.Fatalf("Write() after Stop = true, want false")
	}
}

func TestBufferMicrophoneEmptyCapture(t *testing.T) {
	mic := NewBufferMicrophone()
	mic.SetAvailable(true, "")
	c, _ := mic.Open(context.Background())
	if _, err := c.Stop(); !errors.Is(err, ErrNoAudio) {
		t.Fatalf("Stop() error = %v, want ErrNoAudio", err)
	}
}

func TestBroadcasterDropsForSlowSubscribers(t *testing.T) {
	b := NewBroadcaster(nil)
	fast, cancelFast := b.Subscribe(4)
	slow, cancelSlow := b.Subscribe(1)

	for i := 0; i < 3; i++ {
		b.Publish(i)
	}
	if len(fast) != 3 {
		t.Fatalf("fast subscriber buffered %d, want 3", len(fast))
	}
	if len(slow) != 1 {
		t.Fatalf("slow subscriber buffered %d, want 1", len(slow))
	}

	cancelSlow()
	cancelSlow()
	if b.Subscribers() != 1 {
		t.Fatalf("Subscribers() = %d, want 1", b.Subscribers())
	}
	cancelFast()
	if _, ok := <-slow; !ok {
		t.Fatalf("buffered message lost after cancel")
	}
}
