package memory

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"
)

func TestPostgresSnapshotRoundTrip(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	key := fmt.Sprintf("gbird-test-%d", time.Now().UnixNano())
	s, err := NewPostgresSnapshot(ctx, dsn, key)
	if err != nil {
		t.Fatalf("NewPostgresSnapshot() error = %v", err)
	}
	t.Cleanup(func() {
		_, _ = s.pool.Exec(context.Background(), `DELETE FROM memory_snapshots WHERE snapshot_key=$1`, key)
		_ = s.Close()
	})

	data, err := s.Load(ctx)
	if err != nil || data != nil {
		t.Fatalf("Load() on empty = (%q, %v), want (nil, nil)", data, err)
	}

	store := NewStore(s, WithLogger(quietLogger()))
	store.Append(NewTurn(SpeakerUser, ChannelVoice, "status"))
	store.Append(NewTurn(SpeakerAgent, ChannelVoice, "Nominal ops."))
	store.Flush()

	reloaded := NewStore(s, WithLogger(quietLogger()))
	if n := reloaded.Load(ctx); n != 2 {
		t.Fatalf("Load() = %d, want 2", n)
	}
	got := reloaded.Turns()
	if len(got) != 2 || got[0].Text != "status" || got[1].Text != "Nominal ops." {
		t.Fatalf("reloaded turns = %+v, want status then reply", got)
	}
}
