package memory

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// DefaultSnapshotKey names the single persisted conversation snapshot.
const DefaultSnapshotKey = "gbird-memory"

// Snapshotter persists one opaque snapshot blob. Load returns nil data when
// nothing has been saved yet.
type Snapshotter interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, data []byte) error
	Close() error
}

// FileSnapshot keeps the snapshot in a local JSON file.
type FileSnapshot struct {
	Path string
}

func NewFileSnapshot(path string) *FileSnapshot {
	return &FileSnapshot{Path: path}
}

func (f *FileSnapshot) Load(_ context.Context) ([]byte, error) {
	if f.Path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(f.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return data, nil
}

// Save writes through a temp file so a crash never leaves a torn snapshot.
func (f *FileSnapshot) Save(_ context.Context, data []byte) error {
	if f.Path == "" {
		return nil
	}
	dir := filepath.Dir(f.Path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create snapshot directory: %w", err)
		}
	}
	tmp := f.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := os.Rename(tmp, f.Path); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}

func (f *FileSnapshot) Close() error { return nil }

// InMemorySnapshot is a process-local snapshot for tests and ephemeral runs.
type InMemorySnapshot struct {
	mu     sync.RWMutex
	data   []byte
	saves  int
	closed bool
}

func NewInMemorySnapshot() *InMemorySnapshot {
	return &InMemorySnapshot{}
}

func (m *InMemorySnapshot) Load(_ context.Context) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.data == nil {
		return nil, nil
	}
	out := make([]byte, len(m.data))
	copy(out, m.data)
	return out, nil
}

func (m *InMemorySnapshot) Save(_ context.Context, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = append(m.data[:0:0], data...)
	m.saves++
	return nil
}

// Saves reports how many writes have landed.
func (m *InMemorySnapshot) Saves() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.saves
}

func (m *InMemorySnapshot) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

var (
	_ Snapshotter = (*FileSnapshot)(nil)
	_ Snapshotter = (*InMemorySnapshot)(nil)
)
