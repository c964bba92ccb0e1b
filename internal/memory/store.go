package memory

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Capacity is the number of turns retained on the device.
const Capacity = 50

const (
	snapshotLoadTimeout = 5 * time.Second
	snapshotSaveTimeout = 2 * time.Second
)

// Store is the bounded, chronological conversation log. Every append is
// followed by a best-effort rewrite of the persisted snapshot.
type Store struct {
	mu       sync.RWMutex
	turns    []Turn
	capacity int

	snapshots Snapshotter
	log       logrus.FieldLogger
	onPersist func(error)

	writeMu sync.Mutex
	pending sync.WaitGroup
}

type StoreOption func(*Store)

func WithLogger(l logrus.FieldLogger) StoreOption {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

// WithCapacity overrides Capacity. Non-positive values are ignored.
func WithCapacity(n int) StoreOption {
	return func(s *Store) {
		if n > 0 {
			s.capacity = n
		}
	}
}

// WithPersistHook is called after each snapshot write with its result.
func WithPersistHook(fn func(error)) StoreOption {
	return func(s *Store) { s.onPersist = fn }
}

func NewStore(snapshots Snapshotter, opts ...StoreOption) *Store {
	s := &Store{
		capacity:  Capacity,
		snapshots: snapshots,
		log:       logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load replaces the in-memory log with the persisted snapshot. A missing,
// unreadable, or corrupt snapshot leaves the store empty.
func (s *Store) Load(ctx context.Context) int {
	turns := s.readSnapshot(ctx)
	if len(turns) > s.capacity {
		turns = turns[len(turns)-s.capacity:]
	}

	s.mu.Lock()
	s.turns = turns
	s.mu.Unlock()
	return len(turns)
}

func (s *Store) readSnapshot(ctx context.Context) []Turn {
	if s.snapshots == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, snapshotLoadTimeout)
	defer cancel()

	data, err := s.snapshots.Load(ctx)
	if err != nil {
		s.log.WithError(err).Warn("memory snapshot unreadable, starting empty")
		return nil
	}
	if len(data) == 0 {
		return nil
	}

	var turns []Turn
	if err := json.Unmarshal(data, &turns); err != nil {
		s.log.WithError(err).Warn("memory snapshot corrupt, starting empty")
		return nil
	}
	for _, t := range turns {
		if !t.valid() {
			s.log.WithField("turn_id", t.ID).Warn("memory snapshot holds an invalid turn, starting empty")
			return nil
		}
	}
	return turns
}

// Append adds turn at the end, evicts the oldest turns beyond capacity, and
// schedules a snapshot write.
func (s *Store) Append(turn Turn) {
	s.mu.Lock()
	s.turns = append(s.turns, turn)
	if len(s.turns) > s.capacity {
		// Copy so the evicted prefix can be collected.
		kept := make([]Turn, s.capacity)
		copy(kept, s.turns[len(s.turns)-s.capacity:])
		s.turns = kept
	}
	s.mu.Unlock()

	s.persist()
}

// persist writes whatever the log holds when the write actually happens, so
// the last write to land always reflects the latest truncated contents.
func (s *Store) persist() {
	if s.snapshots == nil {
		return
	}
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		s.writeMu.Lock()
		defer s.writeMu.Unlock()

		data, err := json.Marshal(s.Turns())
		if err == nil {
			ctx, cancel := context.WithTimeout(context.Background(), snapshotSaveTimeout)
			err = s.snapshots.Save(ctx, data)
			cancel()
		}
		if err != nil {
			s.log.WithError(err).Warn("memory snapshot write failed")
		}
		if s.onPersist != nil {
			s.onPersist(err)
		}
	}()
}

// Turns returns a copy of the whole log, oldest first.
func (s *Store) Turns() []Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

// Recent returns up to n of the newest turns in chronological order.
func (s *Store) Recent(n int) []Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n <= 0 || n > len(s.turns) {
		n = len(s.turns)
	}
	out := make([]Turn, n)
	copy(out, s.turns[len(s.turns)-n:])
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.turns)
}

// Flush blocks until scheduled snapshot writes have finished.
func (s *Store) Flush() {
	s.pending.Wait()
}

func (s *Store) Close() error {
	s.Flush()
	if s.snapshots == nil {
		return nil
	}
	return s.snapshots.Close()
}
