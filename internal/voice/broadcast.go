package voice

import (
	"sync"

	"github.com/ent0n29/gbird/internal/observability"
	"github.com/ent0n29/gbird/internal/protocol"
)

const defaultSubscriberBuffer = 64

// Broadcaster fans outbound console messages to every connected console.
// Slow subscribers lose messages instead of stalling the publisher.
type Broadcaster struct {
	mu      sync.Mutex
	subs    map[int]chan any
	next    int
	metrics *observability.Metrics
}

func NewBroadcaster(metrics *observability.Metrics) *Broadcaster {
	return &Broadcaster{subs: make(map[int]chan any), metrics: metrics}
}

// Subscribe returns a message channel and a cancel func that closes it.
func (b *Broadcaster) Subscribe(buffer int) (<-chan any, func()) {
	if buffer <= 0 {
		buffer = defaultSubscriberBuffer
	}
	ch := make(chan any, buffer)
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
}

func (b *Broadcaster) Publish(msg any) {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- msg:
		default:
			b.dropped(msg)
		}
	}
}

func (b *Broadcaster) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

func (b *Broadcaster) dropped(msg any) {
	if b.metrics == nil {
		return
	}
	b.metrics.WSMessages.WithLabelValues("dropped", string(protocol.TypeOf(msg))).Inc()
}
