package events

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// DefaultBufferSize is the per-subscriber channel capacity used when a Bus
// is constructed with a non-positive size.
const DefaultBufferSize = 256

// Bus is a multi-producer, multi-consumer broadcaster. Each subscriber
// gets its own bounded channel; a subscriber that falls behind loses its
// oldest unread event rather than blocking the publisher — event delivery
// is advisory, never a correctness hazard (§5).
type Bus struct {
	bufferSize int
	sequence   atomic.Uint64

	mu          sync.Mutex
	subscribers map[int]chan Event
	nextID      int
}

// NewBus constructs a Bus whose subscriber channels hold up to bufferSize
// events.
func NewBus(bufferSize int) *Bus {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Bus{bufferSize: bufferSize, subscribers: make(map[int]chan Event)}
}

// Subscribe registers a new subscriber and returns its event channel and
// an unsubscribe function. The channel is closed by Unsubscribe, never by
// the Bus spontaneously.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	ch := make(chan Event, b.bufferSize)
	b.subscribers[id] = ch
	return ch, func() { b.unsubscribe(id) }
}

func (b *Bus) unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.subscribers[id]; ok {
		delete(b.subscribers, id)
		close(ch)
	}
}

// Publish stamps e with a fresh id and timestamp (if unset) and always with
// the next sequence number, then fans it out to every current subscriber,
// never blocking on a slow one.
func (b *Bus) Publish(e Event) Event {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	e.Sequence = b.sequence.Add(1)

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subscribers {
		select {
		case ch <- e:
		default:
			// drop the oldest queued event for this subscriber, then
			// retry the send once; if it's still full (a concurrent
			// publisher raced us) the event is simply dropped.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- e:
			default:
			}
		}
	}
	return e
}

// SubscriberCount reports how many subscribers are currently registered —
// used by /status to report liveness, never for correctness decisions.
func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers)
}
