// Package statusbus fans queue status changes out to in-process subscribers.
package statusbus

import (
	"sync"
	"time"

	"romimport/internal/queue"
)

// DefaultBuffer is the channel capacity used when Subscribe gets a
// non-positive buffer.
const DefaultBuffer = 64

// Change is one recorded status transition of a queue item.
type Change struct {
	ItemID  int64
	URL     string
	From    queue.Status
	To      queue.Status
	Message string
	At      time.Time
}

// Subscription receives changes on C until Close is called or the bus is
// closed.
type Subscription struct {
	C <-chan Change

	ch   chan Change
	bus  *Bus
	once sync.Once
}

// Close detaches the subscription and closes C.
func (s *Subscription) Close() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		s.bus.remove(s)
		close(s.ch)
	})
}

// Bus is a non-blocking publisher. A subscriber whose buffer is full misses
// the change; OnDrop, if set, is told about it. Publish never waits on a
// slow reader, so the worker is never stalled by a UI.
type Bus struct {
	// OnDrop is called with the change a full subscriber could not take.
	OnDrop func(Change)

	mu     sync.RWMutex
	subs   map[*Subscription]struct{}
	closed bool
}

// New returns an empty bus.
func New() *Bus {
	return &Bus{subs: make(map[*Subscription]struct{})}
}

// Subscribe registers a new subscriber with the given channel capacity.
func (b *Bus) Subscribe(buffer int) *Subscription {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	ch := make(chan Change, buffer)
	sub := &Subscription{C: ch, ch: ch, bus: b}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		sub.once.Do(func() { close(ch) })
		return sub
	}
	b.subs[sub] = struct{}{}
	return sub
}

// Publish delivers change to every subscriber that has room.
func (b *Bus) Publish(change Change) {
	if change.At.IsZero() {
		change.At = time.Now().UTC()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for sub := range b.subs {
		select {
		case sub.ch <- change:
		default:
			if b.OnDrop != nil {
				b.OnDrop(change)
			}
		}
	}
}

// Subscribers returns the number of attached subscriptions.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close detaches and closes every subscription. Later publishes are dropped.
func (b *Bus) Close() {
	b.mu.Lock()
	subs := make([]*Subscription, 0, len(b.subs))
	for sub := range b.subs {
		subs = append(subs, sub)
	}
	b.closed = true
	b.mu.Unlock()

	for _, sub := range subs {
		sub.Close()
	}
}

func (b *Bus) remove(sub *Subscription) {
	b.mu.Lock()
	delete(b.subs, sub)
	b.mu.Unlock()
}
