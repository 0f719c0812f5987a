// Package events is the typed change feed between the dispatch core and its
// presentation layers.
package events

import (
	"sync"
	"sync/atomic"
)

// Kind names a change event.
type Kind int

const (
	// SyncChanged means bulk dispatch data was refreshed or removed.
	SyncChanged Kind = iota + 1
	// CallsignChanged means a single resource's status or assignment changed.
	CallsignChanged
	// BookOnChanged means the active booking was created, changed or cleared.
	BookOnChanged
)

func (k Kind) String() string {
	switch k {
	case SyncChanged:
		return "sync"
	case CallsignChanged:
		return "callsign"
	case BookOnChanged:
		return "bookon"
	default:
		return "unknown"
	}
}

// Event is one change notification.
type Event struct {
	Kind     Kind
	Callsign string
}

// Bus fans events out to subscribers. The zero value is ready to use.
type Bus struct {
	mu      sync.RWMutex
	subs    map[*Subscription]struct{}
	dropped atomic.Uint64
}

// Subscription receives events until Close is called.
type Subscription struct {
	bus  *Bus
	ch   chan Event
	once sync.Once
}

const defaultBuffer = 32

// Subscribe registers a new subscriber with the given channel buffer.
func (b *Bus) Subscribe(buffer int) *Subscription {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	sub := &Subscription{bus: b, ch: make(chan Event, buffer)}
	b.mu.Lock()
	if b.subs == nil {
		b.subs = make(map[*Subscription]struct{})
	}
	b.subs[sub] = struct{}{}
	b.mu.Unlock()
	return sub
}

// C returns the receive channel. It is closed by Close.
func (s *Subscription) C() <-chan Event {
	return s.ch
}

// Close unregisters the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.bus.mu.Lock()
		delete(s.bus.subs, s)
		close(s.ch)
		s.bus.mu.Unlock()
	})
}

// Publish delivers evt to every subscriber without blocking. A subscriber
// whose buffer is full misses the event.
func (b *Bus) Publish(evt Event) {
	if b == nil {
		return
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for sub := range b.subs {
		select {
		case sub.ch <- evt:
		default:
			b.dropped.Add(1)
		}
	}
}

// Dropped returns how many deliveries were skipped because a subscriber was full.
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}

// Subscribers returns the number of registered subscriptions.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
