package graph

import (
	"sync"
	"time"

	"github.com/arborix/synapse/pkg/engram"
)

// UpdateType classifies a ChangeEvent, matching the change-event contract
// external collaborators subscribe to.
type UpdateType int

const (
	Created UpdateType = iota
	Accessed
	Updated
	EdgeAdded
	EdgeRemoved
	Removed
)

// ChangeEvent is the opaque-to-transports notification emitted for every
// mutating operation that a watcher has subscribed to.
type ChangeEvent struct {
	Type               UpdateType
	ConceptID          engram.ID
	UpdatedConcept      *Concept
	UpdatedAssociation *Edge
	Timestamp          time.Time
}

// subscriberBufferSize bounds each subscriber's channel. A slow consumer
// never blocks a writer: once its buffer is full, the oldest buffered
// event for that subscriber is dropped to make room for the newest one,
// the same "bounded, approximate, never block the producer" posture the
// persistence cache applies to evictions.
const subscriberBufferSize = 64

// bus is a per-concept fan-out of ChangeEvents to any number of watchers.
// Producers (Store's mutating methods) never block: Publish always
// returns immediately, dropping the oldest event for a subscriber whose
// buffer is full.
type bus struct {
	mu   sync.Mutex
	subs map[engram.ID][]*subscription
}

type subscription struct {
	ch     chan ChangeEvent
	closed bool
}

func newBus() *bus {
	return &bus{subs: make(map[engram.ID][]*subscription)}
}

// Watch registers a new subscriber for id's events. The returned cancel
// function unregisters it and closes its channel; it is safe to call more
// than once.
func (b *bus) Watch(id engram.ID) (<-chan ChangeEvent, func()) {
	sub := &subscription{ch: make(chan ChangeEvent, subscriberBufferSize)}

	b.mu.Lock()
	b.subs[id] = append(b.subs[id], sub)
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		list := b.subs[id]
		for i, s := range list {
			if s == sub {
				b.subs[id] = append(list[:i], list[i+1:]...)
				break
			}
		}
		if !sub.closed {
			sub.closed = true
			close(sub.ch)
		}
		if len(b.subs[id]) == 0 {
			delete(b.subs, id)
		}
	}
	return sub.ch, cancel
}

// Publish delivers ev to every subscriber watching ev.ConceptID, dropping
// the oldest queued event for a subscriber whose buffer is already full
// rather than blocking the caller. The send happens under the same lock
// cancel() takes to close a subscriber's channel, so a subscriber already
// marked closed is always skipped instead of raced: Publish and a
// concurrent cancel can never interleave a close with a send on the same
// channel.
func (b *bus) Publish(ev ChangeEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, sub := range b.subs[ev.ConceptID] {
		if sub.closed {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			// Buffer full: drop the oldest queued event, then retry once.
			select {
			case <-sub.ch:
			default:
			}
			select {
			case sub.ch <- ev:
			default:
			}
		}
	}
}
