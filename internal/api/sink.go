package api

import (
	"sync"

	"github.com/soundmesh/resolver_pipeline/resolver"
)

const subscriberBuffer = 16

// Broadcast fans results-reported events out to in-process subscribers.
// Publish never blocks; a subscriber that falls behind loses events.
type Broadcast struct {
	mu   sync.Mutex
	subs map[int]chan resolver.Event
	next int
}

// NewBroadcast returns an empty broadcast sink.
func NewBroadcast() *Broadcast {
	return &Broadcast{subs: make(map[int]chan resolver.Event)}
}

// Publish delivers the event to every subscriber.
func (b *Broadcast) Publish(e resolver.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// Subscribe registers a new subscriber. The returned cancel function
// removes it and closes the channel.
func (b *Broadcast) Subscribe() (<-chan resolver.Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.next
	b.next++
	ch := make(chan resolver.Event, subscriberBuffer)
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}
