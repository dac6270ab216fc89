package api

import (
	"testing"
	"time"

	"github.com/soundmesh/resolver_pipeline/resolver"
)

func TestBroadcastDeliversToSubscribers(t *testing.T) {
	b := NewBroadcast()
	ch1, cancel1 := b.Subscribe()
	ch2, cancel2 := b.Subscribe()
	defer cancel1()
	defer cancel2()

	b.Publish(resolver.Event{RequestID: "abc"})

	for i, ch := range []<-chan resolver.Event{ch1, ch2} {
		select {
		case e := <-ch:
			if e.RequestID != "abc" {
				t.Fatalf("subscriber %d got %q, want abc", i, e.RequestID)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d never received the event", i)
		}
	}
}

func TestBroadcastCancelClosesChannel(t *testing.T) {
	b := NewBroadcast()
	ch, cancel := b.Subscribe()
	cancel()

	if _, open := <-ch; open {
		t.Fatal("cancel must close the subscriber channel")
	}

	// Publishing after cancel must not panic or block.
	b.Publish(resolver.Event{RequestID: "abc"})
	cancel() // idempotent
}

func TestBroadcastDropsWhenSubscriberLags(t *testing.T) {
	b := NewBroadcast()
	ch, cancel := b.Subscribe()
	defer cancel()

	// Overfill the buffer; Publish must never block.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < subscriberBuffer*2; i++ {
			b.Publish(resolver.Event{RequestID: "x"})
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a lagging subscriber")
	}

	if got := len(ch); got != subscriberBuffer {
		t.Fatalf("buffered events = %d, want %d", got, subscriberBuffer)
	}
}
