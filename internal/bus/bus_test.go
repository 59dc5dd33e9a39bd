package bus

import (
	"testing"
	"time"
)

func TestPublishSubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("bridge.", 10)
	defer unsub()

	b.Publish(Event{Kind: KindBridgeStatusChanged, Payload: "test"})

	select {
	case evt := <-ch:
		if evt.Kind != KindBridgeStatusChanged {
			t.Errorf("got kind %q, want %q", evt.Kind, KindBridgeStatusChanged)
		}
		if evt.Timestamp.IsZero() {
			t.Error("Publish should stamp events with a timestamp")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestNamespaceFiltering(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("store.changed.", 10)
	defer unsub()

	b.Publish(Event{Kind: KindBridgeStatusChanged})
	b.Publish(Event{Kind: KindStoreChangedTags})

	select {
	case evt := <-ch:
		if evt.Kind != KindStoreChangedTags {
			t.Errorf("got kind %q, want %q", evt.Kind, KindStoreChangedTags)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}

	// Ensure bridge event was not delivered.
	select {
	case evt := <-ch:
		t.Errorf("unexpected event: %v", evt)
	case <-time.After(50 * time.Millisecond):
		// Expected: no more events.
	}
}

func TestUnsubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("campaign.", 10)
	unsub()

	b.Publish(Event{Kind: KindCampaignStarted})

	select {
	case evt := <-ch:
		t.Errorf("received event after unsubscribe: %v", evt)
	case <-time.After(50 * time.Millisecond):
		// Expected.
	}
}

func TestDropOnFullBuffer(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("test.", 1)
	defer unsub()

	// Fill buffer.
	b.Publish(Event{Kind: "test.one"})
	// This should be dropped (non-blocking).
	b.Publish(Event{Kind: "test.two"})

	evt := <-ch
	if evt.Kind != "test.one" {
		t.Errorf("got %q, want test.one", evt.Kind)
	}
}
