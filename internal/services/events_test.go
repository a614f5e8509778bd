package services

import (
	"testing"
	"time"
)

func recv(t *testing.T, ch <-chan Event) (Event, bool) {
	t.Helper()
	select {
	case ev, ok := <-ch:
		return ev, ok
	case <-time.After(100 * time.Millisecond):
		return Event{}, false
	}
}

func TestEventHub_SubscribeUnsubscribe(t *testing.T) {
	hub := NewEventHub()
	if hub.ClientCount() != 0 {
		t.Fatalf("new hub should have 0 clients, got %d", hub.ClientCount())
	}

	ch := hub.Subscribe("a", nil)
	hub.Subscribe("b", nil)
	if hub.ClientCount() != 2 {
		t.Fatalf("expected 2 clients, got %d", hub.ClientCount())
	}

	hub.Unsubscribe("a")
	if _, ok := <-ch; ok {
		t.Error("channel should be closed after unsubscribe")
	}
	hub.Unsubscribe("missing")
	if hub.ClientCount() != 1 {
		t.Errorf("expected 1 client, got %d", hub.ClientCount())
	}
}

func TestEventHub_ResubscribeReplacesChannel(t *testing.T) {
	hub := NewEventHub()
	first := hub.Subscribe("a", nil)
	hub.Subscribe("a", nil)

	if _, ok := <-first; ok {
		t.Error("previous channel should be closed on resubscribe")
	}
	if hub.ClientCount() != 1 {
		t.Errorf("expected 1 client, got %d", hub.ClientCount())
	}
}

func TestEventHub_PublishBroadcast(t *testing.T) {
	hub := NewEventHub()
	a := hub.Subscribe("a", nil)
	b := hub.Subscribe("b", nil)

	hub.Publish(Event{Type: EventComplaintCreated, ComplaintID: "c1", Priority: "High"})

	for _, ch := range []<-chan Event{a, b} {
		ev, ok := recv(t, ch)
		if !ok {
			t.Fatal("expected event")
		}
		if ev.Type != EventComplaintCreated || ev.ComplaintID != "c1" {
			t.Errorf("unexpected event %+v", ev)
		}
		if ev.At.IsZero() {
			t.Error("publish should stamp the event time")
		}
	}
}

func TestEventHub_OwnerFilter(t *testing.T) {
	hub := NewEventHub()
	owner, other := uint(7), uint(8)
	mine := hub.Subscribe("mine", &owner)

	hub.Publish(Event{Type: EventComplaintUpdated, ComplaintID: "x", OwnerID: &other})
	hub.Publish(Event{Type: EventComplaintUpdated, ComplaintID: "anon"})
	hub.Publish(Event{Type: EventComplaintUpdated, ComplaintID: "y", OwnerID: &owner})

	ev, ok := recv(t, mine)
	if !ok || ev.ComplaintID != "y" {
		t.Fatalf("expected only the owner's event, got %+v ok=%v", ev, ok)
	}
	if _, ok := recv(t, mine); ok {
		t.Error("no further events expected")
	}
}

func TestEventHub_SlowClientDoesNotBlock(t *testing.T) {
	hub := NewEventHub()
	hub.Subscribe("slow", nil)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 500; i++ {
			hub.Publish(Event{Type: EventMessageCreated})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a full client buffer")
	}
}
