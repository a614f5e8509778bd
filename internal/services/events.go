package services

import (
	"sync"
	"time"
)

const (
	EventComplaintCreated = "complaint.created"
	EventComplaintUpdated = "complaint.updated"
	EventMessageCreated   = "message.created"
)

// Event is a live update pushed to dashboard clients.
type Event struct {
	Type        string    `json:"type"`
	ComplaintID string    `json:"complaint_id"`
	Status      string    `json:"status,omitempty"`
	Priority    string    `json:"priority,omitempty"`
	SenderRole  string    `json:"sender_role,omitempty"`
	OwnerID     *uint     `json:"-"`
	At          time.Time `json:"at"`
}

type subscriber struct {
	ch      chan Event
	ownerID *uint // nil receives every event
}

// EventHub fans events out to subscribed clients. Slow clients drop events
// instead of blocking publishers.
type EventHub struct {
	clients map[string]*subscriber
	mu      sync.RWMutex
}

func NewEventHub() *EventHub {
	return &EventHub{
		clients: make(map[string]*subscriber),
	}
}

// Subscribe registers a client. A non-nil ownerID restricts delivery to
// events about that user's complaints.
func (h *EventHub) Subscribe(clientID string, ownerID *uint) <-chan Event {
	h.mu.Lock()
	defer h.mu.Unlock()

	if old, ok := h.clients[clientID]; ok {
		close(old.ch)
	}
	sub := &subscriber{ch: make(chan Event, 100), ownerID: ownerID}
	h.clients[clientID] = sub
	return sub.ch
}

func (h *EventHub) Unsubscribe(clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if sub, ok := h.clients[clientID]; ok {
		close(sub.ch)
		delete(h.clients, clientID)
	}
}

func (h *EventHub) Publish(event Event) {
	if event.At.IsZero() {
		event.At = time.Now()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, sub := range h.clients {
		if sub.ownerID != nil && (event.OwnerID == nil || *event.OwnerID != *sub.ownerID) {
			continue
		}
		select {
		case sub.ch <- event:
		default:
		}
	}
}

func (h *EventHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
