// Package broadcast fans committed event changes out to stream subscribers.
package broadcast

import (
	"context"
	"sync"
)

// Message tells subscribers which parts of an event changed.
type Message struct {
	EventID uint64   `json:"eventId"`
	Topics  []string `json:"topics"`
}

// subscriberBuffer bounds how far a slow client may lag before messages
// are dropped for it.
const subscriberBuffer = 16

// Hub delivers messages to subscribers in this process.
type Hub struct {
	mu   sync.RWMutex
	subs map[uint64]map[chan Message]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[uint64]map[chan Message]struct{})}
}

// Broadcast delivers the change to local subscribers of eventID.
func (h *Hub) Broadcast(_ context.Context, eventID uint64, topics []string) error {
	h.deliver(Message{EventID: eventID, Topics: topics})
	return nil
}

// Subscribe registers for changes of eventID.  The returned cancel func
// must be called once the subscriber is done; it closes the channel.
func (h *Hub) Subscribe(eventID uint64) (<-chan Message, func()) {
	ch := make(chan Message, subscriberBuffer)
	h.mu.Lock()
	if h.subs[eventID] == nil {
		h.subs[eventID] = make(map[chan Message]struct{})
	}
	h.subs[eventID][ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs[eventID], ch)
			if len(h.subs[eventID]) == 0 {
				delete(h.subs, eventID)
			}
			h.mu.Unlock()
			close(ch)
		})
	}
}

// Subscribers returns the number of local subscribers of eventID.
func (h *Hub) Subscribers(eventID uint64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[eventID])
}

func (h *Hub) deliver(msg Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs[msg.EventID] {
		select {
		case ch <- msg:
		default:
			// client is behind; it will catch up on the next change or poll
		}
	}
}
