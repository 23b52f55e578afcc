// Package notify provides a simple broadcast mechanism for engine events.
package notify

import (
	"sync"

	"github.com/sqldeck/sqldeck/internal/state"
)

// Event kinds.
const (
	KindSchemaUpdated = "schema_updated"
)

// Event is one engine-side happening pushed to listeners, such as a
// refreshed schema snapshot after a DDL statement.
type Event struct {
	Kind     string         `json:"kind"`
	ServerID string         `json:"serverId"`
	Schemas  []state.Schema `json:"schemas,omitempty"`
}

// Notifier broadcasts events to all subscribed listeners.
type Notifier struct {
	mu        sync.RWMutex
	listeners map[chan Event]struct{}
}

// New creates a new Notifier instance.
func New() *Notifier {
	return &Notifier{
		listeners: make(map[chan Event]struct{}),
	}
}

// Subscribe returns a channel that receives broadcast events.
// The caller must call Unsubscribe when done to prevent goroutine leaks.
func (n *Notifier) Subscribe() chan Event {
	ch := make(chan Event, 8)
	n.mu.Lock()
	n.listeners[ch] = struct{}{}
	n.mu.Unlock()
	return ch
}

// Unsubscribe removes a listener channel and closes it.
func (n *Notifier) Unsubscribe(ch chan Event) {
	n.mu.Lock()
	delete(n.listeners, ch)
	n.mu.Unlock()
	close(ch)
}

// Broadcast sends an event to all listeners.
// Non-blocking: if a listener's channel is full, the event is dropped
// for that listener.
func (n *Notifier) Broadcast(ev Event) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	for ch := range n.listeners {
		select {
		case ch <- ev:
		default:
			// Channel full, skip (slow listener misses this event)
		}
	}
}
