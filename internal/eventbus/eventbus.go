// Package eventbus is a small non-blocking fan-out bus carrying domain
// events from the orchestrator to observers (gate notifier, metrics).
package eventbus

import (
	"sync"
	"time"

	"github.com/parkade/parkade/core/model"
)

// VehicleAdmitted is published after a successful entry.
type VehicleAdmitted struct {
	Ticket model.Ticket
	Class  model.VehicleClass
}

// VehicleReleased is published after a successful exit.
type VehicleReleased struct {
	Receipt model.Receipt
	SpotID  string
}

// FineIssued is published when a violation fine is created.
type FineIssued struct {
	Fine model.Fine
}

// ReservationChanged is published on reservation lifecycle activity.
type ReservationChanged struct {
	Reservation model.Reservation
	Action      string
	At          time.Time
}

// Event is any published value.
type Event interface{}

// EventBus is the publish/subscribe contract.
type EventBus interface {
	Publish(Event)
	Subscribe() <-chan Event
	Unsubscribe(<-chan Event)
	Close()
}

// Bus fans events out to subscriber channels. Delivery never blocks: a
// slow subscriber drops events rather than stalling the engine.
type Bus struct {
	mu     sync.RWMutex
	subs   map[<-chan Event]chan Event
	closed bool
}

// New creates a Bus.
func New() *Bus { return &Bus{subs: map[<-chan Event]chan Event{}} }

// Publish sends the event to all subscribers without blocking.
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// Subscribe registers a new subscriber and returns its channel.
func (b *Bus) Subscribe() <-chan Event {
	ch := make(chan Event, 16)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch
	}
	b.subs[ch] = ch
	return ch
}

// Unsubscribe removes the subscriber and closes its channel.
func (b *Bus) Unsubscribe(sub <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch, ok := b.subs[sub]
	if !ok {
		return
	}
	delete(b.subs, sub)
	if !b.closed {
		close(ch)
	}
}

// Close closes all subscriber channels.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, ch := range b.subs {
		close(ch)
	}
	b.subs = map[<-chan Event]chan Event{}
}
