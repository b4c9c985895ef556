package services

import (
	"log"
	"sync"

	"wasteroute-backend/internal/models"
)

// EventType identifies an engine event consumed by collaborators
// (notification dispatch, websocket forwarding, reporting).
type EventType string

const (
	EventBinEligible    EventType = "bin_eligible"
	EventRouteAssigned  EventType = "route_assigned"
	EventRouteCompleted EventType = "route_completed"
	EventRouteCancelled EventType = "route_cancelled"
)

// Event is published by the owning operation, never as an implicit storage
// side effect.
type Event struct {
	Type  EventType
	Bin   *models.Bin
	Route *models.Route
}

// Listener receives published events. Listeners run on the bus goroutine and
// must not block for long.
type Listener func(Event)

// EventBus fans engine events out to registered listeners.
type EventBus struct {
	mu        sync.RWMutex
	listeners map[EventType][]Listener
	events    chan Event
	done      chan struct{}
}

// NewEventBus creates a new EventBus instance
func NewEventBus() *EventBus {
	return &EventBus{
		listeners: make(map[EventType][]Listener),
		events:    make(chan Event, 256),
		done:      make(chan struct{}),
	}
}

// Subscribe registers a listener for an event type. Subscriptions are made
// during wiring, before Run starts delivering.
func (b *EventBus) Subscribe(t EventType, fn Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners[t] = append(b.listeners[t], fn)
}

// Publish queues an event for delivery. Publishing never blocks the caller;
// if the buffer is full the event is dropped with a warning.
func (b *EventBus) Publish(evt Event) {
	select {
	case b.events <- evt:
	default:
		log.Printf("⚠️  [EVENTS] Buffer full, dropping %s event", evt.Type)
	}
}

// Run starts the bus's delivery loop
func (b *EventBus) Run() {
	for {
		select {
		case evt := <-b.events:
			b.mu.RLock()
			fns := b.listeners[evt.Type]
			b.mu.RUnlock()
			for _, fn := range fns {
				fn(evt)
			}
		case <-b.done:
			return
		}
	}
}

// Stop terminates the delivery loop.
func (b *EventBus) Stop() {
	close(b.done)
}
