// Package eventbus implements the Event Bus: process-local, synchronous
// publish/subscribe of tagged domain events.
package eventbus

import (
	"sync"

	"github.com/corebooks/erp-core/pkg/mlog"
)

// Event is a tagged domain event. Type names the event kind (e.g.
// "role.updated", "journal_entry.posted"); Payload carries whatever
// fields that event type defines.
type Event struct {
	Type    string
	Payload map[string]any
}

// Handler reacts to one Event. A panic inside a Handler is recovered,
// logged, and does not abort delivery to subsequent subscribers.
type Handler func(Event)

// Bus is a synchronous, in-process publish/subscribe registry. Publish
// iterates subscribers registered for the event's Type in registration
// order; a copy of the subscriber slice is taken under a short lock so
// new registrations during delivery never race the iteration.
type Bus struct {
	mu          sync.Mutex
	subscribers map[string][]Handler
	log         mlog.Logger
}

// New constructs an empty Bus. log may be nil.
func New(log mlog.Logger) *Bus {
	if log == nil {
		log = mlog.Nop{}
	}

	return &Bus{subscribers: make(map[string][]Handler), log: log}
}

// Subscribe registers h to run, in order, whenever an Event of the
// given type is published.
func (b *Bus) Subscribe(eventType string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.subscribers[eventType] = append(b.subscribers[eventType], h)
}

// Publish delivers evt to every subscriber registered for evt.Type, in
// registration order. A subscriber panic is recovered and logged;
// delivery continues to the remaining subscribers.
func (b *Bus) Publish(evt Event) {
	b.mu.Lock()
	handlers := append([]Handler(nil), b.subscribers[evt.Type]...)
	b.mu.Unlock()

	for _, h := range handlers {
		b.deliver(evt, h)
	}
}

func (b *Bus) deliver(evt Event, h Handler) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Errorf("eventbus: subscriber panicked handling %q: %v", evt.Type, r)
		}
	}()

	h(evt)
}
