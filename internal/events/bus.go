package events

import (
	"github.com/kelindar/event"
)

// Bus fans stream lifecycle, watchdog and log events out to in-process
// subscribers. Delivery is asynchronous and per subscriber ordered.
type Bus struct {
	dispatcher *event.Dispatcher
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{dispatcher: event.NewDispatcher()}
}

// Publish delivers ev to every subscriber of its concrete type. Types the
// bus does not carry are ignored.
func (b *Bus) Publish(ev Event) {
	switch e := ev.(type) {
	case StreamCreatedEvent:
		event.Publish(b.dispatcher, e)
	case StreamUpdatedEvent:
		event.Publish(b.dispatcher, e)
	case StreamDeletedEvent:
		event.Publish(b.dispatcher, e)
	case StreamStateChangedEvent:
		event.Publish(b.dispatcher, e)
	case WatchdogStaleEvent:
		event.Publish(b.dispatcher, e)
	case LogEntryEvent:
		event.Publish(b.dispatcher, e)
	}
}

// On registers fn for events of type T and returns the function that
// removes it.
//
//	stop := events.On(bus, func(e events.WatchdogStaleEvent) { ... })
//	defer stop()
func On[T Event](b *Bus, fn func(T)) func() {
	return event.Subscribe(b.dispatcher, fn)
}
