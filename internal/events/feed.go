package events

import (
	"sync"
	"sync/atomic"
)

// Kind selects a group of event types for a Feed.
type Kind int

const (
	// KindLifecycle covers record create/update/delete and stream state changes.
	KindLifecycle Kind = iota
	// KindWatchdog covers stale output alerts.
	KindWatchdog
	// KindLogs covers log entries.
	KindLogs
)

// Feed merges the events of one or more kinds into a single buffered
// channel for one consumer, typically an SSE connection. Events arriving
// while the buffer is full are dropped and counted.
type Feed struct {
	ch      chan Event
	unsubs  []func()
	dropped atomic.Uint64
	once    sync.Once
}

// NewFeed subscribes a feed of the given buffer size to kinds.
func (b *Bus) NewFeed(size int, kinds ...Kind) *Feed {
	f := &Feed{ch: make(chan Event, size)}
	for _, k := range kinds {
		switch k {
		case KindLifecycle:
			f.unsubs = append(f.unsubs,
				attach[StreamCreatedEvent](b, f),
				attach[StreamUpdatedEvent](b, f),
				attach[StreamDeletedEvent](b, f),
				attach[StreamStateChangedEvent](b, f),
			)
		case KindWatchdog:
			f.unsubs = append(f.unsubs, attach[WatchdogStaleEvent](b, f))
		case KindLogs:
			f.unsubs = append(f.unsubs, attach[LogEntryEvent](b, f))
		}
	}
	return f
}

func attach[T Event](b *Bus, f *Feed) func() {
	return On(b, func(e T) {
		select {
		case f.ch <- e:
		default:
			f.dropped.Add(1)
		}
	})
}

// C returns the receive side of the feed. It is never closed.
func (f *Feed) C() <-chan Event { return f.ch }

// Dropped reports how many events overflowed the buffer.
func (f *Feed) Dropped() uint64 { return f.dropped.Load() }

// Close unsubscribes the feed. Safe to call more than once.
func (f *Feed) Close() {
	f.once.Do(func() {
		for _, unsub := range f.unsubs {
			unsub()
		}
	})
}
