package logging

import (
	"sync"
	"time"
)

// LogEntry is one record as kept in History and handed to the log callback.
type LogEntry struct {
	Timestamp  time.Time      `json:"timestamp"`
	Level      string         `json:"level"`
	Module     string         `json:"module"`
	Message    string         `json:"message"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// History keeps the most recent log entries so late subscribers can catch up.
type History struct {
	mu      sync.Mutex
	limit   int
	entries []LogEntry
	next    int // slot overwritten next once entries is full
}

func newHistory(limit int) *History {
	if limit <= 0 {
		limit = defaultBufferSize
	}
	return &History{limit: limit, entries: make([]LogEntry, 0, limit)}
}

// Write records entry, evicting the oldest one at capacity.
func (h *History) Write(entry LogEntry) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.entries) < h.limit {
		h.entries = append(h.entries, entry)
		return
	}
	h.entries[h.next] = entry
	h.next = (h.next + 1) % h.limit
}

// Snapshot copies the entries out, oldest first.
func (h *History) Snapshot() []LogEntry {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]LogEntry, 0, len(h.entries))
	out = append(out, h.entries[h.next:]...)
	return append(out, h.entries[:h.next]...)
}

// Len reports how many entries are held.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}
