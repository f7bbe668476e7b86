package events

import "github.com/smazurov/hlsnode/internal/api/models"

// Event type constants for kelindar/event.
const (
	TypeStreamCreated uint32 = iota + 1
	TypeStreamUpdated
	TypeStreamDeleted
	TypeStreamStateChanged
	TypeWatchdogStale
	TypeLogEntry
)

// Stream states reported by StreamStateChangedEvent.
const (
	StateStarted    = "started"
	StateStopped    = "stopped"
	StateRestarting = "restarting"
	StateFailed     = "failed"
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// StreamCreatedEvent represents a successful record creation.
type StreamCreatedEvent struct {
	Record    models.RecordData `json:"record" doc:"Created record"`
	Action    string            `json:"action" example:"created" doc:"Action type"`
	Timestamp string            `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for StreamCreatedEvent.
func (e StreamCreatedEvent) Type() uint32 { return TypeStreamCreated }

// StreamUpdatedEvent represents a successful record update.
type StreamUpdatedEvent struct {
	Record    models.RecordData `json:"record" doc:"Updated record"`
	Action    string            `json:"action" example:"updated" doc:"Action type"`
	Timestamp string            `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for StreamUpdatedEvent.
func (e StreamUpdatedEvent) Type() uint32 { return TypeStreamUpdated }

// StreamDeletedEvent represents a successful record deletion.
type StreamDeletedEvent struct {
	RecordID  int64  `json:"record_id" example:"1" doc:"Deleted record identifier"`
	Name      string `json:"name" example:"camA" doc:"Deleted stream name"`
	Action    string `json:"action" example:"deleted" doc:"Action type"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for StreamDeletedEvent.
func (e StreamDeletedEvent) Type() uint32 { return TypeStreamDeleted }

// StreamStateChangedEvent is published whenever the supervisor starts, stops
// or restarts a transcoder.
type StreamStateChangedEvent struct {
	RecordID  int64  `json:"record_id" example:"1" doc:"Record identifier"`
	Name      string `json:"name" example:"camA" doc:"Stream name"`
	State     string `json:"state" example:"started" doc:"New state: started, stopped, restarting, failed"`
	PID       int    `json:"pid,omitempty" example:"4242" doc:"Process id the transition applies to"`
	Reason    string `json:"reason,omitempty" example:"watchdog" doc:"What triggered the transition"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for StreamStateChangedEvent.
func (e StreamStateChangedEvent) Type() uint32 { return TypeStreamStateChanged }

// WatchdogStaleEvent is published when a watchdog declares its output stale.
type WatchdogStaleEvent struct {
	RecordID   int64   `json:"record_id" example:"1" doc:"Record identifier"`
	PID        int     `json:"pid" example:"4242" doc:"Stalled process id"`
	OutputDir  string  `json:"output_dir" example:"/var/www/html/streams/camA" doc:"Monitored directory"`
	AgeSeconds float64 `json:"age_seconds" example:"131.5" doc:"Age of the newest output file"`
	Timestamp  string  `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for WatchdogStaleEvent.
func (e WatchdogStaleEvent) Type() uint32 { return TypeWatchdogStale }

// LogEntryEvent represents a log entry for SSE streaming.
type LogEntryEvent struct {
	Timestamp  string         `json:"timestamp" example:"2025-01-09T10:30:00.123Z" doc:"Log timestamp"`
	Level      string         `json:"level" example:"info" doc:"Log level"`
	Module     string         `json:"module" example:"supervisor" doc:"Source module"`
	Message    string         `json:"message" doc:"Log message"`
	Attributes map[string]any `json:"attributes,omitempty" doc:"Structured log attributes"`
}

// Type returns the event type identifier for LogEntryEvent.
func (e LogEntryEvent) Type() uint32 { return TypeLogEntry }
