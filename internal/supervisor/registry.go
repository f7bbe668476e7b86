package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/smazurov/hlsnode/internal/outputs"
)

// Handle is the supervision state of one running transcoder.
type Handle struct {
	PID       int
	RecordID  int64
	Name      string
	OutputDir string
	StartedAt time.Time

	cancel context.CancelFunc
	done   chan struct{}

	mu          sync.Mutex
	lastChecked time.Time
	lastOutput  time.Time
	files       int
}

func newHandle(pid int, recordID int64, name, dir string) *Handle {
	return &Handle{
		PID:       pid,
		RecordID:  recordID,
		Name:      name,
		OutputDir: dir,
		StartedAt: time.Now(),
		cancel:    func() {},
		done:      make(chan struct{}),
	}
}

// observe stores the result of a scan.
func (h *Handle) observe(at time.Time, st outputs.Stat) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastChecked = at
	h.files = st.Files
	if !st.Empty() {
		h.lastOutput = st.Newest
	}
}

func (h *Handle) checked(at time.Time) {
	h.mu.Lock()
	h.lastChecked = at
	h.mu.Unlock()
}

// Done is closed when the handle's watchdog has exited.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// HandleInfo is a point-in-time copy of a Handle.
type HandleInfo struct {
	PID         int
	RecordID    int64
	Name        string
	OutputDir   string
	StartedAt   time.Time
	LastChecked time.Time
	LastOutput  time.Time
	OutputFiles int
}

// Info returns a snapshot of h.
func (h *Handle) Info() HandleInfo {
	h.mu.Lock()
	defer h.mu.Unlock()
	return HandleInfo{
		PID:         h.PID,
		RecordID:    h.RecordID,
		Name:        h.Name,
		OutputDir:   h.OutputDir,
		StartedAt:   h.StartedAt,
		LastChecked: h.lastChecked,
		LastOutput:  h.lastOutput,
		OutputFiles: h.files,
	}
}

// Registry maps supervised pids to their handles.
type Registry struct {
	mu      sync.RWMutex
	handles map[int]*Handle
	logger  *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		handles: make(map[int]*Handle),
		logger:  logger,
	}
}

// Register adds h. An existing entry for the pid is never replaced.
func (r *Registry) Register(h *Handle) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.handles[h.PID]; exists {
		r.logger.Warn("Watchdog already registered", "pid", h.PID)
		return fmt.Errorf("pid %d: %w", h.PID, ErrAlreadyRegistered)
	}
	r.handles[h.PID] = h
	return nil
}

// Unregister removes and returns the handle for pid, or nil if absent.
func (r *Registry) Unregister(pid int) *Handle {
	r.mu.Lock()
	defer r.mu.Unlock()

	h, ok := r.handles[pid]
	if !ok {
		return nil
	}
	delete(r.handles, pid)
	return h
}

// Has reports whether pid is registered.
func (r *Registry) Has(pid int) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.handles[pid]
	return ok
}

// Get returns the handle for pid.
func (r *Registry) Get(pid int) (*Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handles[pid]
	return h, ok
}

// ForRecord returns the handles registered for a record id.
func (r *Registry) ForRecord(id int64) []*Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Handle
	for _, h := range r.handles {
		if h.RecordID == id {
			out = append(out, h)
		}
	}
	return out
}

// Len returns the number of registered pids.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handles)
}

// Snapshot returns all handles ordered by pid.
func (r *Registry) Snapshot() []*Handle {
	r.mu.RLock()
	out := make([]*Handle, 0, len(r.handles))
	for _, h := range r.handles {
		out = append(out, h)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].PID < out[j].PID })
	return out
}
