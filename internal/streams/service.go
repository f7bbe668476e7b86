package streams

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/smazurov/hlsnode/internal/api/models"
	"github.com/smazurov/hlsnode/internal/events"
	"github.com/smazurov/hlsnode/internal/logging"
	"github.com/smazurov/hlsnode/internal/records"
	"github.com/smazurov/hlsnode/internal/supervisor"
)

// StreamService defines the interface for stream operations.
type StreamService interface {
	ListStreams(ctx context.Context) ([]Stream, error)
	GetStream(ctx context.Context, id int64) (*Stream, error)
	CreateStream(ctx context.Context, params records.CreateParams) (*Stream, error)
	UpdateStream(ctx context.Context, id int64, params records.UpdateParams) (*Stream, error)
	DeleteStream(ctx context.Context, id int64) error
	StartStream(ctx context.Context, id int64) (int, error)
	StopStream(ctx context.Context, pid int) error
	RestartStream(ctx context.Context, id int64) (int, error)
	SupervisorStatus(ctx context.Context) Status
}

// Stream is a record together with its supervision state.
type Stream struct {
	records.Record
	Supervised bool
	OutputDir  string
}

// Status describes the supervisor as a whole.
type Status struct {
	Settings  supervisor.Settings
	Watchdogs []supervisor.HandleInfo
	Now       time.Time
}

// Supervisor is the part of *supervisor.Controller the service drives.
type Supervisor interface {
	Start(ctx context.Context, id int64) (int, error)
	Stop(ctx context.Context, pid int) error
	Restart(ctx context.Context, id int64) (int, error)
	Delete(ctx context.Context, id int64) (records.Record, error)
	Exclusive(ctx context.Context, id int64, fn func() error) error
	Forget(id int64)
	Status() []supervisor.HandleInfo
	Settings() supervisor.Settings
}

// Directories owns the per-stream output directories.
type Directories interface {
	Dir(name string) string
	Create(name string) (string, error)
	Rename(oldName, newName string) error
	Remove(name string) error
}

// Publisher receives stream lifecycle events.
type Publisher interface {
	Publish(ev events.Event)
}

// ServiceOptions configures the stream service.
type ServiceOptions struct {
	Store      records.Store
	Supervisor Supervisor
	Outputs    Directories
	EventBus   Publisher // optional
	Logger     *slog.Logger
}

type service struct {
	store      records.Store
	supervisor Supervisor
	outputs    Directories
	eventBus   Publisher
	logger     *slog.Logger
}

// NewStreamService creates a stream service.
func NewStreamService(opts *ServiceOptions) StreamService {
	logger := opts.Logger
	if logger == nil {
		logger = logging.GetLogger("streams")
	}
	return &service{
		store:      opts.Store,
		supervisor: opts.Supervisor,
		outputs:    opts.Outputs,
		eventBus:   opts.EventBus,
		logger:     logger,
	}
}

func (s *service) ListStreams(_ context.Context) ([]Stream, error) {
	recs, err := s.store.List()
	if err != nil {
		return nil, classify(err, ErrCodeStoreError, "failed to list streams")
	}

	supervised := s.supervisedPIDs()
	out := make([]Stream, 0, len(recs))
	for _, rec := range recs {
		out = append(out, s.toStream(rec, supervised))
	}
	return out, nil
}

func (s *service) GetStream(_ context.Context, id int64) (*Stream, error) {
	rec, err := s.store.GetByID(id)
	if err != nil {
		return nil, classify(err, ErrCodeStoreError, fmt.Sprintf("stream %d", id))
	}
	st := s.toStream(rec, s.supervisedPIDs())
	return &st, nil
}

func (s *service) CreateStream(_ context.Context, params records.CreateParams) (*Stream, error) {
	if err := params.Validate(); err != nil {
		return nil, NewStreamError(ErrCodeInvalidParams, "invalid stream parameters", err)
	}

	rec, err := s.store.Create(params)
	if err != nil {
		return nil, classify(err, ErrCodeStoreError, fmt.Sprintf("failed to create stream %q", params.Name))
	}

	if _, err := s.outputs.Create(rec.Name); err != nil {
		if _, delErr := s.store.Delete(rec.ID); delErr != nil {
			s.logger.Error("Failed to roll back stream record", "stream_id", rec.ID, "error", delErr)
		}
		return nil, NewStreamError(ErrCodeFilesystemError, fmt.Sprintf("failed to create output directory for %q", rec.Name), err)
	}

	s.logger.Info("Stream created", "stream_id", rec.ID, "name", rec.Name, "url", rec.SourceURL)
	st := s.toStream(rec, nil)
	s.publish(events.StreamCreatedEvent{
		Record:    RecordData(st),
		Action:    "created",
		Timestamp: timestamp(),
	})
	return &st, nil
}

func (s *service) UpdateStream(ctx context.Context, id int64, params records.UpdateParams) (*Stream, error) {
	if err := params.Validate(); err != nil {
		return nil, NewStreamError(ErrCodeInvalidParams, "invalid stream parameters", err)
	}

	if _, err := s.store.GetByID(id); err != nil {
		return nil, classify(err, ErrCodeStoreError, fmt.Sprintf("stream %d", id))
	}

	var updated records.Record
	err := s.supervisor.Exclusive(ctx, id, func() error {
		current, err := s.store.GetByID(id)
		if err != nil {
			return classify(err, ErrCodeStoreError, fmt.Sprintf("stream %d", id))
		}

		renaming := params.Name != nil && *params.Name != current.Name
		if renaming && current.Running() {
			return NewStreamError(ErrCodeStreamRunning,
				fmt.Sprintf("stream %q is running; stop it before renaming", current.Name), nil)
		}

		updated, err = s.store.Update(id, params)
		if err != nil {
			return classify(err, ErrCodeStoreError, fmt.Sprintf("failed to update stream %d", id))
		}
		if !renaming {
			return nil
		}

		if err := s.outputs.Rename(current.Name, updated.Name); err != nil {
			revert := records.UpdateParams{Name: &current.Name}
			if _, revErr := s.store.Update(id, revert); revErr != nil {
				s.logger.Error("Failed to revert stream name", "stream_id", id, "error", revErr)
			}
			return NewStreamError(ErrCodeFilesystemError,
				fmt.Sprintf("failed to rename output directory %q to %q", current.Name, updated.Name), err)
		}
		return nil
	})
	if err != nil {
		return nil, classify(err, ErrCodeStoreError, fmt.Sprintf("failed to update stream %d", id))
	}

	s.logger.Info("Stream updated", "stream_id", id, "name", updated.Name, "url", updated.SourceURL)
	st := s.toStream(updated, s.supervisedPIDs())
	s.publish(events.StreamUpdatedEvent{
		Record:    RecordData(st),
		Action:    "updated",
		Timestamp: timestamp(),
	})
	return &st, nil
}

// DeleteStream stops a running stream before removing its record and output
// directory.
func (s *service) DeleteStream(ctx context.Context, id int64) error {
	removed, err := s.supervisor.Delete(ctx, id)
	if errors.Is(err, records.ErrNotFound) {
		s.supervisor.Forget(id)
	}
	if err != nil {
		return classify(err, ErrCodeStoreError, fmt.Sprintf("failed to delete stream %d", id))
	}
	s.supervisor.Forget(id)

	if err := s.outputs.Remove(removed.Name); err != nil {
		s.logger.Warn("Failed to remove output directory", "stream_id", id, "name", removed.Name, "error", err)
	}

	s.logger.Info("Stream deleted", "stream_id", id, "name", removed.Name)
	s.publish(events.StreamDeletedEvent{
		RecordID:  id,
		Name:      removed.Name,
		Action:    "deleted",
		Timestamp: timestamp(),
	})
	return nil
}

func (s *service) StartStream(ctx context.Context, id int64) (int, error) {
	pid, err := s.supervisor.Start(ctx, id)
	if err != nil {
		return 0, classify(err, ErrCodeStoreError, fmt.Sprintf("failed to start stream %d", id))
	}
	return pid, nil
}

func (s *service) StopStream(ctx context.Context, pid int) error {
	if pid <= 0 {
		return NewStreamError(ErrCodeInvalidParams, fmt.Sprintf("invalid pid %d", pid), nil)
	}
	if err := s.supervisor.Stop(ctx, pid); err != nil {
		return classify(err, ErrCodeStoreError, fmt.Sprintf("failed to stop pid %d", pid))
	}
	return nil
}

func (s *service) RestartStream(ctx context.Context, id int64) (int, error) {
	pid, err := s.supervisor.Restart(ctx, id)
	if err != nil {
		return 0, classify(err, ErrCodeStoreError, fmt.Sprintf("failed to restart stream %d", id))
	}
	return pid, nil
}

func (s *service) SupervisorStatus(_ context.Context) Status {
	return Status{
		Settings:  s.supervisor.Settings(),
		Watchdogs: s.supervisor.Status(),
		Now:       time.Now(),
	}
}

func (s *service) supervisedPIDs() map[int]bool {
	infos := s.supervisor.Status()
	pids := make(map[int]bool, len(infos))
	for _, info := range infos {
		pids[info.PID] = true
	}
	return pids
}

func (s *service) toStream(rec records.Record, supervised map[int]bool) Stream {
	return Stream{
		Record:     rec,
		Supervised: rec.PID != nil && supervised[*rec.PID],
		OutputDir:  s.outputs.Dir(rec.Name),
	}
}

func (s *service) publish(ev events.Event) {
	if s.eventBus != nil {
		s.eventBus.Publish(ev)
	}
}

// RecordData converts a stream into its API representation.
func RecordData(st Stream) models.RecordData {
	return models.RecordData{
		ID:        st.ID,
		Name:      st.Name,
		URL:       st.SourceURL,
		PID:       st.PID,
		Running:   st.Supervised,
		CreatedAt: st.CreatedAt,
		UpdatedAt: st.UpdatedAt,
	}
}

func timestamp() string {
	return time.Now().Format(time.RFC3339)
}
