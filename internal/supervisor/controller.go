// Package supervisor runs one transcoder per stream record, watches each
// stream's output directory, and restarts streams whose output goes stale.
//
// Every start, stop and restart for a record runs on that record's worker
// goroutine, so operations on one record never interleave. Watchdogs never
// call into the controller synchronously; they post a restart request to the
// record's worker and exit.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/smazurov/hlsnode/internal/events"
	"github.com/smazurov/hlsnode/internal/logging"
	"github.com/smazurov/hlsnode/internal/metrics"
	"github.com/smazurov/hlsnode/internal/outputs"
	"github.com/smazurov/hlsnode/internal/process"
	"github.com/smazurov/hlsnode/internal/records"
)

// Publisher receives supervisor events.
type Publisher interface {
	Publish(ev events.Event)
}

// OutputDirs locates and cleans stream output directories.
type OutputDirs interface {
	Dir(name string) string
	CleanFiles(dir string) int
}

// Options configures a Controller.
type Options struct {
	Store    records.Store
	Launcher Launcher
	Outputs  OutputDirs
	Settings Settings
	Events   Publisher        // optional
	Scan     ScanFunc         // defaults to outputs.Scan
	Now      func() time.Time // defaults to time.Now
	Logger   *slog.Logger     // defaults to module "supervisor"
}

// Controller starts, stops and restarts stream transcoders.
type Controller struct {
	store    records.Store
	launcher Launcher
	outputs  OutputDirs
	events   Publisher
	scan     ScanFunc
	now      func() time.Time
	logger   *slog.Logger
	wdLogger *slog.Logger
	registry *Registry

	settingsMu sync.RWMutex
	settings   Settings

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	workers map[int64]*worker
	closed  bool
	wg      sync.WaitGroup
}

// New creates a Controller.
func New(opts Options) *Controller {
	if opts.Logger == nil {
		opts.Logger = logging.GetLogger("supervisor")
	}
	if opts.Scan == nil {
		opts.Scan = outputs.Scan
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		store:    opts.Store,
		launcher: opts.Launcher,
		outputs:  opts.Outputs,
		events:   opts.Events,
		scan:     opts.Scan,
		now:      opts.Now,
		logger:   opts.Logger,
		wdLogger: logging.GetLogger("watchdog"),
		registry: NewRegistry(opts.Logger),
		settings: opts.Settings.withDefaults(),
		ctx:      ctx,
		cancel:   cancel,
		workers:  make(map[int64]*worker),
	}
}

// Registry exposes the pid registry.
func (c *Controller) Registry() *Registry {
	return c.registry
}

// Settings returns the current watchdog timings.
func (c *Controller) Settings() Settings {
	c.settingsMu.RLock()
	defer c.settingsMu.RUnlock()
	return c.settings
}

// SetSettings replaces the watchdog timings. Watchdogs started afterwards use
// the new values; running ones keep theirs.
func (c *Controller) SetSettings(s Settings) {
	s = s.withDefaults()
	c.settingsMu.Lock()
	c.settings = s
	c.settingsMu.Unlock()
	c.logger.Info("Watchdog settings updated", "poll_interval", s.PollInterval, "stale_threshold", s.StaleThreshold)
}

// Start launches the transcoder for record id and returns its pid.
func (c *Controller) Start(ctx context.Context, id int64) (int, error) {
	return c.do(ctx, id, func() (int, error) {
		return c.start(id)
	})
}

// Stop kills pid, clears its record and deletes the record's output files.
// Stopping a pid that is already gone is not an error.
func (c *Controller) Stop(ctx context.Context, pid int) error {
	id, ok, err := c.resolve(pid)
	if err != nil {
		return err
	}
	if !ok {
		c.logger.Info("Stop requested for unsupervised pid", "pid", pid)
		_ = c.kill(pid)
		return nil
	}

	_, err = c.do(ctx, id, func() (int, error) {
		return 0, c.stop(id, pid)
	})
	return err
}

// Restart stops record id if it is running and starts it again.
func (c *Controller) Restart(ctx context.Context, id int64) (int, error) {
	return c.do(ctx, id, func() (int, error) {
		return c.restart(id, metrics.ReasonManual)
	})
}

// Delete stops record id if it is running and removes it from the store,
// both on the record's worker so no restart can slip in between. Call Forget
// afterwards to release the worker.
func (c *Controller) Delete(ctx context.Context, id int64) (records.Record, error) {
	var removed records.Record
	_, err := c.do(ctx, id, func() (int, error) {
		rec, err := c.store.GetByID(id)
		if err != nil {
			return 0, err
		}
		if rec.PID != nil {
			if err := c.stop(id, *rec.PID); err != nil {
				return 0, err
			}
		}
		removed, err = c.store.Delete(id)
		return 0, err
	})
	return removed, err
}

// Exclusive runs fn on record id's worker, serialized with every start, stop
// and restart of that record.
func (c *Controller) Exclusive(ctx context.Context, id int64, fn func() error) error {
	_, err := c.do(ctx, id, func() (int, error) {
		return 0, fn()
	})
	return err
}

// requestRestart asks id's worker to restart the stream holding pid,
// without waiting. Called by watchdogs.
func (c *Controller) requestRestart(id int64, pid int) {
	w, err := c.acquire(id)
	if err != nil {
		c.logger.Debug("Restart request dropped", "record_id", id, "pid", pid, "error", err)
		return
	}
	defer c.release(w, false)
	c.queueRestart(w, pid)
}

// Status returns a snapshot of every supervised stream.
func (c *Controller) Status() []HandleInfo {
	handles := c.registry.Snapshot()
	out := make([]HandleInfo, 0, len(handles))
	for _, h := range handles {
		out = append(out, h.Info())
	}
	return out
}

// Reconcile cleans up after a previous run: every record still holding a pid
// has that pid killed, its output files deleted and its pid cleared. It must
// run before any stream is started.
func (c *Controller) Reconcile(ctx context.Context) error {
	if c.registry.Len() > 0 {
		return errors.New("reconcile must run before streams are started")
	}

	stale, err := c.store.ClearStalePIDs()
	if err != nil {
		return fmt.Errorf("clear stale pids: %w", err)
	}

	for _, rec := range stale {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		pid := *rec.PID
		c.logger.Info("Cleaning up stream from previous run", "stream", rec.Name, "pid", pid)
		_ = c.kill(pid)
		c.outputs.CleanFiles(c.outputs.Dir(rec.Name))
		c.publishState(rec, events.StateStopped, pid, "reconcile")
	}
	return nil
}

// StopAll stops every supervised stream.
func (c *Controller) StopAll(ctx context.Context) error {
	var errs []error
	for _, h := range c.registry.Snapshot() {
		if err := c.Stop(ctx, h.PID); err != nil {
			errs = append(errs, fmt.Errorf("stop %s (pid %d): %w", h.Name, h.PID, err))
		}
	}
	return errors.Join(errs...)
}

// Forget stops the worker of a deleted record.
func (c *Controller) Forget(id int64) {
	c.mu.Lock()
	w, ok := c.workers[id]
	if ok {
		delete(c.workers, id)
	}
	c.mu.Unlock()

	if ok {
		close(w.quit)
		<-w.done
	}
}

// Close stops every worker and watchdog. Running transcoders are left alone;
// call StopAll first to kill them.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()
}

// resolve finds the record id owning pid, from the store first and the
// registry second.
func (c *Controller) resolve(pid int) (int64, bool, error) {
	rec, err := c.store.GetByPID(pid)
	if err == nil {
		return rec.ID, true, nil
	}
	if !errors.Is(err, records.ErrNotFound) {
		return 0, false, err
	}
	if h, ok := c.registry.Get(pid); ok {
		return h.RecordID, true, nil
	}
	return 0, false, nil
}

// start runs on the record's worker.
func (c *Controller) start(id int64) (int, error) {
	rec, err := c.store.GetByID(id)
	if err != nil {
		return 0, err
	}
	if rec.PID != nil {
		return 0, fmt.Errorf("%s (pid %d): %w", rec.Name, *rec.PID, ErrAlreadyRunning)
	}

	pid, err := c.launcher.Launch(rec)
	if err != nil {
		if errors.Is(err, ErrSpawnFailure) {
			metrics.IncSpawnFailure(rec.Name)
		}
		c.logger.Error("Failed to launch transcoder", "stream", rec.Name, "error", err)
		c.publishState(rec, events.StateFailed, 0, err.Error())
		return 0, err
	}
	metrics.IncProcessStart(rec.Name)

	if err := c.store.SetPID(id, &pid); err != nil {
		_ = c.kill(pid)
		return 0, fmt.Errorf("persist pid: %w", err)
	}

	h, err := c.supervise(id, rec.Name, pid)
	if err != nil {
		_ = c.kill(pid)
		if clearErr := c.store.SetPID(id, nil); clearErr != nil {
			c.logger.Error("Failed to clear pid", "stream", rec.Name, "error", clearErr)
		}
		return 0, err
	}

	c.logger.Info("Stream started", "stream", rec.Name, "pid", pid, "dir", h.OutputDir)
	c.publishState(rec, events.StateStarted, pid, "")
	return pid, nil
}

// supervise registers pid for record id and starts its watchdog.
func (c *Controller) supervise(id int64, name string, pid int) (*Handle, error) {
	h := newHandle(pid, id, name, c.outputs.Dir(name))
	wctx, cancel := context.WithCancel(c.ctx)
	h.cancel = cancel
	if err := c.registry.Register(h); err != nil {
		cancel()
		return nil, err
	}
	metrics.SetSupervisedStreams(c.registry.Len())

	wd := &watchdog{
		handle:   h,
		settings: c.Settings(),
		registry: c.registry,
		scan:     c.scan,
		now:      c.now,
		onStale:  c.onStale,
		logger:   c.wdLogger,
	}
	go wd.run(wctx)
	return h, nil
}

// stop runs on the record's worker. If the process cannot be killed the
// record keeps its pid and the stream is supervised again, so nothing is
// left running unwatched.
func (c *Controller) stop(id int64, pid int) error {
	h := c.registry.Unregister(pid)
	if h != nil {
		h.cancel()
		<-h.done
		metrics.DeleteStreamMetrics(h.Name)
	}
	metrics.SetSupervisedStreams(c.registry.Len())

	if err := c.kill(pid); err != nil {
		if h != nil {
			if _, regErr := c.supervise(h.RecordID, h.Name, pid); regErr != nil {
				c.logger.Error("Failed to resume supervision", "stream", h.Name, "pid", pid, "error", regErr)
			}
		}
		return fmt.Errorf("pid %d: %w: %w", pid, ErrKillFailed, err)
	}

	rec, err := c.store.GetByID(id)
	if errors.Is(err, records.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if rec.PID == nil || *rec.PID != pid {
		c.logger.Debug("Record no longer holds pid", "stream", rec.Name, "pid", pid)
		return nil
	}

	c.outputs.CleanFiles(c.outputs.Dir(rec.Name))
	if err := c.store.SetPID(id, nil); err != nil {
		return fmt.Errorf("clear pid: %w", err)
	}

	c.logger.Info("Stream stopped", "stream", rec.Name, "pid", pid)
	c.publishState(rec, events.StateStopped, pid, "")
	return nil
}

// restart runs on the record's worker.
func (c *Controller) restart(id int64, reason string) (int, error) {
	rec, err := c.store.GetByID(id)
	if err != nil {
		return 0, err
	}

	if rec.PID != nil {
		c.publishState(rec, events.StateRestarting, *rec.PID, reason)
		if err := c.stop(id, *rec.PID); err != nil {
			return 0, err
		}
	}
	metrics.IncRestart(rec.Name, reason)
	return c.start(id)
}

// restartByPID handles a watchdog request on the record's worker.
func (c *Controller) restartByPID(workerID int64, pid int) {
	rec, err := c.store.GetByPID(pid)
	if errors.Is(err, records.ErrNotFound) {
		c.logger.Info("No record holds pid, ignoring restart", "pid", pid)
		return
	}
	if err != nil {
		c.logger.Error("Failed to look up pid for restart", "pid", pid, "error", err)
		return
	}
	if rec.ID != workerID {
		c.logger.Warn("Pid moved to another record, ignoring restart", "pid", pid, "record_id", rec.ID)
		return
	}

	newPID, err := c.restart(rec.ID, metrics.ReasonWatchdog)
	if err != nil {
		c.logger.Error("Watchdog restart failed", "stream", rec.Name, "pid", pid, "error", err)
		return
	}
	c.logger.Info("Watchdog restart complete", "stream", rec.Name, "old_pid", pid, "new_pid", newPID)
}

// onStale is called from a watchdog goroutine.
func (c *Controller) onStale(h *Handle, age time.Duration) {
	metrics.IncWatchdogStale(h.Name)
	if c.events != nil {
		c.events.Publish(events.WatchdogStaleEvent{
			RecordID:   h.RecordID,
			PID:        h.PID,
			OutputDir:  h.OutputDir,
			AgeSeconds: age.Seconds(),
			Timestamp:  c.now().UTC().Format(time.RFC3339),
		})
	}
	c.requestRestart(h.RecordID, h.PID)
}

// kill treats a process that is already gone as killed.
func (c *Controller) kill(pid int) error {
	err := c.launcher.Kill(pid)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, process.ErrNotRunning):
		c.logger.Warn("Process already stopped", "pid", pid, "error", err)
		return nil
	default:
		c.logger.Error("Failed to kill process", "pid", pid, "error", err)
		return err
	}
}

func (c *Controller) publishState(rec records.Record, state string, pid int, reason string) {
	if c.events == nil {
		return
	}
	c.events.Publish(events.StreamStateChangedEvent{
		RecordID:  rec.ID,
		Name:      rec.Name,
		State:     state,
		PID:       pid,
		Reason:    reason,
		Timestamp: c.now().UTC().Format(time.RFC3339),
	})
}
