package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/smazurov/hlsnode/internal/metrics"
	"github.com/smazurov/hlsnode/internal/outputs"
)

// Default watchdog timings.
const (
	DefaultPollInterval   = 10 * time.Second
	DefaultStaleThreshold = 120 * time.Second
)

// Settings are the watchdog timings.
type Settings struct {
	PollInterval   time.Duration
	StaleThreshold time.Duration
}

// DefaultSettings returns the default timings.
func DefaultSettings() Settings {
	return Settings{PollInterval: DefaultPollInterval, StaleThreshold: DefaultStaleThreshold}
}

func (s Settings) withDefaults() Settings {
	if s.PollInterval <= 0 {
		s.PollInterval = DefaultPollInterval
	}
	if s.StaleThreshold <= 0 {
		s.StaleThreshold = DefaultStaleThreshold
	}
	return s
}

// ScanFunc summarizes an output directory.
type ScanFunc func(dir string) (outputs.Stat, error)

// watchdog polls one handle's output directory until it is cancelled,
// unregistered, or finds the output stale.
type watchdog struct {
	handle   *Handle
	settings Settings
	registry *Registry
	scan     ScanFunc
	now      func() time.Time
	onStale  func(h *Handle, age time.Duration)
	logger   *slog.Logger
}

func (w *watchdog) run(ctx context.Context) {
	defer close(w.handle.done)

	w.logger.Debug("Watchdog started",
		"pid", w.handle.PID,
		"dir", w.handle.OutputDir,
		"poll_interval", w.settings.PollInterval,
		"stale_threshold", w.settings.StaleThreshold)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("Watchdog cancelled", "pid", w.handle.PID)
			return
		case <-timer.C:
		}

		if ctx.Err() != nil || !w.registry.Has(w.handle.PID) {
			w.logger.Debug("Watchdog no longer registered, exiting", "pid", w.handle.PID)
			return
		}

		if age, stale := w.check(); stale {
			if ctx.Err() != nil {
				return
			}
			w.logger.Warn("Output stale, requesting restart",
				"pid", w.handle.PID,
				"stream", w.handle.Name,
				"age", age.Round(time.Second))
			w.onStale(w.handle, age)
			return
		}

		timer.Reset(w.settings.PollInterval)
	}
}

// check scans once. Errors are logged and never count as stale.
func (w *watchdog) check() (age time.Duration, stale bool) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("Watchdog check panicked", "pid", w.handle.PID, "panic", fmt.Sprint(r))
			metrics.IncWatchdogScanError(w.handle.Name)
			age, stale = 0, false
		}
	}()

	now := w.now()
	st, err := w.scan(w.handle.OutputDir)
	if err != nil {
		w.handle.checked(now)
		w.logger.Warn("Output scan failed", "pid", w.handle.PID, "dir", w.handle.OutputDir, "error", err)
		metrics.IncWatchdogScanError(w.handle.Name)
		return 0, false
	}
	w.handle.observe(now, st)

	if st.Empty() {
		return 0, false
	}

	age = st.Age(now)
	metrics.SetOutputAge(w.handle.Name, age.Seconds())
	return age, age > w.settings.StaleThreshold
}
