// Package systemd reports service state to systemd when hlsnode runs as a
// Type=notify unit. Every call is a no-op outside systemd.
package systemd

import (
	"context"
	"log/slog"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/smazurov/hlsnode/internal/logging"
)

// Notifier sends sd_notify messages.
type Notifier struct {
	logger *slog.Logger
	done   chan struct{}
	cancel context.CancelFunc
}

// NewNotifier creates a notifier logging under module "main".
func NewNotifier() *Notifier {
	return &Notifier{logger: logging.GetLogger("main")}
}

// Ready tells systemd startup is complete.
func (n *Notifier) Ready() {
	n.send(daemon.SdNotifyReady)
}

// Stopping tells systemd shutdown has begun.
func (n *Notifier) Stopping() {
	n.send(daemon.SdNotifyStopping)
}

// Status sets the free-form status line shown by systemctl status.
func (n *Notifier) Status(msg string) {
	n.send("STATUS=" + msg)
}

// StartWatchdog pings the systemd watchdog at half of WatchdogSec until
// StopWatchdog is called. It does nothing when the unit has no watchdog.
// healthy is consulted before every ping; a false result skips the ping so
// systemd restarts a wedged process.
func (n *Notifier) StartWatchdog(healthy func() bool) {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		n.logger.Warn("Invalid systemd watchdog settings", "error", err)
		return
	}
	if interval == 0 || n.done != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	n.cancel = cancel
	n.done = make(chan struct{})
	n.logger.Info("systemd watchdog enabled", "interval", interval)

	go func() {
		defer close(n.done)
		ticker := time.NewTicker(interval / 2)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if healthy == nil || healthy() {
					n.send(daemon.SdNotifyWatchdog)
				}
			}
		}
	}()
}

// StopWatchdog stops the ping loop and waits for it to exit.
func (n *Notifier) StopWatchdog() {
	if n.cancel == nil {
		return
	}
	n.cancel()
	<-n.done
}

func (n *Notifier) send(state string) {
	sent, err := daemon.SdNotify(false, state)
	if err != nil {
		n.logger.Warn("sd_notify failed", "state", state, "error", err)
		return
	}
	if sent {
		n.logger.Debug("sd_notify sent", "state", state)
	}
}
