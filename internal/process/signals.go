package process

import (
	"errors"
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

// ErrNotRunning is returned by Kill when no process has the pid.
var ErrNotRunning = errors.New("process not running")

// Kill sends SIGKILL to pid's process group, falling back to the pid alone.
// For our own children it also waits until the child has been reaped.
// Returns ErrNotRunning when the process does not exist.
func (s *Spawner) Kill(pid int) error {
	if pid <= 0 {
		return fmt.Errorf("invalid pid %d", pid)
	}

	err := unix.Kill(-pid, unix.SIGKILL)
	if errors.Is(err, unix.ESRCH) {
		err = unix.Kill(pid, unix.SIGKILL)
	}
	if errors.Is(err, unix.ESRCH) {
		return fmt.Errorf("pid %d: %w", pid, ErrNotRunning)
	}
	if err != nil {
		return fmt.Errorf("kill pid %d: %w", pid, err)
	}

	s.logger.Info("Sent SIGKILL", "pid", pid)

	c := s.lookup(pid)
	if c == nil {
		return nil
	}
	select {
	case <-c.done:
		return nil
	case <-time.After(s.killTimeout):
		return fmt.Errorf("pid %d did not exit within %s", pid, s.killTimeout)
	}
}

// Alive reports whether a process with pid exists.
func (s *Spawner) Alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	if c := s.lookup(pid); c != nil {
		select {
		case <-c.done:
			return false
		default:
			return true
		}
	}
	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}
