package systemd

import (
	"net"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// listen binds a notify socket and points NOTIFY_SOCKET at it.
func listen(t *testing.T) *net.UnixConn {
	t.Helper()
	path := filepath.Join(t.TempDir(), "notify.sock")
	conn, err := net.ListenUnixgram("unixgram", &net.UnixAddr{Name: path, Net: "unixgram"})
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	t.Setenv("NOTIFY_SOCKET", path)
	return conn
}

func receive(t *testing.T, conn *net.UnixConn) string {
	t.Helper()
	buf := make([]byte, 256)
	if err := conn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatal(err)
	}
	n, err := conn.Read(buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	return string(buf[:n])
}

func TestReadyStoppingStatus(t *testing.T) {
	conn := listen(t)
	n := NewNotifier()

	n.Ready()
	if got := receive(t, conn); got != "READY=1" {
		t.Errorf("got %q", got)
	}
	n.Status("2 streams supervised")
	if got := receive(t, conn); got != "STATUS=2 streams supervised" {
		t.Errorf("got %q", got)
	}
	n.Stopping()
	if got := receive(t, conn); got != "STOPPING=1" {
		t.Errorf("got %q", got)
	}
}

func TestWatchdogPings(t *testing.T) {
	conn := listen(t)
	t.Setenv("WATCHDOG_USEC", "100000")
	t.Setenv("WATCHDOG_PID", "")

	n := NewNotifier()
	n.StartWatchdog(func() bool { return true })
	defer n.StopWatchdog()

	if got := receive(t, conn); !strings.HasPrefix(got, "WATCHDOG=1") {
		t.Errorf("got %q", got)
	}
}

func TestWatchdogDisabled(t *testing.T) {
	t.Setenv("NOTIFY_SOCKET", "")
	t.Setenv("WATCHDOG_USEC", "")

	n := NewNotifier()
	n.StartWatchdog(nil)
	n.StopWatchdog()
	n.Ready()
}
