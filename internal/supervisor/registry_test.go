package supervisor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/smazurov/hlsnode/internal/outputs"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRegistryRegisterAndUnregister(t *testing.T) {
	r := NewRegistry(testLogger())

	h := newHandle(100, 1, "camA", "/out/camA")
	if err := r.Register(h); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if !r.Has(100) || r.Len() != 1 {
		t.Fatal("handle should be registered")
	}

	dup := newHandle(100, 2, "camB", "/out/camB")
	if err := r.Register(dup); !errors.Is(err, ErrAlreadyRegistered) {
		t.Fatalf("expected ErrAlreadyRegistered, got %v", err)
	}
	if got, _ := r.Get(100); got != h {
		t.Error("duplicate register must not replace the active handle")
	}

	if got := r.Unregister(100); got != h {
		t.Errorf("Unregister returned %v", got)
	}
	if r.Has(100) {
		t.Error("pid should be gone")
	}
	if got := r.Unregister(100); got != nil {
		t.Error("unregistering an absent pid should be a no-op")
	}
}

func TestRegistryForRecordAndSnapshot(t *testing.T) {
	r := NewRegistry(testLogger())
	_ = r.Register(newHandle(30, 1, "camA", "/a"))
	_ = r.Register(newHandle(10, 2, "camB", "/b"))
	_ = r.Register(newHandle(20, 3, "camC", "/c"))

	if hs := r.ForRecord(2); len(hs) != 1 || hs[0].PID != 10 {
		t.Errorf("ForRecord(2) = %v", hs)
	}
	if hs := r.ForRecord(9); len(hs) != 0 {
		t.Errorf("ForRecord(9) = %v", hs)
	}

	snap := r.Snapshot()
	if len(snap) != 3 || snap[0].PID != 10 || snap[2].PID != 30 {
		t.Errorf("snapshot not ordered by pid: %v", snap)
	}
}

func TestHandleInfo(t *testing.T) {
	h := newHandle(5, 7, "camA", "/out/camA")
	now := time.Now()

	h.observe(now, outputs.Stat{Files: 3, Newest: now.Add(-time.Second)})
	info := h.Info()
	if info.PID != 5 || info.RecordID != 7 || info.OutputFiles != 3 {
		t.Errorf("unexpected info %+v", info)
	}
	if !info.LastChecked.Equal(now) || !info.LastOutput.Equal(now.Add(-time.Second)) {
		t.Errorf("unexpected timestamps %+v", info)
	}

	h.observe(now.Add(time.Second), outputs.Stat{})
	info = h.Info()
	if info.OutputFiles != 0 {
		t.Errorf("OutputFiles = %d", info.OutputFiles)
	}
	if !info.LastOutput.Equal(now.Add(-time.Second)) {
		t.Error("an empty scan keeps the last seen output time")
	}
}

func newTestWatchdog(r *Registry, h *Handle, scan ScanFunc, settings Settings) (*watchdog, chan time.Duration) {
	stale := make(chan time.Duration, 4)
	return &watchdog{
		handle:   h,
		settings: settings.withDefaults(),
		registry: r,
		scan:     scan,
		now:      time.Now,
		onStale:  func(_ *Handle, age time.Duration) { stale <- age },
		logger:   testLogger(),
	}, stale
}

func waitDone(t *testing.T, h *Handle) {
	t.Helper()
	select {
	case <-h.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("watchdog did not exit")
	}
}

func TestWatchdogExitsWhenUnregistered(t *testing.T) {
	r := NewRegistry(testLogger())
	h := newHandle(1, 1, "camA", "/nowhere")

	scans := 0
	wd, _ := newTestWatchdog(r, h, func(string) (outputs.Stat, error) {
		scans++
		return outputs.Stat{}, nil
	}, Settings{PollInterval: time.Millisecond})

	go wd.run(context.Background())
	waitDone(t, h)
	if scans != 0 {
		t.Errorf("unregistered watchdog scanned %d times", scans)
	}
}

func TestWatchdogStaleFiresOnce(t *testing.T) {
	r := NewRegistry(testLogger())
	h := newHandle(1, 1, "camA", "/out")
	_ = r.Register(h)

	old := time.Now().Add(-130 * time.Second)
	wd, stale := newTestWatchdog(r, h, func(string) (outputs.Stat, error) {
		return outputs.Stat{Files: 2, Newest: old}, nil
	}, Settings{PollInterval: 5 * time.Millisecond, StaleThreshold: 120 * time.Second})

	go wd.run(context.Background())
	waitDone(t, h)

	select {
	case age := <-stale:
		if age < 130*time.Second {
			t.Errorf("age = %v", age)
		}
	default:
		t.Fatal("stale callback not invoked")
	}
	if len(stale) != 0 {
		t.Error("stale callback must fire exactly once")
	}
}

func TestWatchdogNeverStaleWithoutFiles(t *testing.T) {
	r := NewRegistry(testLogger())
	h := newHandle(1, 1, "camA", "/out")
	_ = r.Register(h)

	wd, stale := newTestWatchdog(r, h, func(string) (outputs.Stat, error) {
		return outputs.Stat{}, nil
	}, Settings{PollInterval: 2 * time.Millisecond, StaleThreshold: time.Nanosecond})

	ctx, cancel := context.WithCancel(context.Background())
	go wd.run(ctx)
	time.Sleep(100 * time.Millisecond)
	cancel()
	waitDone(t, h)

	if len(stale) != 0 {
		t.Error("empty directory must never be stale")
	}
}

func TestWatchdogSurvivesScanErrorsAndPanics(t *testing.T) {
	r := NewRegistry(testLogger())
	h := newHandle(1, 1, "camA", "/out")
	_ = r.Register(h)

	calls := 0
	wd, stale := newTestWatchdog(r, h, func(string) (outputs.Stat, error) {
		calls++
		switch calls {
		case 1:
			return outputs.Stat{}, errors.New("permission denied")
		case 2:
			panic("boom")
		default:
			return outputs.Stat{Files: 1, Newest: time.Now().Add(-time.Hour)}, nil
		}
	}, Settings{PollInterval: 2 * time.Millisecond, StaleThreshold: time.Minute})

	go wd.run(context.Background())
	waitDone(t, h)

	if len(stale) != 1 {
		t.Fatalf("expected one stale signal after recovering, got %d", len(stale))
	}
	if calls != 3 {
		t.Errorf("scan calls = %d, want 3", calls)
	}
}

func TestSettingsDefaults(t *testing.T) {
	s := Settings{}.withDefaults()
	if s != DefaultSettings() {
		t.Errorf("got %+v", s)
	}
	s = Settings{PollInterval: time.Second}.withDefaults()
	if s.PollInterval != time.Second || s.StaleThreshold != DefaultStaleThreshold {
		t.Errorf("got %+v", s)
	}
}
