package logging

import (
	"context"
	"log/slog"
	"testing"
)

func resetLogging(t *testing.T) {
	t.Helper()
	mutex.Lock()
	moduleLoggers = make(map[string]*slog.Logger)
	moduleLevelVars = make(map[string]*slog.LevelVar)
	isInitialized = false
	logCallback = nil
	mutex.Unlock()
}

func TestModuleLevelOverride(t *testing.T) {
	resetLogging(t)

	Initialize(Config{
		Level:  "info",
		Format: "text",
		Modules: map[string]string{
			"watchdog": "debug",
			"api":      "warn",
		},
	})

	tests := []struct {
		module    string
		wantDebug bool
		wantInfo  bool
		wantWarn  bool
	}{
		{"watchdog", true, true, true},
		{"api", false, false, true},
		{"other", false, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.module, func(t *testing.T) {
			handler := GetLogger(tt.module).Handler()
			ctx := context.Background()

			if got := handler.Enabled(ctx, slog.LevelDebug); got != tt.wantDebug {
				t.Errorf("Debug enabled = %v, want %v", got, tt.wantDebug)
			}
			if got := handler.Enabled(ctx, slog.LevelInfo); got != tt.wantInfo {
				t.Errorf("Info enabled = %v, want %v", got, tt.wantInfo)
			}
			if got := handler.Enabled(ctx, slog.LevelWarn); got != tt.wantWarn {
				t.Errorf("Warn enabled = %v, want %v", got, tt.wantWarn)
			}
		})
	}
}

func TestLoggerCreatedBeforeInitialize(t *testing.T) {
	resetLogging(t)

	early := GetLogger("supervisor")
	if early.Handler().Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("default level should be info before Initialize")
	}

	Initialize(Config{Level: "debug"})

	if !GetLogger("supervisor").Handler().Enabled(context.Background(), slog.LevelDebug) {
		t.Error("logger should be rebuilt with debug level after Initialize")
	}
}

func TestSetModuleLevel(t *testing.T) {
	resetLogging(t)
	Initialize(Config{Level: "info"})

	logger := GetLogger("process")
	SetModuleLevel("process", "error")

	if logger.Handler().Enabled(context.Background(), slog.LevelWarn) {
		t.Error("warn should be disabled after raising level to error")
	}
}

func TestApplyModuleLevels(t *testing.T) {
	resetLogging(t)
	Initialize(Config{Level: "info"})

	watchdog := GetLogger("watchdog")
	api := GetLogger("api")
	ApplyModuleLevels(Config{Modules: map[string]string{"watchdog": "debug"}})

	ctx := context.Background()
	if !watchdog.Handler().Enabled(ctx, slog.LevelDebug) {
		t.Error("watchdog should log debug after reload")
	}
	if api.Handler().Enabled(ctx, slog.LevelDebug) {
		t.Error("api level should be untouched")
	}
}

func TestBufferCapturesModuleAndCallback(t *testing.T) {
	resetLogging(t)
	Initialize(Config{Level: "info"})

	var got []LogEntry
	SetLogCallback(func(entry LogEntry) { got = append(got, entry) })
	defer SetLogCallback(nil)

	before := GetBuffer().Len()
	GetLogger("watchdog").Warn("Output stale", "pid", 4242)

	if GetBuffer().Len() <= before && GetBuffer().Len() != defaultBufferSize {
		t.Fatal("entry was not written to the history")
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 callback, got %d", len(got))
	}
	if got[0].Module != "watchdog" || got[0].Level != "warn" {
		t.Errorf("unexpected entry %+v", got[0])
	}
	if got[0].Attributes["pid"] != int64(4242) {
		t.Errorf("pid attribute = %v", got[0].Attributes["pid"])
	}
}

func TestHistoryEvictsOldestFirst(t *testing.T) {
	h := newHistory(3)
	if got := h.Snapshot(); len(got) != 0 {
		t.Fatalf("empty history returned %d entries", len(got))
	}
	for _, msg := range []string{"a", "b", "c", "d", "e"} {
		h.Write(LogEntry{Message: msg})
	}

	entries := h.Snapshot()
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	for i, want := range []string{"c", "d", "e"} {
		if entries[i].Message != want {
			t.Errorf("entries[%d] = %q, want %q", i, entries[i].Message, want)
		}
	}
}
