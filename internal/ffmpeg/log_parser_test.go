package ffmpeg

import (
	"log/slog"
	"testing"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		line      string
		wantLevel string
		wantMsg   string
	}{
		{"[info] Input #0, rtsp, from 'rtsp://example/a':", "info", "Input #0, rtsp, from 'rtsp://example/a':"},
		{"[warning] Non-monotonous DTS", "warning", "Non-monotonous DTS"},
		{"[hls @ 0x55d0] [error] failed to rename file", "error", "[hls @ 0x55d0] failed to rename file"},
		{"[rtsp @ 0x1] not a level", "info", "[rtsp @ 0x1] not a level"},
		{"plain output", "info", "plain output"},
		{"[]", "info", "[]"},
	}

	for _, tt := range tests {
		level, msg := ParseLogLevel(tt.line)
		if level != tt.wantLevel || msg != tt.wantMsg {
			t.Errorf("ParseLogLevel(%q) = (%q, %q), want (%q, %q)", tt.line, level, msg, tt.wantLevel, tt.wantMsg)
		}
	}
}

func TestSlogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"fatal":   slog.LevelError,
		"error":   slog.LevelError,
		"warning": slog.LevelWarn,
		"info":    slog.LevelInfo,
		"verbose": slog.LevelDebug,
		"debug":   slog.LevelDebug,
		"other":   slog.LevelInfo,
	}
	for in, want := range tests {
		if got := SlogLevel(in); got != want {
			t.Errorf("SlogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
