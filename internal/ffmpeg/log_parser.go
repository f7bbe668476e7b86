package ffmpeg

import (
	"log/slog"
	"strings"
)

// levels maps the names printed by -loglevel level+info onto slog.
var levels = map[string]slog.Level{
	"quiet":   slog.LevelError,
	"panic":   slog.LevelError,
	"fatal":   slog.LevelError,
	"error":   slog.LevelError,
	"warning": slog.LevelWarn,
	"info":    slog.LevelInfo,
	"verbose": slog.LevelDebug,
	"debug":   slog.LevelDebug,
	"trace":   slog.LevelDebug,
}

// ParseLogLevel splits a transcoder output line into its level and the
// remaining text. A leading "[component @ 0x...]" tag stays in the message.
// Lines without a recognised level are info.
func ParseLogLevel(line string) (level, msg string) {
	prefix, rest := "", line
	if tag, after, ok := bracketed(rest); ok && !isLevel(tag) {
		prefix, rest = line[:len(line)-len(after)], after
	}
	if tag, after, ok := bracketed(rest); ok && isLevel(tag) {
		return tag, prefix + after
	}
	return "info", line
}

// bracketed reads a "[tag] " prefix off s.
func bracketed(s string) (tag, rest string, ok bool) {
	if !strings.HasPrefix(s, "[") {
		return "", s, false
	}
	return strings.Cut(s[1:], "] ")
}

func isLevel(s string) bool {
	_, ok := levels[s]
	return ok
}

// SlogLevel maps a transcoder level name to a slog level.
func SlogLevel(level string) slog.Level {
	if l, ok := levels[level]; ok {
		return l
	}
	return slog.LevelInfo
}
