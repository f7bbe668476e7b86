package process

import (
	"io"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// RotateOptions controls child log file rotation.
type RotateOptions struct {
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

func (o RotateOptions) withDefaults() RotateOptions {
	if o.MaxSizeMB <= 0 {
		o.MaxSizeMB = 10
	}
	if o.MaxBackups <= 0 {
		o.MaxBackups = 3
	}
	if o.MaxAgeDays <= 0 {
		o.MaxAgeDays = 7
	}
	return o
}

// LogFilePath returns the log file path used for a child id under dir.
func LogFilePath(dir, id string) string {
	return filepath.Join(dir, id+".log")
}

func newLogFile(dir, id string, opts RotateOptions) io.WriteCloser {
	opts = opts.withDefaults()
	return &lumberjack.Logger{
		Filename:   LogFilePath(dir, id),
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
		Compress:   opts.Compress,
	}
}
