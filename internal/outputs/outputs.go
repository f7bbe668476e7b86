// Package outputs manages the per-stream HLS output directories.
package outputs

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/smazurov/hlsnode/internal/logging"
)

// Layout maps stream names to directories under Root.
type Layout struct {
	Root   string
	logger *slog.Logger
}

// NewLayout creates a layout rooted at root.
func NewLayout(root string) *Layout {
	return &Layout{
		Root:   root,
		logger: logging.GetLogger("outputs"),
	}
}

// Dir returns the output directory for a stream name.
func (l *Layout) Dir(name string) string {
	return filepath.Join(l.Root, name)
}

// Create makes the output directory for name, including parents.
func (l *Layout) Create(name string) (string, error) {
	dir := l.Dir(name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir %s: %w", dir, err)
	}
	l.logger.Debug("Output directory ready", "dir", dir)
	return dir, nil
}

// Rename moves the output directory of oldName to newName. A missing source
// directory is created at the new location instead.
func (l *Layout) Rename(oldName, newName string) error {
	if oldName == newName {
		return nil
	}
	src, dst := l.Dir(oldName), l.Dir(newName)

	if _, err := os.Stat(dst); err == nil {
		return fmt.Errorf("rename output dir: %s already exists", dst)
	}

	err := os.Rename(src, dst)
	if errors.Is(err, fs.ErrNotExist) {
		_, err = l.Create(newName)
		return err
	}
	if err != nil {
		return fmt.Errorf("rename output dir %s -> %s: %w", src, dst, err)
	}
	l.logger.Info("Output directory renamed", "from", src, "to", dst)
	return nil
}

// Remove deletes the output directory of name and everything in it.
func (l *Layout) Remove(name string) error {
	dir := l.Dir(name)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("remove output dir %s: %w", dir, err)
	}
	l.logger.Info("Output directory removed", "dir", dir)
	return nil
}

// CleanFiles deletes the regular files directly inside dir and keeps the
// directory and any subdirectories. Failures are logged per file and the
// sweep continues. A missing directory is not an error. Returns the number
// of files removed.
func (l *Layout) CleanFiles(dir string) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			l.logger.Warn("Failed to list output dir", "dir", dir, "error", err)
		}
		return 0
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			l.logger.Warn("Failed to delete output file", "file", path, "error", err)
			continue
		}
		removed++
	}

	l.logger.Debug("Output files cleaned", "dir", dir, "removed", removed)
	return removed
}

// Stat summarizes a directory tree for liveness checks.
type Stat struct {
	Files  int
	Newest time.Time
}

// Empty reports whether the scan found no files.
func (s Stat) Empty() bool {
	return s.Files == 0
}

// Age returns how long ago the newest file was modified. Zero when empty.
func (s Stat) Age(now time.Time) time.Duration {
	if s.Empty() {
		return 0
	}
	return now.Sub(s.Newest)
}

// Scan walks dir recursively and returns the file count and newest
// modification time. Files that disappear mid-walk are skipped; any other
// error aborts the scan.
func Scan(dir string) (Stat, error) {
	var st Stat
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && path != dir {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		st.Files++
		if mt := info.ModTime(); mt.After(st.Newest) {
			st.Newest = mt
		}
		return nil
	})
	if err != nil {
		return Stat{}, fmt.Errorf("scan %s: %w", dir, err)
	}
	return st, nil
}
