package store

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/smazurov/hlsnode/internal/records"
)

func TestTOMLDocumentLayout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.toml")
	s, err := NewTOML(path)
	if err != nil {
		t.Fatal(err)
	}
	rec, err := s.Create(records.CreateParams{Name: "camA", SourceURL: "rtsp://example/a"})
	if err != nil {
		t.Fatal(err)
	}
	_ = s.SetPID(rec.ID, records.IntPtr(12))

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	content := string(data)
	for _, want := range []string{"version = 1", "next_id = 2", "camA", "pid = 12"} {
		if !strings.Contains(content, want) {
			t.Errorf("records file missing %q:\n%s", want, content)
		}
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}

func TestTOMLLoadsHandWrittenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.toml")
	content := `version = 1

[[records]]
id = 7
name = "lobby"
url = "rtsp://example/lobby"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := NewTOML(path)
	if err != nil {
		t.Fatal(err)
	}
	got, err := s.GetByID(7)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Name != "lobby" {
		t.Errorf("Name = %q", got.Name)
	}

	next, err := s.Create(records.CreateParams{Name: "garage", SourceURL: "rtsp://example/g"})
	if err != nil {
		t.Fatal(err)
	}
	if next.ID != 8 {
		t.Errorf("next id should follow the highest loaded id, got %d", next.ID)
	}
}

func TestTOMLRejectsUnknownVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.toml")
	if err := os.WriteFile(path, []byte("version = 9\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewTOML(path); err == nil {
		t.Error("expected error for unsupported version")
	}
}

func TestTOMLFailedWriteKeepsState(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "records.toml")
	s, err := NewTOML(path)
	if err != nil {
		t.Fatal(err)
	}
	mustCreate(t, s, "camA", "rtsp://example/a")

	// Replace the directory with a file so the next save fails.
	if err := os.RemoveAll(filepath.Join(dir, "sub")); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "sub"), nil, 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := s.Create(records.CreateParams{Name: "camB", SourceURL: "rtsp://example/b"}); err == nil {
		t.Fatal("expected write failure")
	}
	list, _ := s.List()
	if len(list) != 1 {
		t.Errorf("failed write must not change in-memory state, got %d records", len(list))
	}
}
