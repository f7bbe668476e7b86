package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/smazurov/hlsnode/internal/records"
	"github.com/smazurov/hlsnode/internal/records/store"
)

func seedStore(t *testing.T) records.Store {
	t.Helper()
	st, err := store.NewTOML(filepath.Join(t.TempDir(), "records.toml"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })

	a, _ := st.Create(records.CreateParams{Name: "camA", SourceURL: "rtsp://example/a"})
	b, _ := st.Create(records.CreateParams{Name: "camB", SourceURL: "rtsp://example/b"})
	st.Create(records.CreateParams{Name: "camC", SourceURL: "rtsp://example/c"})
	if err := st.SetPID(a.ID, records.IntPtr(111)); err != nil {
		t.Fatal(err)
	}
	if err := st.SetPID(b.ID, records.IntPtr(222)); err != nil {
		t.Fatal(err)
	}
	return st
}

func TestListRecordsTable(t *testing.T) {
	st := seedStore(t)
	alive := func(pid int) bool { return pid == 111 }

	var buf bytes.Buffer
	if err := listRecords(&buf, st, alive, false); err != nil {
		t.Fatal(err)
	}
	out := buf.String()

	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected header + 3 rows, got:\n%s", out)
	}
	for _, want := range []string{"camA", "111", "alive", "camB", "gone", "camC", "idle"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestListRecordsJSON(t *testing.T) {
	st := seedStore(t)

	var buf bytes.Buffer
	if err := listRecords(&buf, st, func(int) bool { return false }, true); err != nil {
		t.Fatal(err)
	}

	var rows []recordRow
	if err := json.Unmarshal(buf.Bytes(), &rows); err != nil {
		t.Fatalf("invalid JSON %s: %v", buf.String(), err)
	}
	if len(rows) != 3 || rows[0].Process != "gone" || rows[2].PID != nil || rows[2].Process != "idle" {
		t.Errorf("rows = %+v", rows)
	}
}

func TestProbe(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()

	res, err := probe(dir, time.Minute, now)
	if err != nil {
		t.Fatal(err)
	}
	if res.Files != 0 || res.Stale {
		t.Errorf("empty dir should never be stale: %+v", res)
	}

	seg := filepath.Join(dir, "segment_000.ts")
	if err := os.WriteFile(seg, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	old := now.Add(-130 * time.Second)
	if err := os.Chtimes(seg, old, old); err != nil {
		t.Fatal(err)
	}

	res, err = probe(dir, 120*time.Second, now)
	if err != nil {
		t.Fatal(err)
	}
	if res.Files != 1 || !res.Stale || res.AgeSeconds < 129 {
		t.Errorf("expected stale result, got %+v", res)
	}

	var buf bytes.Buffer
	if err := printProbe(&buf, res, false); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "stale:     yes") {
		t.Errorf("unexpected output:\n%s", buf.String())
	}

	if _, err := probe(filepath.Join(dir, "missing"), time.Minute, now); err == nil {
		t.Error("expected error for missing directory")
	}
}

func TestProbeCommandUsesConfigThreshold(t *testing.T) {
	dir := t.TempDir()
	seg := filepath.Join(dir, "segment_000.ts")
	if err := os.WriteFile(seg, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	old := time.Now().Add(-30 * time.Second)
	if err := os.Chtimes(seg, old, old); err != nil {
		t.Fatal(err)
	}

	cfg := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(cfg, []byte("[watchdog]\nstale_threshold = \"10s\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cmd := CreateProbeCmd()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{"--config", cfg, "--json", dir})
	if err := cmd.Execute(); err != nil {
		t.Fatal(err)
	}

	var res ProbeResult
	if err := json.Unmarshal(buf.Bytes(), &res); err != nil {
		t.Fatalf("invalid JSON %s: %v", buf.String(), err)
	}
	if !res.Stale || res.Threshold != "10s" {
		t.Errorf("expected stale against the 10s config threshold, got %+v", res)
	}
}

func TestRecordsCommandReadsConfig(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "records.db")
	st, err := store.NewSQLite(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := st.Create(records.CreateParams{Name: "camA", SourceURL: "rtsp://example/a"}); err != nil {
		t.Fatal(err)
	}
	st.Close()

	cfg := filepath.Join(dir, "config.toml")
	content := "[records]\nbackend = \"sqlite\"\npath = \"" + dbPath + "\"\n"
	if err := os.WriteFile(cfg, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cmd := CreateRecordsCmd()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{"--config", cfg})
	if err := cmd.Execute(); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "camA") {
		t.Errorf("expected camA from the sqlite store:\n%s", buf.String())
	}
}
