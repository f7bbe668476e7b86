// Package store provides the record backends: a TOML document and SQLite.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/smazurov/hlsnode/internal/records"
)

const documentVersion = 1

// document is the on-disk layout of the TOML store.
type document struct {
	Version int              `toml:"version"`
	NextID  int64            `toml:"next_id"`
	Records []records.Record `toml:"records"`
}

// tomlStore keeps every record in one TOML file and rewrites it on each
// mutation.
type tomlStore struct {
	mu   sync.Mutex
	path string
	doc  document
	now  func() time.Time
}

// NewTOML opens the TOML store at path, loading it if the file exists.
func NewTOML(path string) (records.Store, error) {
	if path == "" {
		path = "records.toml"
	}

	s := &tomlStore{
		path: path,
		doc:  document{Version: documentVersion, NextID: 1},
		now:  time.Now,
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *tomlStore) load() error {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read records file: %w", err)
	}

	var doc document
	if err := toml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to parse records file: %w", err)
	}
	if doc.Version == 0 {
		doc.Version = documentVersion
	}
	if doc.Version != documentVersion {
		return fmt.Errorf("unsupported records file version %d", doc.Version)
	}
	for _, r := range doc.Records {
		if r.ID >= doc.NextID {
			doc.NextID = r.ID + 1
		}
	}
	if doc.NextID < 1 {
		doc.NextID = 1
	}

	s.doc = doc
	return nil
}

// save writes the document to a temp file and renames it into place.
func (s *tomlStore) save() error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create records directory: %w", err)
	}

	data, err := toml.Marshal(s.doc)
	if err != nil {
		return fmt.Errorf("failed to marshal records: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp records file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write records: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync records: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close records: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("failed to replace records file: %w", err)
	}
	return nil
}

// commit persists next, restoring the previous document on failure.
func (s *tomlStore) commit(next document) error {
	prev := s.doc
	s.doc = next
	if err := s.save(); err != nil {
		s.doc = prev
		return err
	}
	return nil
}

func (s *tomlStore) clone() document {
	doc := s.doc
	doc.Records = make([]records.Record, len(s.doc.Records))
	for i, r := range s.doc.Records {
		doc.Records[i] = copyRecord(r)
	}
	return doc
}

func copyRecord(r records.Record) records.Record {
	if r.PID != nil {
		r.PID = records.IntPtr(*r.PID)
	}
	return r
}

func (s *tomlStore) indexOf(id int64) int {
	return slices.IndexFunc(s.doc.Records, func(r records.Record) bool { return r.ID == id })
}

func (s *tomlStore) nameTaken(name string, except int64) bool {
	return slices.ContainsFunc(s.doc.Records, func(r records.Record) bool {
		return r.Name == name && r.ID != except
	})
}

func (s *tomlStore) List() ([]records.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]records.Record, 0, len(s.doc.Records))
	for _, r := range s.doc.Records {
		out = append(out, copyRecord(r))
	}
	slices.SortFunc(out, func(a, b records.Record) int { return int(a.ID - b.ID) })
	return out, nil
}

func (s *tomlStore) GetByID(id int64) (records.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return records.Record{}, fmt.Errorf("record %d: %w", id, records.ErrNotFound)
	}
	return copyRecord(s.doc.Records[i]), nil
}

func (s *tomlStore) GetByPID(pid int) (records.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.doc.Records {
		if r.PID != nil && *r.PID == pid {
			return copyRecord(r), nil
		}
	}
	return records.Record{}, fmt.Errorf("record with pid %d: %w", pid, records.ErrNotFound)
}

func (s *tomlStore) Create(params records.CreateParams) (records.Record, error) {
	if err := params.Validate(); err != nil {
		return records.Record{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.nameTaken(params.Name, 0) {
		return records.Record{}, fmt.Errorf("%q: %w", params.Name, records.ErrConflict)
	}

	now := s.now().UTC()
	rec := records.Record{
		ID:        s.doc.NextID,
		Name:      params.Name,
		SourceURL: params.SourceURL,
		CreatedAt: now,
		UpdatedAt: now,
	}

	next := s.clone()
	next.NextID++
	next.Records = append(next.Records, rec)
	if err := s.commit(next); err != nil {
		return records.Record{}, err
	}
	return copyRecord(rec), nil
}

func (s *tomlStore) Update(id int64, params records.UpdateParams) (records.Record, error) {
	if err := params.Validate(); err != nil {
		return records.Record{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return records.Record{}, fmt.Errorf("record %d: %w", id, records.ErrNotFound)
	}
	if params.Name != nil && s.nameTaken(*params.Name, id) {
		return records.Record{}, fmt.Errorf("%q: %w", *params.Name, records.ErrConflict)
	}

	next := s.clone()
	updated := params.Apply(next.Records[i])
	updated.UpdatedAt = s.now().UTC()
	next.Records[i] = updated
	if err := s.commit(next); err != nil {
		return records.Record{}, err
	}
	return copyRecord(updated), nil
}

func (s *tomlStore) Delete(id int64) (records.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return records.Record{}, fmt.Errorf("record %d: %w", id, records.ErrNotFound)
	}

	next := s.clone()
	removed := next.Records[i]
	next.Records = slices.Delete(next.Records, i, i+1)
	if err := s.commit(next); err != nil {
		return records.Record{}, err
	}
	return removed, nil
}

func (s *tomlStore) SetPID(id int64, pid *int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return fmt.Errorf("record %d: %w", id, records.ErrNotFound)
	}

	next := s.clone()
	if pid != nil {
		next.Records[i].PID = records.IntPtr(*pid)
	} else {
		next.Records[i].PID = nil
	}
	next.Records[i].UpdatedAt = s.now().UTC()
	return s.commit(next)
}

func (s *tomlStore) ClearStalePIDs() ([]records.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.clone()
	var stale []records.Record
	now := s.now().UTC()
	for i, r := range next.Records {
		if r.PID == nil {
			continue
		}
		stale = append(stale, copyRecord(r))
		next.Records[i].PID = nil
		next.Records[i].UpdatedAt = now
	}
	if len(stale) == 0 {
		return nil, nil
	}
	if err := s.commit(next); err != nil {
		return nil, err
	}
	return stale, nil
}

func (s *tomlStore) Close() error {
	return nil
}
