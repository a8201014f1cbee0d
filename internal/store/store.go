// Package store persists one status record per uploaded video in a JSON file.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// ErrNotFound is returned when no record exists for a video name.
var ErrNotFound = errors.New("record not found")

// Status is the processing state of a video.
type Status string

const (
	StatusPending   Status = "pending"
	StatusProcessed Status = "processed"
	StatusFailed    Status = "failed"
)

// Record is the stored state of one uploaded video.
type Record struct {
	Name      string    `json:"video_name"`
	InfoPath  string    `json:"info_path"`
	Processed bool      `json:"processed"`
	Status    Status    `json:"status"`
	Error     string    `json:"error,omitempty"`
	Updated   time.Time `json:"updated"`
}

// file is the on-disk layout.
type file struct {
	Videos []Record `json:"videos"`
}

// Store is a JSON-file record store. Every mutation is written through to
// disk before the call returns.
type Store struct {
	mu      sync.RWMutex
	path    string
	records map[string]Record
}

// Open loads the store at path. A missing file yields an empty store; the
// file and its directory are created on the first write.
func Open(path string) (*Store, error) {
	s := &Store{
		path:    path,
		records: make(map[string]Record),
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read store: %w", err)
	}
	if len(data) == 0 {
		return s, nil
	}

	var f file
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse store %s: %w", path, err)
	}
	for _, r := range f.Videos {
		s.records[r.Name] = r
	}
	return s, nil
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// Find returns the record for name.
func (s *Store) Find(name string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.records[name]
	if !ok {
		return Record{}, fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	return r, nil
}

// EnsureRecord inserts a pending record for name, or resets an existing one
// back to pending so a rerun never shows the previous outcome. The existing
// info path is kept. It reports whether a record was created.
func (s *Store) EnsureRecord(name, infoPath string) (Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, exists := s.records[name]
	r := prev
	if !exists {
		r = Record{Name: name, InfoPath: infoPath}
	}
	r.Status = StatusPending
	r.Processed = false
	r.Error = ""
	r.Updated = time.Now().UTC()

	s.records[name] = r
	if err := s.saveLocked(); err != nil {
		if exists {
			s.records[name] = prev
		} else {
			delete(s.records, name)
		}
		return Record{}, false, err
	}
	return r, !exists, nil
}

// MarkProcessed flags the record for name as processed.
func (s *Store) MarkProcessed(name string) error {
	return s.update(name, func(r *Record) {
		r.Status = StatusProcessed
		r.Processed = true
		r.Error = ""
	})
}

// MarkFailed flags the record for name as failed with the given cause.
func (s *Store) MarkFailed(name string, cause error) error {
	return s.update(name, func(r *Record) {
		r.Status = StatusFailed
		r.Processed = false
		if cause != nil {
			r.Error = cause.Error()
		}
	})
}

// List returns all records sorted by name.
func (s *Store) List() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Record, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *Store) update(name string, fn func(*Record)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.records[name]
	if !ok {
		return fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	prev := r
	fn(&r)
	r.Updated = time.Now().UTC()
	s.records[name] = r

	if err := s.saveLocked(); err != nil {
		s.records[name] = prev
		return err
	}
	return nil
}

// saveLocked writes all records to disk. The caller holds the write lock.
func (s *Store) saveLocked() error {
	f := file{Videos: make([]Record, 0, len(s.records))}
	for _, r := range s.records {
		f.Videos = append(f.Videos, r)
	}
	sort.Slice(f.Videos, func(i, j int) bool { return f.Videos[i].Name < f.Videos[j].Name })

	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create store directory: %w", err)
	}

	// Write to a sibling and rename so a crash never leaves a torn file.
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write store: %w", err)
	}
	return os.Rename(tmp, s.path)
}
