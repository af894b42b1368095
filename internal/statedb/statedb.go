// Package statedb persists small key/value records, such as the last
// visited directory path.
package statedb

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Store is a key/value record store. Fetch reports ok=false for a
// missing key without an error.
type Store interface {
	Fetch(ctx context.Context, key string) (value string, ok bool, err error)
	Save(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
	Close() error
}

// FileStore keeps records in a single JSON file, written atomically
// (temp file then rename).
type FileStore struct {
	path string

	mu      sync.Mutex
	records map[string]string
}

// NewFileStore opens (or creates) the store at path.
func NewFileStore(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}

	s := &FileStore{path: path, records: make(map[string]string)}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("read state file: %w", err)
	}
	if err := json.Unmarshal(data, &s.records); err != nil {
		// A corrupt state file is discarded rather than surfaced; the
		// records are advisory.
		s.records = make(map[string]string)
	}
	return s, nil
}

// Fetch returns the value stored under key.
func (s *FileStore) Fetch(ctx context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.records[key]
	return v, ok, nil
}

// Save writes value under key and flushes the file.
func (s *FileStore) Save(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[key] = value
	return s.flushLocked()
}

// Remove deletes key and flushes the file.
func (s *FileStore) Remove(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[key]; !ok {
		return nil
	}
	delete(s.records, key)
	return s.flushLocked()
}

// Close is a no-op for the file store.
func (s *FileStore) Close() error { return nil }

func (s *FileStore) flushLocked() error {
	data, err := json.Marshal(s.records)
	if err != nil {
		return err
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename state file: %w", err)
	}
	return nil
}
