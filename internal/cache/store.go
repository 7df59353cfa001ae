// Package cache implements a durable string-keyed memoization store with
// negative-result support, backed by a flat JSON file.
package cache

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Store maps string keys to values of type T. A key mapped to a nil value
// records a lookup that was attempted and found nothing; it is distinct from
// an absent key, which means the lookup was never attempted. Entries are
// never evicted, the store grows monotonically across runs.
//
// The store is not safe for concurrent use; the pipeline drives it from a
// single goroutine.
type Store[T any] struct {
	path    string
	log     *slog.Logger
	entries map[string]*T
}

// NewStore creates a store backed by the JSON file at path and loads its
// current contents. A missing or corrupt backing file yields an empty store,
// never an error, so a first run starts cleanly.
func NewStore[T any](path string, log *slog.Logger) *Store[T] {
	s := &Store[T]{
		path:    path,
		log:     log,
		entries: make(map[string]*T),
	}
	s.load()

	return s
}

// load reads the backing file into memory. Fails soft: any read or decode
// problem leaves the store empty.
func (s *Store[T]) load() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Warn("Failed to read cache file, starting empty", "path", s.path, "error", err)
		}
		return
	}

	if err = json.Unmarshal(data, &s.entries); err != nil {
		s.log.Warn("Cache file is corrupt, starting empty", "path", s.path, "error", err)
		s.entries = make(map[string]*T)
		return
	}

	s.log.Debug("Cache loaded", "path", s.path, "entries", len(s.entries))
}

// Lookup returns the value stored under key. The second return value reports
// whether the key is present at all; a present key with a nil value is a
// cached negative result and must not trigger a new lookup.
func (s *Store[T]) Lookup(key string) (*T, bool) {
	value, ok := s.entries[key]
	return value, ok
}

// Put records a value under key. A nil value memoizes a failed lookup.
func (s *Store[T]) Put(key string, value *T) {
	s.entries[key] = value
}

// Len returns the number of entries, cached failures included.
func (s *Store[T]) Len() int {
	return len(s.entries)
}

// Flush writes the full store contents to the backing file. The write goes to
// a temp file in the same directory first and is then renamed into place, so
// a crash mid-write cannot corrupt the next load.
func (s *Store[T]) Flush() error {
	data, err := json.MarshalIndent(s.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode cache: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp cache file: %w", err)
	}

	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write temp cache file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close temp cache file: %w", err)
	}

	if err = os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace cache file: %w", err)
	}

	return nil
}
