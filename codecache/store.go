// Package codecache stores serialized compiled code per module. It is the
// only shared mutable state of the loader; a single mutex guards the whole
// map and is held only for the duration of a map access.
package codecache

import (
	"fmt"
	"sort"
	"sync"

	"github.com/hashicorp/go-multierror"
)

// Store maps module ids to cache blobs.
type Store struct {
	mu      sync.Mutex
	entries map[string][]byte
}

// New returns an empty Store.
func New() *Store {
	return &Store{entries: map[string][]byte{}}
}

// Get returns the blob for id. The returned slice is a view and must not be
// modified; stored blobs are never mutated in place.
func (s *Store) Get(id string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	blob, ok := s.entries[id]
	return blob, ok
}

// Put stores a copy of blob for id, replacing any prior entry.
func (s *Store) Put(id string, blob []byte) {
	blob = append([]byte(nil), blob...)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[id] = blob
}

// Snapshot returns the byte length of every entry.
func (s *Store) Snapshot() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	sizes := make(map[string]int, len(s.entries))
	for id, blob := range s.entries {
		sizes[id] = len(blob)
	}
	return sizes
}

// IDs returns the sorted ids that have an entry.
func (s *Store) IDs() []string {
	s.mu.Lock()
	ids := make([]string, 0, len(s.entries))
	for id := range s.entries {
		ids = append(ids, id)
	}
	s.mu.Unlock()
	sort.Strings(ids)
	return ids
}

// Len returns the number of entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Seed loads pre-generated blobs. Entries whose id is rejected by known are
// skipped and reported in the returned error; the others are stored.
func (s *Store) Seed(entries map[string][]byte, known func(id string) bool) error {
	var result *multierror.Error
	ids := make([]string, 0, len(entries))
	for id := range entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if known != nil && !known(id) {
			result = multierror.Append(result, fmt.Errorf("code cache for unknown module: %q", id))
			continue
		}
		s.Put(id, entries[id])
	}
	return result.ErrorOrNil()
}
