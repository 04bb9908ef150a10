// Package memory provides an in-memory implementation of the cursor
// store interface.
package memory

import (
	"sync"

	"github.com/sigwire/sigwire/pkg/cursor"
)

// Store implements cursor.Store using an in-memory map.
type Store struct {
	mu      sync.RWMutex
	offsets map[string]string
}

// NewStore creates an empty in-memory cursor store.
func NewStore() *Store {
	return &Store{
		offsets: make(map[string]string),
	}
}

// Get returns the cursor for the stream, defaulting to the sentinel.
func (s *Store) Get(stream string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if offset, ok := s.offsets[stream]; ok {
		return offset, nil
	}
	return cursor.Sentinel, nil
}

// Advance moves the stream's cursor forward to offset. An offset that
// does not follow the current cursor is ignored.
func (s *Store) Advance(stream string, offset string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if current, ok := s.offsets[stream]; ok && cursor.Compare(offset, current) <= 0 {
		return nil
	}
	s.offsets[stream] = offset
	return nil
}

// Clear removes all cursors.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.offsets = make(map[string]string)
	return nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error {
	return nil
}
