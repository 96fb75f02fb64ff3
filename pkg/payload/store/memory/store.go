// Package memory provides an in-memory payload store for testing.
package memory

import (
	"context"
	"sync"

	"github.com/driftfs/driftfs/pkg/payload/store"
)

// Store is an in-memory implementation of store.PayloadStore.
type Store struct {
	mu       sync.RWMutex
	payloads map[string][]byte
	closed   bool
}

// New creates a new in-memory payload store.
func New() *Store {
	return &Store{
		payloads: make(map[string][]byte),
	}
}

// Put stores a copy of the payload under the key.
func (s *Store) Put(ctx context.Context, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return store.ErrStoreClosed
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	s.payloads[key] = buf
	return nil
}

// Get returns a copy of the payload for the key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, store.ErrStoreClosed
	}
	data, ok := s.payloads[key]
	if !ok {
		return nil, store.ErrBlobNotFound
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	return buf, nil
}

// Delete removes the payload for the key. Missing keys are ignored.
func (s *Store) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return store.ErrStoreClosed
	}
	delete(s.payloads, key)
	return nil
}

// Exists reports whether a payload is present for the key.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return false, store.ErrStoreClosed
	}
	_, ok := s.payloads[key]
	return ok, nil
}

// Len returns the number of stored payloads.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.payloads)
}

// HealthCheck always succeeds while the store is open.
func (s *Store) HealthCheck(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return store.ErrStoreClosed
	}
	return nil
}

// Close marks the store as closed and drops all payloads.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.payloads = nil
	return nil
}
