// Package memkv provides an in-memory implementation of kvstore.KV.
package memkv

import (
	"context"
	"sync"

	"github.com/linnemanlabs/civitas/internal/report/kvstore"
)

// Store holds blobs in memory. Suitable for dev/testing.
type Store struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// New initializes a new in-memory Store.
func New() *Store {
	return &Store{blobs: make(map[string][]byte)}
}

// Get returns a copy of the blob stored under key.
func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.blobs[key]
	if !ok {
		return nil, false, nil
	}
	return clone(b), true, nil
}

// Set stores a copy of value under key.
func (s *Store) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[key] = clone(value)
	return nil
}

// SetMany stores every entry under one lock, in order.
func (s *Store) SetMany(_ context.Context, entries ...kvstore.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		s.blobs[e.Key] = clone(e.Value)
	}
	return nil
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	cp := make([]byte, len(b))
	copy(cp, b)
	return cp
}
