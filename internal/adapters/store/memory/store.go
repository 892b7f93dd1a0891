// Package memory implements ports.DocumentStore in process memory.
// Used by tests and throwaway runs; nothing survives a restart.
package memory

import (
	"context"
	"sync"

	"github.com/tjfontaine/gchat-bridge/internal/core/ports"
)

// Store is an in-memory implementation of ports.DocumentStore.
type Store struct {
	mu   sync.RWMutex
	docs map[string]map[string]string
}

var _ ports.DocumentStore = (*Store)(nil)

// New creates an empty in-memory store.
func New() *Store {
	return &Store{docs: make(map[string]map[string]string)}
}

func key(collection, id string) string {
	return collection + "/" + id
}

// Get fetches collection/id.
func (s *Store) Get(_ context.Context, collection, id string) (map[string]string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[key(collection, id)]
	if !ok {
		return nil, false, nil
	}

	out := make(map[string]string, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	return out, true, nil
}

// Set writes fields to collection/id.
func (s *Store) Set(_ context.Context, collection, id string, fields map[string]string, merge bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key(collection, id)
	doc := make(map[string]string)
	if merge {
		for fk, fv := range s.docs[k] {
			doc[fk] = fv
		}
	}
	for fk, fv := range fields {
		doc[fk] = fv
	}
	s.docs[k] = doc
	return nil
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}
