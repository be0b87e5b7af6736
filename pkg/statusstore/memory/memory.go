// Package memory is an in-process Store used by unit tests and local
// development; it has no external dependency and models TTL expiry with a
// wall-clock check on read.
package memory

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/storacha/cloud-mirror/pkg/statusstore"
)

type item struct {
	fields  statusstore.Fields
	expires time.Time
}

// Store is an in-memory statusstore.Store.
type Store struct {
	mu    sync.Mutex
	items map[string]item
	now   func() time.Time
}

var _ statusstore.Store = (*Store)(nil)

// New returns an empty in-memory Store.
func New() *Store {
	return &Store{items: make(map[string]item), now: time.Now}
}

func (s *Store) Get(_ context.Context, key string) (statusstore.Fields, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[key]
	if !ok || s.now().After(it.expires) {
		delete(s.items, key)
		return nil, statusstore.ErrNotFound
	}
	return maps.Clone(it.fields), nil
}

func (s *Store) Put(_ context.Context, key string, fields statusstore.Fields, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key] = item{fields: maps.Clone(fields), expires: s.now().Add(ttl)}
	return nil
}

func (s *Store) PutIfAbsent(_ context.Context, key string, fields statusstore.Fields, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if it, ok := s.items[key]; ok && !s.now().After(it.expires) {
		return statusstore.ErrAlreadyExists
	}
	s.items[key] = item{fields: maps.Clone(fields), expires: s.now().Add(ttl)}
	return nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, key)
	return nil
}
