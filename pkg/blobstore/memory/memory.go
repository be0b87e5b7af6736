// Package memory is an in-process blobstore.Store used by unit tests.
package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"maps"
	"sync"
	"time"

	"github.com/storacha/cloud-mirror/pkg/blobstore"
)

type object struct {
	body       []byte
	headers    blobstore.Headers
	metadata   map[string]string
	expiration time.Time
}

// Store is an in-memory blobstore.Store. PublicURLPrefix defaults to
// "https://memory.local/" when empty.
type Store struct {
	PublicURLPrefix string
	DefaultTTL      time.Duration

	mu      sync.Mutex
	objects map[string]object
}

var _ blobstore.Store = (*Store)(nil)

// New returns an empty in-memory Store.
func New() *Store {
	return &Store{objects: make(map[string]object), DefaultTTL: 24 * time.Hour}
}

func (s *Store) Put(_ context.Context, key string, size int64, body io.Reader, headers blobstore.Headers, metadata map[string]string) error {
	buf, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("reading body: %w", err)
	}
	if int64(len(buf)) != size && size >= 0 {
		// non-fatal mismatch, mirrors the adapter's logged-not-failed policy
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = object{
		body:       buf,
		headers:    headers,
		metadata:   maps.Clone(metadata),
		expiration: time.Now().Add(s.DefaultTTL),
	}
	return nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

func (s *Store) Head(_ context.Context, key string) (blobstore.Head, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[key]
	if !ok {
		return blobstore.Head{}, blobstore.ErrNotFound
	}
	exp := obj.expiration
	return blobstore.Head{Headers: obj.headers, Metadata: maps.Clone(obj.metadata), Expiration: &exp}, nil
}

func (s *Store) PublicURL(key string) string {
	prefix := s.PublicURLPrefix
	if prefix == "" {
		prefix = "https://memory.local/"
	}
	return prefix + key
}

func (s *Store) EnsureContainer(context.Context, int) error { return nil }

// Get is a test-only accessor not part of blobstore.Store, letting tests
// assert on the uploaded bytes directly.
func (s *Store) Get(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[key]
	if !ok {
		return nil, false
	}
	return bytes.Clone(obj.body), true
}
