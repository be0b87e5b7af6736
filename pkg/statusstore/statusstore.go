// Package statusstore defines the narrow key/value contract the cache
// entry lifecycle is built on: get, conditional (atomic) put, delete, each
// with TTL. Implementations know the external store's wire format; callers
// see only flat string fields.
package statusstore

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when the key has no live entry. A miss is
// an expected outcome, never treated as a failure by callers.
var ErrNotFound = errors.New("status store: key not found")

// ErrAlreadyExists is returned by PutIfAbsent when another writer already
// holds the key (used for the single-flight lock).
var ErrAlreadyExists = errors.New("status store: key already exists")

// Fields is a flat mapping from short ASCII field names to short UTF-8
// string values, matching the record shape described in the external
// interfaces (url, status, stack).
type Fields map[string]string

// Store is the adapter contract over the external key/value store.
type Store interface {
	// Get returns the fields for key, or ErrNotFound if absent or expired.
	Get(ctx context.Context, key string) (Fields, error)
	// Put atomically sets value and TTL together, overwriting any existing
	// entry unconditionally.
	Put(ctx context.Context, key string, fields Fields, ttl time.Duration) error
	// PutIfAbsent atomically creates the entry only if key does not already
	// exist; it returns ErrAlreadyExists if another writer won the race.
	// Used for the single-flight lock.
	PutIfAbsent(ctx context.Context, key string, fields Fields, ttl time.Duration) error
	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}
