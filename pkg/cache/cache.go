// Package cache provides a generic, thread-safe LRU cache with built-in
// statistics and optional Prometheus metrics.
package cache

import (
	"github.com/c360/semflow/errors"
)

// Cache represents a generic cache keyed by string.
type Cache[V any] interface {
	// Get retrieves a value by key and marks it as recently used.
	Get(key string) (V, bool)

	// Set stores a value. Returns true if a new entry was created, false if updated.
	Set(key string, value V) (bool, error)

	// Update atomically replaces the value under key with fn(old, found).
	Update(key string, fn func(old V, found bool) V) error

	// Delete removes an entry by key. Returns true if the key existed.
	Delete(key string) (bool, error)

	// Size returns the current number of entries.
	Size() int

	// Keys returns keys from most to least recently used.
	Keys() []string

	// Stats returns cache statistics.
	Stats() *Statistics
}

// EvictCallback is called when an entry is evicted from the cache.
type EvictCallback[V any] func(key string, value V)

// NewLRU creates an LRU cache holding at most maxSize entries.
func NewLRU[V any](maxSize int, options ...Option[V]) (Cache[V], error) {
	if maxSize <= 0 {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "cache", "NewLRU", "max size must be positive")
	}
	return newLRUCache(maxSize, applyOptions(options...))
}

func validateKey(key string) error {
	if key == "" {
		return errors.WrapInvalid(errors.ErrInvalidData, "cache", "validateKey", "key cannot be empty")
	}
	return nil
}
