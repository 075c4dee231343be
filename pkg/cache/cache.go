// Package cache stores compaction results keyed by the content they were
// computed from.
//
// Three backends implement [Cache]: [FileCache] for the CLI, [RedisCache]
// for shared deployments of the HTTP server, and a null cache from
// [NewNullCache] when caching is disabled. Keys are built by a [Keyer] so
// that every input that can change the output (document bytes and options)
// is part of the key.
package cache

import (
	"context"
	"time"
)

// Cache is a byte-oriented key/value store with optional expiry.
type Cache interface {
	// Get returns the value for key. A miss is (nil, false, nil).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A ttl of zero means no expiry.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases resources held by the cache.
	Close() error
}

// NewNullCache returns a cache that stores nothing. Every Get is a miss.
func NewNullCache() Cache { return nullCache{} }

type nullCache struct{}

func (nullCache) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }

func (nullCache) Set(context.Context, string, []byte, time.Duration) error { return nil }

func (nullCache) Delete(context.Context, string) error { return nil }

func (nullCache) Close() error { return nil }

// Enabled reports whether c can hold entries. Callers use it to skip
// hashing and encoding work whose only purpose is a cache key or value.
func Enabled(c Cache) bool {
	if c == nil {
		return false
	}
	_, null := c.(nullCache)
	return !null
}
