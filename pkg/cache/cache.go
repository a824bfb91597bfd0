// Package cache stores derived artifacts of the planning pipeline.
//
// Plans and rendered graphs are deterministic functions of their input
// graphs, so they can be cached by content hash. The package provides a
// [Cache] interface with three backends:
//
//   - [FileCache]: one file per entry below a directory, for CLI use
//   - [RedisCache]: a shared Redis instance, for hosts that plan repeatedly
//   - [NullCache]: stores nothing
//
// Keys are produced by a [Keyer]. [DefaultKeyer] hashes the key options;
// [ScopedKeyer] prefixes every key, e.g. with a session id.
//
//	c, _ := cache.NewFileCache(dir)
//	key := cache.NewDefaultKeyer().PlanKey(lhsHash, rhsHash)
//	data, hit, err := c.Get(ctx, key)
package cache

import (
	"context"
	"time"
)

// Cache is a byte-oriented key/value store with optional expiry.
type Cache interface {
	// Get returns the stored value and true, or nil and false on a miss.
	// Expired entries are misses.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A ttl of zero means no expiry.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}

// Clearer is implemented by caches that can drop every entry at once.
type Clearer interface {
	// Clear removes all entries and returns how many were removed.
	Clear(ctx context.Context) (int, error)
}

// NullCache never stores anything.
type NullCache struct{}

// NewNullCache returns a cache for which every lookup misses.
func NewNullCache() Cache { return NullCache{} }

func (NullCache) Get(context.Context, string) ([]byte, bool, error)        { return nil, false, nil }
func (NullCache) Set(context.Context, string, []byte, time.Duration) error { return nil }
func (NullCache) Delete(context.Context, string) error                     { return nil }
func (NullCache) Close() error                                             { return nil }

var _ Cache = NullCache{}
