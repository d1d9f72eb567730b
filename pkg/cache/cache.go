// Package cache provides the local persistent cache of a session.
//
// The sync engine stores one consolidated JSON blob of all four layers under
// a fixed key and reads it back when the remote store has nothing to offer.
// Backends:
//   - [FileCache]: one file per key under a directory (CLI default)
//   - [RedisCache]: a shared Redis instance
//   - [NullCache]: caching disabled
//
// [Scoped] prefixes keys so several projects can share one backend.
package cache

import (
	"context"
	"time"
)

// Cache is a byte-oriented key/value store with optional expiry.
type Cache interface {
	// Get returns the value stored under key. A missing or expired key is a
	// miss (false) without error.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A ttl of zero never expires.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}
