package cache

import (
	"context"
	"time"
)

// ScopedCache prefixes every key of an inner cache. The sync engine scopes
// its blob per project so two projects never read each other's layers.
//
//	c := cache.Scoped(fileCache, "project:"+cache.Hash([]byte(root))[:12]+":")
type ScopedCache struct {
	inner  Cache
	prefix string
}

// Scoped wraps inner so all keys get prefix. An empty prefix returns inner.
func Scoped(inner Cache, prefix string) Cache {
	if inner == nil {
		inner = NewNullCache()
	}
	if prefix == "" {
		return inner
	}
	return &ScopedCache{inner: inner, prefix: prefix}
}

// ProjectPrefix returns the key prefix used for a project root directory.
func ProjectPrefix(root string) string {
	if root == "" {
		return ""
	}
	return "project:" + Hash([]byte(root))[:16] + ":"
}

func (c *ScopedCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return c.inner.Get(ctx, c.prefix+key)
}

func (c *ScopedCache) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	return c.inner.Set(ctx, c.prefix+key, data, ttl)
}

func (c *ScopedCache) Delete(ctx context.Context, key string) error {
	return c.inner.Delete(ctx, c.prefix+key)
}

// Close closes the inner cache.
func (c *ScopedCache) Close() error { return c.inner.Close() }

var _ Cache = (*ScopedCache)(nil)
