package db

import (
	"bytes"
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is used when the configured size is not positive.
const DefaultCacheSize = 256

// CachedKV is a read-through LRU cache in front of another KV.
// Cached values are copied in and out so callers cannot mutate them.
type CachedKV struct {
	next  KV
	cache *lru.Cache[string, []byte]
}

// NewCachedKV wraps next with an LRU holding up to size entries.
func NewCachedKV(next KV, size int) (*CachedKV, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, []byte](size)
	if err != nil {
		return nil, err
	}
	return &CachedKV{next: next, cache: cache}, nil
}

// Get implements KV.
func (c *CachedKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if v, ok := c.cache.Get(key); ok {
		return bytes.Clone(v), true, nil
	}
	v, found, err := c.next.Get(ctx, key)
	if err != nil || !found {
		return v, found, err
	}
	c.cache.Add(key, bytes.Clone(v))
	return v, true, nil
}

// Set implements KV. The cache is only updated after the write succeeds.
func (c *CachedKV) Set(ctx context.Context, key string, value []byte) error {
	if err := c.next.Set(ctx, key, value); err != nil {
		c.cache.Remove(key)
		return err
	}
	c.cache.Add(key, bytes.Clone(value))
	return nil
}

// Delete implements KV.
func (c *CachedKV) Delete(ctx context.Context, key string) error {
	c.cache.Remove(key)
	return c.next.Delete(ctx, key)
}

// KeysWithPrefix implements KV. Listings always go to the backing store.
func (c *CachedKV) KeysWithPrefix(ctx context.Context, prefix string) ([]string, error) {
	return c.next.KeysWithPrefix(ctx, prefix)
}

// Len returns the number of cached entries.
func (c *CachedKV) Len() int {
	return c.cache.Len()
}
