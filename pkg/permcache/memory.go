package permcache

import (
	"context"
	"path"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// DefaultMemoryCacheSize bounds the in-process backend so a busy workspace
// cannot grow it without limit.
const DefaultMemoryCacheSize = 16384

// MemoryBackend implements Backend with an in-process expirable LRU. Meant
// for single-process deployments and tests; the TTL is fixed per cache, so
// the per-call TTL on Set is ignored.
type MemoryBackend struct {
	lru *expirable.LRU[string, string]
}

// NewMemoryBackend creates an in-process backend. size <= 0 falls back to
// DefaultMemoryCacheSize.
func NewMemoryBackend(size int, ttl time.Duration) *MemoryBackend {
	if size <= 0 {
		size = DefaultMemoryCacheSize
	}
	return &MemoryBackend{lru: expirable.NewLRU[string, string](size, nil, ttl)}
}

// Get returns the stored value and whether the key was present.
func (b *MemoryBackend) Get(ctx context.Context, key string) (string, bool, error) {
	val, ok := b.lru.Get(key)
	return val, ok, nil
}

// Set stores a value. The cache-wide TTL applies; the argument is ignored.
func (b *MemoryBackend) Set(ctx context.Context, key, value string, _ time.Duration) error {
	b.lru.Add(key, value)
	return nil
}

// ScanKeys returns every key matching a glob pattern.
func (b *MemoryBackend) ScanKeys(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	for _, key := range b.lru.Keys() {
		if ok, err := path.Match(pattern, key); err == nil && ok {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

// Del removes keys, returning how many existed.
func (b *MemoryBackend) Del(ctx context.Context, keys ...string) (int64, error) {
	var n int64
	for _, key := range keys {
		if b.lru.Remove(key) {
			n++
		}
	}
	return n, nil
}

// Close is a no-op for the in-process backend.
func (b *MemoryBackend) Close() error {
	return nil
}
