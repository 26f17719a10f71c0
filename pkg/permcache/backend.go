package permcache

import (
	"context"
	"time"
)

// Backend is the minimal key-value contract the cache needs. The redis
// backend is the production implementation; the in-memory backend serves
// single-process deployments and tests.
type Backend interface {
	// Get returns the stored value and whether the key was present.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set stores a value with a TTL.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// ScanKeys returns every key matching a glob pattern.
	ScanKeys(ctx context.Context, pattern string) ([]string, error)

	// Del removes keys, returning how many existed.
	Del(ctx context.Context, keys ...string) (int64, error)

	// Close releases backend resources.
	Close() error
}
