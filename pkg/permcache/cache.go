package permcache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/platinummonkey/gatehouse/pkg/catalog"
	"github.com/platinummonkey/gatehouse/pkg/observability"
)

const (
	// PermissionTTL is how long a cached decision stays valid without any
	// invalidation event.
	PermissionTTL = 5 * time.Minute

	// DeleteBatchSize bounds each delete command during invalidation so a
	// large workspace never produces one giant multi-key delete.
	DeleteBatchSize = 100

	keyPrefix = "perm"

	cachedGranted = "1"
	cachedDenied  = "0"

	// writeTimeout bounds the detached write-back and invalidation calls.
	writeTimeout = 5 * time.Second
)

// Checker is the authoritative decision source consulted on a miss.
type Checker interface {
	CheckPermission(ctx context.Context, userID, workspaceID string, resource catalog.ResourceType, permission catalog.Permission) (bool, error)
}

// Cache is a read-through cache over a Checker. It also implements the
// invalidation hooks the role and matrix services call after mutations.
type Cache struct {
	backend Backend
	checker Checker
	group   singleflight.Group
	metrics *observability.Metrics
	log     *observability.Logger
}

// New creates a permission cache. metrics and log may be nil.
func New(backend Backend, checker Checker, metrics *observability.Metrics, log *observability.Logger) *Cache {
	if metrics == nil {
		metrics = observability.NopMetrics()
	}
	if log == nil {
		log = observability.NewLogger(observability.InfoLevel, nil)
	}
	return &Cache{backend: backend, checker: checker, metrics: metrics, log: log}
}

// Check answers a permission question, consulting the backend first. A
// backend read failure is counted and treated as a miss. Concurrent misses
// for the same key collapse into one engine call; the write-back happens
// off the request path and its failure is only logged.
func (c *Cache) Check(ctx context.Context, userID, workspaceID string, resource catalog.ResourceType, permission catalog.Permission) (bool, error) {
	start := time.Now()
	key := permissionKey(workspaceID, userID, resource, permission)

	val, ok, err := c.backend.Get(ctx, key)
	if err != nil {
		c.metrics.CacheErrorsTotal.WithLabelValues("get").Inc()
		c.log.WithError(err).WithField("key", key).Warn("cache read failed, falling through to engine")
	} else if ok {
		granted := val == cachedGranted
		c.metrics.CacheHitsTotal.Inc()
		c.metrics.ChecksTotal.WithLabelValues(resultLabel(granted), "cache").Inc()
		c.metrics.CheckDuration.WithLabelValues("cache").Observe(time.Since(start).Seconds())
		return granted, nil
	}
	c.metrics.CacheMissesTotal.Inc()

	res, err, _ := c.group.Do(key, func() (interface{}, error) {
		granted, err := c.checker.CheckPermission(ctx, userID, workspaceID, resource, permission)
		if err != nil {
			return false, err
		}
		c.writeBack(key, granted)
		return granted, nil
	})
	if err != nil {
		return false, err
	}
	return res.(bool), nil
}

// writeBack stores a decision without blocking the caller.
func (c *Cache) writeBack(key string, granted bool) {
	val := cachedDenied
	if granted {
		val = cachedGranted
	}
	backend := c.backend
	log := c.log
	metrics := c.metrics
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()
		if err := backend.Set(ctx, key, val, PermissionTTL); err != nil {
			metrics.CacheErrorsTotal.WithLabelValues("set").Inc()
			log.WithError(err).WithField("key", key).Warn("cache write failed")
		}
	}()
}

// InvalidateWorkspacePermissions removes every cached decision for a
// workspace. Backend failures are logged and swallowed: the TTL bounds
// staleness even when invalidation cannot run.
func (c *Cache) InvalidateWorkspacePermissions(ctx context.Context, workspaceID string) error {
	pattern := fmt.Sprintf("%s:%s:*", keyPrefix, sanitizeKeyPart(workspaceID))
	c.invalidatePattern(ctx, pattern, "workspace")
	return nil
}

// InvalidateUserPermissions removes cached decisions for a user across all
// workspaces.
func (c *Cache) InvalidateUserPermissions(ctx context.Context, userID string) error {
	pattern := fmt.Sprintf("%s:*:%s:*", keyPrefix, sanitizeKeyPart(userID))
	c.invalidatePattern(ctx, pattern, "user")
	return nil
}

// InvalidateUserWorkspacePermissions removes cached decisions for one user
// in one workspace.
func (c *Cache) InvalidateUserWorkspacePermissions(ctx context.Context, workspaceID, userID string) error {
	pattern := fmt.Sprintf("%s:%s:%s:*", keyPrefix, sanitizeKeyPart(workspaceID), sanitizeKeyPart(userID))
	c.invalidatePattern(ctx, pattern, "user_workspace")
	return nil
}

// InvalidateAll removes every cached permission decision.
func (c *Cache) InvalidateAll(ctx context.Context) error {
	c.invalidatePattern(ctx, keyPrefix+":*", "all")
	return nil
}

func (c *Cache) invalidatePattern(ctx context.Context, pattern, scope string) {
	keys, err := c.backend.ScanKeys(ctx, pattern)
	if err != nil {
		c.metrics.CacheErrorsTotal.WithLabelValues("scan").Inc()
		c.log.WithError(err).WithField("pattern", pattern).Warn("cache invalidation scan failed")
		return
	}
	c.metrics.CacheInvalidationsTotal.WithLabelValues(scope).Inc()

	for start := 0; start < len(keys); start += DeleteBatchSize {
		end := start + DeleteBatchSize
		if end > len(keys) {
			end = len(keys)
		}
		deleted, err := c.backend.Del(ctx, keys[start:end]...)
		if err != nil {
			c.metrics.CacheErrorsTotal.WithLabelValues("del").Inc()
			c.log.WithError(err).WithField("pattern", pattern).Warn("cache invalidation delete failed")
			return
		}
		c.metrics.CacheKeysDeletedTotal.Add(float64(deleted))
	}
}

// Close releases the backend.
func (c *Cache) Close() error {
	return c.backend.Close()
}

// permissionKey builds the deterministic cache key for one question.
func permissionKey(workspaceID, userID string, resource catalog.ResourceType, permission catalog.Permission) string {
	return strings.Join([]string{
		keyPrefix,
		sanitizeKeyPart(workspaceID),
		sanitizeKeyPart(userID),
		sanitizeKeyPart(string(resource)),
		sanitizeKeyPart(string(permission)),
	}, ":")
}

// sanitizeKeyPart strips the key separator and backend glob metacharacters
// so a crafted identifier can never widen a scan or collide with another
// key's structure.
func sanitizeKeyPart(part string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ':', '*', '?', '[', ']', '\\', ' ', '\t', '\n', '\r':
			return -1
		}
		return r
	}, part)
}

func resultLabel(granted bool) string {
	if granted {
		return "granted"
	}
	return "denied"
}
