package httpapi

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ReadinessCache is a read-through cache in front of the Tenants Manifest
// Store for GET /readiness/{tenant_slug}: readiness polling is bursty
// around onboarding (a client polling every second or two until a tenant
// goes active) and the manifest store's authoritative read shouldn't take
// that traffic directly.
type ReadinessCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewReadinessCache wraps an already-configured redis client. ttl bounds
// how stale a cached readiness status may be before falling back to TMS.
func NewReadinessCache(rdb *redis.Client, ttl time.Duration) *ReadinessCache {
	return &ReadinessCache{rdb: rdb, ttl: ttl}
}

func readinessKey(tenantSlug string) string {
	return "control-plane:readiness:" + tenantSlug
}

// Get returns the cached status for tenantSlug, or ok=false on a cache miss.
func (c *ReadinessCache) Get(ctx context.Context, tenantSlug string) (status string, ok bool, err error) {
	val, err := c.rdb.Get(ctx, readinessKey(tenantSlug)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading readiness cache for %s: %w", tenantSlug, err)
	}
	return val, true, nil
}

// Set caches status for tenantSlug for the configured TTL.
func (c *ReadinessCache) Set(ctx context.Context, tenantSlug, status string) error {
	if err := c.rdb.Set(ctx, readinessKey(tenantSlug), status, c.ttl).Err(); err != nil {
		return fmt.Errorf("writing readiness cache for %s: %w", tenantSlug, err)
	}
	return nil
}
