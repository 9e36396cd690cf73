package rbac

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const closureVersionKey = "authz:closure:version"

// ClosureCache memoizes role closures in Redis with a versioned key scheme.
// Every policy mutation bumps the global version, so a closure computed
// before a write is never served after the write acknowledges. A nil client
// degrades to direct resolution. Concurrent misses for the same key are
// collapsed through singleflight.
type ClosureCache struct {
	client *redis.Client
	ttl    time.Duration
	inner  RoleResolver
	group  singleflight.Group
}

// NewClosureCache wraps inner with a Redis cache.
func NewClosureCache(client *redis.Client, ttl time.Duration, inner RoleResolver) *ClosureCache {
	return &ClosureCache{client: client, ttl: ttl, inner: inner}
}

func (c *ClosureCache) version(ctx context.Context) (int64, error) {
	ver, err := c.client.Get(ctx, closureVersionKey).Int64()
	if err == redis.Nil {
		if err := c.client.Set(ctx, closureVersionKey, 1, 0).Err(); err != nil {
			return 0, err
		}
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	return ver, nil
}

// Bump invalidates every cached closure by incrementing the version.
func (c *ClosureCache) Bump(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Incr(ctx, closureVersionKey).Err()
}

// ImplicitRoles serves the closure from cache, falling back to the inner
// resolver on miss or on any cache error.
func (c *ClosureCache) ImplicitRoles(ctx context.Context, user, domain string) (map[string]struct{}, error) {
	if c.client == nil {
		return c.inner.ImplicitRoles(ctx, user, domain)
	}

	ver, err := c.version(ctx)
	if err != nil {
		return c.inner.ImplicitRoles(ctx, user, domain)
	}
	key := fmt.Sprintf("authz:closure:%d:%q:%q", ver, domain, user)

	payload, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var roles []string
		if err := json.Unmarshal(payload, &roles); err == nil {
			return toSet(roles), nil
		}
	}

	result, err, _ := c.group.Do(key, func() (any, error) {
		closure, err := c.inner.ImplicitRoles(ctx, user, domain)
		if err != nil {
			return nil, err
		}
		roles := make([]string, 0, len(closure))
		for role := range closure {
			roles = append(roles, role)
		}
		if raw, err := json.Marshal(roles); err == nil {
			_ = c.client.Set(ctx, key, raw, c.ttl).Err()
		}
		return closure, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(map[string]struct{}), nil
}

func toSet(roles []string) map[string]struct{} {
	set := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		set[role] = struct{}{}
	}
	return set
}

var _ RoleResolver = (*ClosureCache)(nil)
