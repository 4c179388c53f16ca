package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Ramsey-B/fern/pkg/metrics"
)

const DefaultRoleCacheTTL = 15 * time.Minute

// RoleCache keeps the role names resolved for a session.
type RoleCache struct {
	client    *Client
	keyPrefix string
	ttl       time.Duration
}

func NewRoleCache(client *Client, ttl time.Duration) *RoleCache {
	if ttl <= 0 {
		ttl = DefaultRoleCacheTTL
	}
	return &RoleCache{
		client:    client,
		keyPrefix: "roles:",
		ttl:       ttl,
	}
}

// Get returns the cached roles of session. ok is false on a miss.
func (c *RoleCache) Get(ctx context.Context, session string) (roles []string, ok bool, err error) {
	raw, err := c.client.rdb.Get(ctx, c.keyPrefix+session).Bytes()
	if errors.Is(err, redis.Nil) {
		metrics.RoleCacheLookupsTotal.WithLabelValues("miss").Inc()
		return nil, false, nil
	}
	if err != nil {
		metrics.RoleCacheLookupsTotal.WithLabelValues("error").Inc()
		return nil, false, err
	}

	if err := json.Unmarshal(raw, &roles); err != nil {
		c.client.logger.WithContext(ctx).WithError(err).WithField("session", session).Warn("discarding unreadable role cache entry")
		metrics.RoleCacheLookupsTotal.WithLabelValues("error").Inc()
		return nil, false, nil
	}
	if roles == nil {
		roles = []string{}
	}
	metrics.RoleCacheLookupsTotal.WithLabelValues("hit").Inc()
	return roles, true, nil
}

func (c *RoleCache) Set(ctx context.Context, session string, roles []string) error {
	if roles == nil {
		roles = []string{}
	}
	raw, err := json.Marshal(roles)
	if err != nil {
		return err
	}
	return c.client.rdb.Set(ctx, c.keyPrefix+session, raw, c.ttl).Err()
}

// Invalidate drops the cached roles of session.
func (c *RoleCache) Invalidate(ctx context.Context, session string) error {
	return c.client.rdb.Del(ctx, c.keyPrefix+session).Err()
}
