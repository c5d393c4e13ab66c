// Package cache holds the Redis-backed read caches. Only the public
// status-page path uses it: slug lookups happen on every anonymous page
// load, and the organization row they resolve almost never changes.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/statusdeck/statusdeck/internal/models"
	"go.uber.org/zap"
)

const slugTTL = 5 * time.Minute

// SlugCache maps organization slugs to organization rows. Strictly best
// effort: any Redis failure is logged and treated as a miss, and the
// caller falls through to Postgres. A down Redis degrades latency, never
// correctness.
type SlugCache struct {
	client *redis.Client
	logger *zap.Logger
}

func NewSlugCache(redisURL string, logger *zap.Logger) (*SlugCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)

	// Connectivity is probed but not required at startup.
	if err := client.Ping(context.Background()).Err(); err != nil {
		logger.Warn("redis unreachable, slug cache will serve misses", zap.Error(err))
	}

	return &SlugCache{client: client, logger: logger}, nil
}

func (c *SlugCache) key(slug string) string {
	return "org:slug:" + slug
}

// GetOrganization returns the cached organization for slug, or nil on
// miss (including any Redis or decode failure).
func (c *SlugCache) GetOrganization(ctx context.Context, slug string) *models.Organization {
	raw, err := c.client.Get(ctx, c.key(slug)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Debug("slug cache get failed", zap.String("slug", slug), zap.Error(err))
		}
		return nil
	}

	var org models.Organization
	if err := json.Unmarshal(raw, &org); err != nil {
		c.logger.Debug("slug cache decode failed", zap.String("slug", slug), zap.Error(err))
		return nil
	}
	return &org
}

func (c *SlugCache) SetOrganization(ctx context.Context, org *models.Organization) {
	raw, err := json.Marshal(org)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, c.key(org.Slug), raw, slugTTL).Err(); err != nil {
		c.logger.Debug("slug cache set failed", zap.String("slug", org.Slug), zap.Error(err))
	}
}

// Invalidate drops a slug after the organization row changes (rename,
// re-slug). Called with the old slug.
func (c *SlugCache) Invalidate(ctx context.Context, slug string) {
	if err := c.client.Del(ctx, c.key(slug)).Err(); err != nil {
		c.logger.Debug("slug cache invalidate failed", zap.String("slug", slug), zap.Error(err))
	}
}

func (c *SlugCache) Close() error {
	return c.client.Close()
}
