package profile

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/frameio/frameio-gateway/pkg/observability"
)

// Cache is the two-tier profile cache: an in-process LRU in front of an
// optional shared Redis tier. Entries carry their own expiry; a stale
// entry is still returned by Stale() so failed refreshes can fall back
// to the previous value instead of dropping the caller's role.
type Cache struct {
	l1      *lru.Cache[string, cachedProfile]
	redis   *redis.Client
	ttl     time.Duration
	metrics *observability.Metrics
}

type cachedProfile struct {
	Profile   Profile   `json:"profile"`
	ExpiresAt time.Time `json:"expires_at"`
}

// NewCache creates the cache. redisClient may be nil for single-instance
// deployments.
func NewCache(size int, ttl time.Duration, redisClient *redis.Client, metrics *observability.Metrics) (*Cache, error) {
	if size <= 0 {
		size = 1024
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	l1, err := lru.New[string, cachedProfile](size)
	if err != nil {
		return nil, err
	}
	return &Cache{
		l1:      l1,
		redis:   redisClient,
		ttl:     ttl,
		metrics: metrics,
	}, nil
}

func redisKey(principalID string) string {
	return "frameio:profile:" + principalID
}

// Get returns a fresh cached profile, or nil on miss/expiry
func (c *Cache) Get(ctx context.Context, principalID string) *Profile {
	if entry, ok := c.l1.Get(principalID); ok {
		if time.Now().Before(entry.ExpiresAt) {
			c.hit("l1")
			p := entry.Profile
			return &p
		}
	}
	c.miss("l1")

	if c.redis == nil {
		return nil
	}

	raw, err := c.redis.Get(ctx, redisKey(principalID)).Bytes()
	if err != nil {
		c.miss("l2")
		return nil
	}
	var entry cachedProfile
	if err := json.Unmarshal(raw, &entry); err != nil || !time.Now().Before(entry.ExpiresAt) {
		c.miss("l2")
		return nil
	}
	c.hit("l2")
	c.l1.Add(principalID, entry)
	p := entry.Profile
	return &p
}

// Stale returns the most recent cached profile regardless of expiry.
// Used when a refresh fails and the previous role must survive.
func (c *Cache) Stale(principalID string) *Profile {
	if entry, ok := c.l1.Get(principalID); ok {
		p := entry.Profile
		return &p
	}
	return nil
}

// Put stores a profile in both tiers
func (c *Cache) Put(ctx context.Context, principalID string, p Profile) {
	entry := cachedProfile{Profile: p, ExpiresAt: time.Now().Add(c.ttl)}
	c.l1.Add(principalID, entry)

	if c.redis == nil {
		return
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		return
	}
	// Redis TTL slightly beyond the logical expiry so Stale-style reads
	// on other instances can still see the entry briefly
	c.redis.Set(ctx, redisKey(principalID), raw, c.ttl+time.Minute)
}

// Invalidate removes a principal's profile from both tiers
func (c *Cache) Invalidate(ctx context.Context, principalID string) {
	c.l1.Remove(principalID)
	if c.redis != nil {
		c.redis.Del(ctx, redisKey(principalID))
	}
}

func (c *Cache) hit(tier string) {
	if c.metrics != nil {
		c.metrics.ProfileCacheHitsTotal.WithLabelValues(tier).Inc()
	}
}

func (c *Cache) miss(tier string) {
	if c.metrics != nil {
		c.metrics.ProfileCacheMissesTotal.WithLabelValues(tier).Inc()
	}
}
