package profile

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frameio/frameio-gateway/pkg/principal"
)

func testProfile(id string) Profile {
	return Profile{
		UserID:      id,
		DisplayName: "Asha Verma",
		OrgID:       "org-1",
		Role:        principal.RoleManager,
		Permissions: []principal.Permission{principal.PermManageUsers, principal.PermViewAnalytics},
		FetchedAt:   time.Now(),
	}
}

func TestCacheGetL1(t *testing.T) {
	cache, err := NewCache(8, time.Minute, nil, nil)
	require.NoError(t, err)

	ctx := context.Background()
	cache.Put(ctx, "u1", testProfile("u1"))

	got := cache.Get(ctx, "u1")
	require.NotNil(t, got)
	assert.Equal(t, "u1", got.UserID)
	assert.Equal(t, "Asha Verma", got.DisplayName)

	assert.Nil(t, cache.Get(ctx, "u2"))
}

func TestCacheRedisTier(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	cache, err := NewCache(8, time.Minute, client, nil)
	require.NoError(t, err)

	ctx := context.Background()
	cache.Put(ctx, "u1", testProfile("u1"))

	// Drop L1 to force the redis path.
	cache.l1.Remove("u1")

	got := cache.Get(ctx, "u1")
	require.NotNil(t, got)
	assert.Equal(t, "u1", got.UserID)

	// The redis hit re-warms L1.
	_, ok := cache.l1.Get("u1")
	assert.True(t, ok)
}

func TestCacheExpiry(t *testing.T) {
	cache, err := NewCache(8, 10*time.Millisecond, nil, nil)
	require.NoError(t, err)

	ctx := context.Background()
	cache.Put(ctx, "u1", testProfile("u1"))
	time.Sleep(20 * time.Millisecond)

	assert.Nil(t, cache.Get(ctx, "u1"), "expired entry must not be served as fresh")
	assert.NotNil(t, cache.Stale("u1"), "expired entry must stay reachable via Stale")
}

func TestCacheInvalidate(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	cache, err := NewCache(8, time.Minute, client, nil)
	require.NoError(t, err)

	ctx := context.Background()
	cache.Put(ctx, "u1", testProfile("u1"))
	cache.Invalidate(ctx, "u1")

	assert.Nil(t, cache.Get(ctx, "u1"))
	assert.Nil(t, cache.Stale("u1"))
	assert.False(t, mr.Exists(redisKey("u1")))
}
