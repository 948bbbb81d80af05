package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/adsync-core/internal/core/domain"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestConnect(t *testing.T) {
	mr, _ := setupTestRedis(t)

	client, err := Connect(context.Background(), "redis://"+mr.Addr()+"/0")
	require.NoError(t, err)
	defer client.Close()
	assert.NoError(t, client.Ping(context.Background()).Err())
}

func TestConnect_InvalidURL(t *testing.T) {
	_, err := Connect(context.Background(), "not-a-url")
	assert.Error(t, err)
}

func TestLock_AcquireRelease(t *testing.T) {
	_, client := setupTestRedis(t)
	ctx := context.Background()
	first := NewLock(client)
	second := NewLock(client)

	assert.NotEqual(t, first.OwnerID(), second.OwnerID())

	ok, err := first.Acquire(ctx, "sync-sweep", 10*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = second.Acquire(ctx, "sync-sweep", 10*time.Second)
	require.NoError(t, err)
	assert.False(t, ok, "held lock cannot be taken by another instance")

	// A foreign release leaves the lock in place
	require.NoError(t, second.Release(ctx, "sync-sweep"))
	ok, err = second.Acquire(ctx, "sync-sweep", 10*time.Second)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, first.Release(ctx, "sync-sweep"))
	ok, err = second.Acquire(ctx, "sync-sweep", 10*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLock_ReleaseNotHeld(t *testing.T) {
	_, client := setupTestRedis(t)
	assert.NoError(t, NewLock(client).Release(context.Background(), "missing"))
}

func TestLock_Expires(t *testing.T) {
	mr, client := setupTestRedis(t)
	ctx := context.Background()
	first := NewLock(client)
	second := NewLock(client)

	ok, err := first.Acquire(ctx, "sync-sweep", 5*time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(6 * time.Second)

	ok, err = second.Acquire(ctx, "sync-sweep", 5*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLock_Extend(t *testing.T) {
	mr, client := setupTestRedis(t)
	ctx := context.Background()
	first := NewLock(client)
	second := NewLock(client)

	ok, err := first.Acquire(ctx, "sync-sweep", 5*time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, first.Extend(ctx, "sync-sweep", time.Minute))
	assert.Equal(t, time.Minute, mr.TTL(lockPrefix+"sync-sweep"))

	err = second.Extend(ctx, "sync-sweep", time.Minute)
	assert.ErrorIs(t, err, ErrLockNotHeld)
}

func TestLock_Ping(t *testing.T) {
	_, client := setupTestRedis(t)
	assert.NoError(t, NewLock(client).Ping(context.Background()))
}

func TestResponseCache_RoundTrip(t *testing.T) {
	mr, client := setupTestRedis(t)
	cache := NewResponseCache(client, nil)
	ctx := context.Background()
	params := map[string]string{"campaign_id": "c1", "date_preset": "last_30d"}

	_, ok := cache.Get(ctx, domain.EndpointInsights, params)
	assert.False(t, ok)

	require.NoError(t, cache.Set(ctx, domain.EndpointInsights, params, []byte(`{"data":[]}`)))

	got, ok := cache.Get(ctx, domain.EndpointInsights, map[string]string{"date_preset": "last_30d", "campaign_id": " c1 "})
	require.True(t, ok)
	assert.Equal(t, []byte(`{"data":[]}`), got)

	assert.Equal(t, time.Hour, mr.TTL(redisKey(domain.EndpointInsights, params)))
}

func TestResponseCache_Expiry(t *testing.T) {
	mr, client := setupTestRedis(t)
	cache := NewResponseCache(client, nil)
	ctx := context.Background()
	params := map[string]string{"account_id": "act_1"}

	require.NoError(t, cache.Set(ctx, domain.EndpointCampaigns, params, []byte("campaigns")))

	mr.FastForward(time.Hour + 59*time.Minute)
	_, ok := cache.Get(ctx, domain.EndpointCampaigns, params)
	assert.True(t, ok, "structural entries live for two hours")

	mr.FastForward(2 * time.Minute)
	_, ok = cache.Get(ctx, domain.EndpointCampaigns, params)
	assert.False(t, ok)
}

func TestResponseCache_Clear(t *testing.T) {
	_, client := setupTestRedis(t)
	cache := NewResponseCache(client, nil)
	ctx := context.Background()

	insightA := map[string]string{"campaign_id": "a"}
	insightB := map[string]string{"campaign_id": "b"}
	campaigns := map[string]string{"account_id": "act_1"}
	for _, p := range []map[string]string{insightA, insightB} {
		require.NoError(t, cache.Set(ctx, domain.EndpointInsights, p, []byte("x")))
	}
	require.NoError(t, cache.Set(ctx, domain.EndpointCampaigns, campaigns, []byte("y")))

	require.NoError(t, cache.Clear(ctx, domain.EndpointInsights, insightA))
	_, ok := cache.Get(ctx, domain.EndpointInsights, insightA)
	assert.False(t, ok)
	_, ok = cache.Get(ctx, domain.EndpointInsights, insightB)
	assert.True(t, ok)

	require.NoError(t, cache.Clear(ctx, domain.EndpointInsights, nil))
	_, ok = cache.Get(ctx, domain.EndpointInsights, insightB)
	assert.False(t, ok)
	_, ok = cache.Get(ctx, domain.EndpointCampaigns, campaigns)
	assert.True(t, ok, "other classes survive a class clear")

	require.NoError(t, cache.Set(ctx, domain.EndpointInsights, insightA, []byte("x")))
	require.NoError(t, cache.Clear(ctx, "", nil))
	_, ok = cache.Get(ctx, domain.EndpointCampaigns, campaigns)
	assert.False(t, ok)
	_, ok = cache.Get(ctx, domain.EndpointInsights, insightA)
	assert.False(t, ok)
}

func TestResponseCache_ClearKeepsForeignKeys(t *testing.T) {
	mr, client := setupTestRedis(t)
	cache := NewResponseCache(client, nil)
	ctx := context.Background()

	require.NoError(t, mr.Set("other:key", "v"))
	require.NoError(t, cache.Clear(ctx, "", nil))
	assert.True(t, mr.Exists("other:key"))
}
