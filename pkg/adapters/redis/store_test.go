package redis_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/palette/pkg/adapters/redis"
	"github.com/aretw0/palette/pkg/domain"
	"github.com/aretw0/palette/pkg/ports"
	"github.com/aretw0/palette/pkg/recency"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T) (*miniredis.Miniredis, *backend.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisStore_Contract(t *testing.T) {
	_, client := newClient(t)
	ports.RunRecencyStoreContract(t, redis.NewFromClient(client))
}

func TestRedisStore_TTL_Expiration(t *testing.T) {
	mr, client := newClient(t)
	store := redis.NewFromClient(client, redis.WithTTL(time.Second))
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, []domain.RecentUsage{{ID: "cmd.clear", Timestamp: 1}}))
	got, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	mr.FastForward(2 * time.Second)

	got, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRedisStore_KeyLayout(t *testing.T) {
	mr, client := newClient(t)
	store := redis.NewFromClient(client, redis.WithPrefix("app:"), redis.WithName("alice"))

	require.NoError(t, store.Save(context.Background(), []domain.RecentUsage{{ID: "cmd.clear", Timestamp: 1}}))

	assert.Equal(t, "app:recent:alice", store.Key())
	assert.True(t, mr.Exists("app:recent:alice"))
}

func TestRedisStore_CorruptValue(t *testing.T) {
	mr, client := newClient(t)
	store := redis.NewFromClient(client)
	require.NoError(t, mr.Set(store.Key(), "not json"))

	_, err := store.Load(context.Background())
	assert.Error(t, err)
}

func TestRedisStore_SharedTrackers(t *testing.T) {
	_, client := newClient(t)
	store := redis.NewFromClient(client)
	locker := redis.NewLocker(client, redis.DefaultPrefix)
	ctx := context.Background()

	tabs := []*recency.Tracker{
		recency.NewTracker(store, recency.WithLocker(locker)),
		recency.NewTracker(store, recency.WithLocker(locker)),
		recency.NewTracker(store, recency.WithLocker(locker)),
	}

	var wg sync.WaitGroup
	for i, tab := range tabs {
		wg.Add(1)
		go func(id string, tab *recency.Tracker) {
			defer wg.Done()
			assert.NoError(t, tab.MarkUsed(ctx, id))
		}([]string{"cmd.a", "cmd.b", "cmd.c"}[i], tab)
	}
	wg.Wait()

	got, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 3)
}
