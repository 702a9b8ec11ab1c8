package session

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}

	rdb := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = rdb.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not reachable: %v", err)
	}

	return rdb
}

func TestRedisRegistry_Lifecycle(t *testing.T) {
	rdb := newTestRedis(t)
	ctx := context.Background()
	r := NewRedisRegistry(rdb, plainDigest{})
	userID := uuid.NewString()
	t.Cleanup(func() { _ = r.DropAll(ctx, userID) })

	exp := time.Now().Add(time.Hour)
	require.NoError(t, r.Record(ctx, userID, "t1", exp))
	require.NoError(t, r.Record(ctx, userID, "t2", exp))

	ok, err := r.IsActive(ctx, userID, "t1")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, r.Revoke(ctx, userID, "t1"))
	ok, _ = r.IsActive(ctx, userID, "t1")
	assert.False(t, ok)
	ok, _ = r.IsActive(ctx, userID, "t2")
	assert.True(t, ok)

	ttl, err := rdb.TTL(ctx, userKey(userID)).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0), "entry must expire on its own")

	require.NoError(t, r.RevokeAll(ctx, userID))
	ok, _ = r.IsActive(ctx, userID, "t2")
	assert.False(t, ok)
}

func TestRedisRegistry_ConcurrentRecord(t *testing.T) {
	rdb := newTestRedis(t)
	ctx := context.Background()
	r := NewRedisRegistry(rdb, plainDigest{})
	userID := uuid.NewString()
	t.Cleanup(func() { _ = r.DropAll(ctx, userID) })

	exp := time.Now().Add(time.Hour)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = r.Record(ctx, userID, fmt.Sprintf("t%d", i), exp)
		}(i)
	}
	wg.Wait()

	n, err := rdb.ZCard(ctx, userKey(userID)).Result()
	require.NoError(t, err)
	assert.EqualValues(t, 50, n)
}
