package redisx

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestClaim_FirstCallerWins(t *testing.T) {
	mr, rdb := setupTestRedis(t)
	ctx := context.Background()
	key := fmt.Sprintf(KeyDedup, "relay", "evt-1")

	ok, err := Claim(ctx, rdb, key, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = Claim(ctx, rdb, key, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	mr.FastForward(2 * time.Minute)
	ok, err = Claim(ctx, rdb, key, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "claim must be reusable after ttl")
}
