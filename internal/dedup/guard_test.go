package dedup

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisGuard_FirstCallerWins(t *testing.T) {
	mr := miniredis.RunT(t)
	guard := &RedisGuard{Client: redis.NewClient(&redis.Options{Addr: mr.Addr()})}
	ctx := context.Background()

	seen, err := guard.Seen(ctx, "event:abc")
	require.NoError(t, err)
	assert.False(t, seen)

	seen, err = guard.Seen(ctx, "event:abc")
	require.NoError(t, err)
	assert.True(t, seen)

	// Different keys are independent.
	seen, err = guard.Seen(ctx, "event:def")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestRedisGuard_KeysExpire(t *testing.T) {
	mr := miniredis.RunT(t)
	guard := &RedisGuard{Client: redis.NewClient(&redis.Options{Addr: mr.Addr()})}
	ctx := context.Background()

	_, err := guard.Seen(ctx, "event:abc")
	require.NoError(t, err)

	mr.FastForward(keyTTL * 2)

	seen, err := guard.Seen(ctx, "event:abc")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestNopGuard(t *testing.T) {
	seen, err := NopGuard{}.Seen(context.Background(), "anything")
	require.NoError(t, err)
	assert.False(t, seen)
}
