package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/spinwheel/internal/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisLimiter(t *testing.T) (*RedisLimiter, *clock.FakeClock, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	clk := clock.NewFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	return NewRedisLimiter(client, clk, "test:"), clk, srv
}

func TestRedisLimiterSlidingWindow(t *testing.T) {
	limiter, clk, _ := newTestRedisLimiter(t)
	ctx := context.Background()
	key := Fingerprint("203.0.113.7")

	for i := 0; i < 10; i++ {
		d, err := limiter.Admit(ctx, key, testPolicy)
		require.NoError(t, err)
		require.True(t, d.Allowed, "request %d", i+1)
		assert.Equal(t, 9-i, d.Remaining)
	}

	d, err := limiter.Admit(ctx, key, testPolicy)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)
	assert.Equal(t, 60*time.Second, d.RetryAfter)

	clk.Advance(61 * time.Second)
	d, err = limiter.Admit(ctx, key, testPolicy)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestRedisLimiterUsesPrefixAndExpiry(t *testing.T) {
	limiter, _, srv := newTestRedisLimiter(t)

	_, err := limiter.Admit(context.Background(), "abc", testPolicy)
	require.NoError(t, err)

	assert.True(t, srv.Exists("test:abc"))
	assert.Equal(t, 60*time.Second, srv.TTL("test:abc"))
}

func TestRedisLimiterRejectedRequestsAreNotRecorded(t *testing.T) {
	limiter, _, srv := newTestRedisLimiter(t)
	ctx := context.Background()
	policy := Policy{Limit: 1, Window: time.Minute}

	d, err := limiter.Admit(ctx, "k", policy)
	require.NoError(t, err)
	require.True(t, d.Allowed)

	for i := 0; i < 3; i++ {
		d, err = limiter.Admit(ctx, "k", policy)
		require.NoError(t, err)
		assert.False(t, d.Allowed)
	}

	members, err := srv.ZMembers("test:k")
	require.NoError(t, err)
	assert.Len(t, members, 1)
}
