package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(t *testing.T, limit int) (*RateLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)

	client, err := NewClient(context.Background(), Config{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return NewRateLimiter(client, RateLimitConfig{RequestLimit: limit, RequestWindow: time.Minute}), mr
}

func TestRateLimiterAllowsUpToLimit(t *testing.T) {
	limiter, _ := newTestLimiter(t, 3)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res, err := limiter.AllowRequest(ctx, "10.0.0.1")
		require.NoError(t, err)
		assert.True(t, res.Allowed)
		assert.Equal(t, 2-i, res.Remaining)
		assert.Equal(t, 3, res.Limit)
	}

	res, err := limiter.AllowRequest(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Zero(t, res.Remaining)

	// other clients have their own window
	res, err = limiter.AllowRequest(ctx, "10.0.0.2")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestRateLimiterWindowExpires(t *testing.T) {
	limiter, mr := newTestLimiter(t, 1)
	ctx := context.Background()

	res, err := limiter.AllowRequest(ctx, "10.0.0.1")
	require.NoError(t, err)
	require.True(t, res.Allowed)
	assert.Equal(t, time.Minute, mr.TTL("ratelimit:10.0.0.1:requests"))

	res, err = limiter.AllowRequest(ctx, "10.0.0.1")
	require.NoError(t, err)
	require.False(t, res.Allowed)

	mr.FastForward(61 * time.Second)

	res, err = limiter.AllowRequest(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestRateLimiterReset(t *testing.T) {
	limiter, _ := newTestLimiter(t, 1)
	ctx := context.Background()

	_, err := limiter.AllowRequest(ctx, "10.0.0.1")
	require.NoError(t, err)
	require.NoError(t, limiter.Reset(ctx, "10.0.0.1"))

	res, err := limiter.AllowRequest(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestNewClientFailsWithoutServer(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewClient(context.Background(), Config{Addr: addr})
	assert.Error(t, err)
}
