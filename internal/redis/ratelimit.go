package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Key pattern: ratelimit:{ip}:requests, expiring with the window.

type RateLimitConfig struct {
	RequestLimit  int           // Max requests per window
	RequestWindow time.Duration // Request rate limit window
}

func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestLimit:  300,
		RequestWindow: 60 * time.Second,
	}
}

// RateLimiter counts requests per client in fixed windows stored in Redis, so
// the limit holds across every API instance sharing the same Redis.
type RateLimiter struct {
	client *goredis.Client
	config RateLimitConfig
}

type RateLimitResult struct {
	Allowed   bool
	Remaining int
	ResetIn   time.Duration
	Limit     int
}

var limitScript = goredis.NewScript(`
	local key = KEYS[1]
	local limit = tonumber(ARGV[1])
	local window = tonumber(ARGV[2])

	local current = redis.call('GET', key)
	if current == false then
		current = 0
	else
		current = tonumber(current)
	end

	local ttl = redis.call('TTL', key)
	if ttl < 0 then
		ttl = window
	end

	if current < limit then
		redis.call('INCR', key)
		if ttl == window then
			redis.call('EXPIRE', key, window)
		end
		return {1, limit - current - 1, ttl}
	else
		return {0, 0, ttl}
	end
`)

func NewRateLimiter(client *goredis.Client, config RateLimitConfig) *RateLimiter {
	if config.RequestLimit <= 0 {
		config.RequestLimit = DefaultRateLimitConfig().RequestLimit
	}
	if config.RequestWindow <= 0 {
		config.RequestWindow = DefaultRateLimitConfig().RequestWindow
	}
	return &RateLimiter{
		client: client,
		config: config,
	}
}

// AllowRequest checks and consumes one request for ip.
func (r *RateLimiter) AllowRequest(ctx context.Context, ip string) (*RateLimitResult, error) {
	return r.checkLimit(ctx, requestKey(ip), r.config.RequestLimit, r.config.RequestWindow)
}

// Reset clears the counter of ip.
func (r *RateLimiter) Reset(ctx context.Context, ip string) error {
	return r.client.Del(ctx, requestKey(ip)).Err()
}

func (r *RateLimiter) checkLimit(ctx context.Context, key string, limit int, window time.Duration) (*RateLimitResult, error) {
	result, err := limitScript.Run(ctx, r.client, []string{key}, limit, int(window.Seconds())).Result()
	if err != nil {
		return nil, fmt.Errorf("rate limit check failed: %w", err)
	}

	values, ok := result.([]interface{})
	if !ok || len(values) < 3 {
		return nil, fmt.Errorf("unexpected rate limit result format")
	}
	allowed, ok1 := values[0].(int64)
	remaining, ok2 := values[1].(int64)
	ttl, ok3 := values[2].(int64)
	if !ok1 || !ok2 || !ok3 {
		return nil, fmt.Errorf("unexpected rate limit result format")
	}

	return &RateLimitResult{
		Allowed:   allowed == 1,
		Remaining: int(remaining),
		ResetIn:   time.Duration(ttl) * time.Second,
		Limit:     limit,
	}, nil
}

func requestKey(ip string) string {
	return fmt.Sprintf("ratelimit:%s:requests", ip)
}
