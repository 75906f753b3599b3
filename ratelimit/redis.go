package ratelimit

import (
	"context"
	"fmt"
	"time"

	redislib "github.com/redis/go-redis/v9"
)

// slidingWindowScript prunes entries outside the window, counts the rest and
// admits atomically, so concurrent requests never undercount.
var slidingWindowScript = redislib.NewScript(`
local key = KEYS[1]
local counter_key = KEYS[2]
local now = tonumber(ARGV[1])
local window_start = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local window_ms = tonumber(ARGV[4])

redis.call('ZREMRANGEBYSCORE', key, '-inf', window_start)
local count = redis.call('ZCARD', key)

if count < limit then
	local counter = redis.call('INCR', counter_key)
	redis.call('ZADD', key, now, now .. ':' .. counter)
	redis.call('PEXPIRE', key, window_ms)
	redis.call('PEXPIRE', counter_key, window_ms)
	return {1, limit - count - 1, 0}
end

local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
local retry_after = 0
if #oldest >= 2 then
	retry_after = oldest[2] + window_ms - now
end
return {0, 0, retry_after}
`)

// SlidingWindow is a Redis-backed Limiter using a sorted set of request
// timestamps per key. Suitable when several instances share one budget.
type SlidingWindow struct {
	client *redislib.Client
	cfg    Config
	prefix string
}

func NewSlidingWindow(client *redislib.Client, cfg Config, prefix string) *SlidingWindow {
	if prefix == "" {
		prefix = "ratelimit:"
	}
	return &SlidingWindow{
		client: client,
		cfg:    cfg.withDefaults(),
		prefix: prefix,
	}
}

func (l *SlidingWindow) Allow(ctx context.Context, key string) (*Result, error) {
	now := time.Now()
	redisKey := l.prefix + key

	raw, err := slidingWindowScript.Run(ctx, l.client,
		[]string{redisKey, redisKey + ":counter"},
		now.UnixMilli(),
		now.Add(-l.cfg.Window).UnixMilli(),
		l.cfg.Budget,
		l.cfg.Window.Milliseconds(),
	).Slice()
	if err != nil {
		return nil, fmt.Errorf("rate limit script: %w", err)
	}
	if len(raw) < 3 {
		return nil, fmt.Errorf("rate limit script returned %d values", len(raw))
	}

	allowed, ok := raw[0].(int64)
	if !ok {
		return nil, fmt.Errorf("unexpected type for allowed: %T", raw[0])
	}
	remaining, ok := raw[1].(int64)
	if !ok {
		return nil, fmt.Errorf("unexpected type for remaining: %T", raw[1])
	}
	retryAfterMs, ok := raw[2].(int64)
	if !ok {
		return nil, fmt.Errorf("unexpected type for retry_after: %T", raw[2])
	}

	result := &Result{
		Allowed:   allowed == 1,
		Limit:     l.cfg.Budget,
		Remaining: int(remaining),
		ResetAt:   now.Add(l.cfg.Window),
	}
	if !result.Allowed && retryAfterMs > 0 {
		result.RetryAfter = time.Duration(retryAfterMs) * time.Millisecond
	}
	return result, nil
}
