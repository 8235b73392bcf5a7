// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// KeyPrefix namespaces limiter keys in a shared Redis
const KeyPrefix = "ratelimit:"

// The first hit in a window sets the expiry; the TTL is the time left in the window.
var fixedWindow = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
	ttl = tonumber(ARGV[1])
end
return {count, ttl}
`)

// Redis is a fixed-window limiter whose table lives in Redis, so several
// processes share one view of each key. Expiry replaces the sweep.
type Redis struct {
	client redis.Scripter
	cfg    Config
}

func NewRedis(client redis.Scripter, cfg Config) (*Redis, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Redis{client: client, cfg: cfg.withDefaults()}, nil
}

func (l *Redis) Check(ctx context.Context, key string) (Result, error) {
	now := l.cfg.Now()

	vals, err := fixedWindow.Run(ctx, l.client, []string{KeyPrefix + key}, l.cfg.Window.Milliseconds()).Int64Slice()
	if err != nil {
		return Result{}, fmt.Errorf("rate limit check failed: %w", err)
	}
	if len(vals) != 2 {
		return Result{}, fmt.Errorf("rate limit check failed: unexpected reply %v", vals)
	}

	count, ttl := int(vals[0]), time.Duration(vals[1])*time.Millisecond
	res := Result{
		Allowed: count <= l.cfg.MaxRequests,
		ResetAt: now.Add(ttl),
	}
	if res.Allowed {
		res.Remaining = l.cfg.MaxRequests - count
	}

	return res, nil
}

// ParseRedisURL builds a client from a redis:// or rediss:// URL
func ParseRedisURL(url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	return redis.NewClient(opt), nil
}
