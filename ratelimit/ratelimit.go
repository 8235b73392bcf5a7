// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package ratelimit

import (
	"context"
	"errors"
	"math"
	"time"
)

// Defaults tuned for one vote attempt per identity per poll
const (
	DefaultWindow        = 5 * time.Second
	DefaultMaxRequests   = 1
	DefaultSweepInterval = 10 * time.Minute
	DefaultShards        = 32
)

var ErrInvalidConfig = errors.New("invalid rate limit config")

// Config configures a limiter. Zero fields take the defaults above.
type Config struct {
	Window        time.Duration
	MaxRequests   int
	SweepInterval time.Duration
	Shards        int

	// Now overrides the clock (tests)
	Now func() time.Time
}

func (c Config) withDefaults() Config {
	if c.Window == 0 {
		c.Window = DefaultWindow
	}
	if c.MaxRequests == 0 {
		c.MaxRequests = DefaultMaxRequests
	}
	if c.SweepInterval == 0 {
		c.SweepInterval = DefaultSweepInterval
	}
	if c.Shards <= 0 {
		c.Shards = DefaultShards
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

func (c Config) validate() error {
	if c.Window < 0 || c.MaxRequests < 0 || c.SweepInterval < 0 {
		return ErrInvalidConfig
	}
	return nil
}

// Result is the outcome of one Check
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// RetryAfter is the whole number of seconds until ResetAt, rounded up.
// A denied result never reports less than one second.
func (r Result) RetryAfter(now time.Time) int {
	secs := int(math.Ceil(r.ResetAt.Sub(now).Seconds()))
	if !r.Allowed && secs < 1 {
		return 1
	}
	if secs < 0 {
		return 0
	}
	return secs
}

// Limiter gates requests per key
type Limiter interface {
	Check(ctx context.Context, key string) (Result, error)
}

// Key builds the limiter key for an identity's IP and a poll
func Key(ip, pollID string) string {
	return ip + ":" + pollID
}
