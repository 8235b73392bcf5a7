// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package ratelimit throttles vote attempts per identity and poll.

# Fixed Window

Each key gets a window of Config.Window. The first request opens it, later
requests count against Config.MaxRequests, and once the window has ended the
next request opens a fresh one:

	res, err := limiter.Check(ctx, ratelimit.Key(identity.IP, pollID))
	if !res.Allowed {
		retry := res.RetryAfter(time.Now()) // whole seconds, at least 1
	}

Defaults are one request per 5 seconds, deliberately strict: the limiter
guards a single vote attempt, not general API traffic.

# Memory

Memory keeps entries in 32 independently locked shards keyed by xxhash.
Expired entries are replaced lazily by Check and evicted by a periodic sweep
owned by the limiter:

	limiter, err := ratelimit.NewMemory(cfg, logger)
	go limiter.Run(ctx) // sweeps every SweepInterval until ctx is done

# Redis

Redis stores the same counters in a shared Redis with key expiry, for
deployments that run more than one process:

	client, _ := ratelimit.ParseRedisURL(cfg.RedisURL)
	limiter, err := ratelimit.NewRedis(client, rlCfg)
*/
package ratelimit
