// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package cliparse handles command-line argument parsing and configuration.

# Configuration

ParseFlags returns a Config struct with all settings:

	cfg, err := cliparse.ParseFlags(os.Args[1:])

Values are resolved in order: CLI flag, environment, .env file, default.
A missing .env file is not an error.

# Config Fields

  - Port: Server listen port (default: 3318)
  - DatabaseURL: sqlite file DSN or PostgreSQL connection string (required)
  - DatabaseType: sqlite (default) or postgres
  - IPHashSalt: Secret for voter IP hashing (required)
  - RateLimitWindow: fixed window length (default: 5s)
  - RateLimitMax: requests allowed per window per ip+poll (default: 1)
  - SweepInterval: how often expired limiter entries are evicted (default: 10m)
  - CommitTimeout: max wait for a poll's commit lock (default: 2s)
  - RedisURL: optional, moves the limiter table into Redis
  - LogLevel: debug, info, warn, error (default: info)
  - AllowedOrigin: CORS origin, "*" reflects the caller (default: *)

# CLI Flags

	-p               Server port
	-d               Database URL
	-t               Database type
	-ip-salt         IP hash salt
	-rate-window     Rate limit window
	-rate-max        Requests per window
	-sweep           Sweep interval
	-commit-timeout  Commit lock timeout
	-redis           Redis URL
	-log-level       Log level
	-origin          Allowed CORS origin

# Environment Variables

	PORT                       → -p
	DATABASE_URL               → -d
	DATABASE_TYPE              → -t
	IP_HASH_SALT               → -ip-salt
	RATE_LIMIT_WINDOW          → -rate-window
	RATE_LIMIT_MAX             → -rate-max
	RATE_LIMIT_SWEEP_INTERVAL  → -sweep
	COMMIT_TIMEOUT             → -commit-timeout
	REDIS_URL                  → -redis
	LOG_LEVEL                  → -log-level
	ALLOWED_ORIGIN             → -origin

# Validation

ParseFlags returns an error if:

  - DATABASE_URL is missing
  - IP_HASH_SALT is missing
  - the database type is not sqlite or postgres
  - window, max, sweep interval or commit timeout is not positive
  - the log level is not recognized
*/
package cliparse
