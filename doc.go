// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package main provides the entry point for the Quickly Vote API server.

Quickly Vote is a single-choice polling service. Each voter (salted IP hash
plus browser fingerprint) gets one vote per poll, attempts are rate limited
per address, and live results are pushed to viewers over a WebSocket.

# Starting the Server

The server reads a .env file and environment variables, then CLI flags:

	IP_HASH_SALT=... DATABASE_URL=quickly-vote.db go run .

Or with flags:

	go run . -p 3318 -t postgres -d "postgres://..." -ip-salt ...

# Configuration

Required settings:

  - DATABASE_URL (-d): SQLite file path or PostgreSQL connection string
  - IP_HASH_SALT (-ip-salt): Secret for IP hashing

Optional settings:

  - PORT (-p): Server port (default: 3318)
  - DATABASE_TYPE (-t): sqlite or postgres (default: sqlite)
  - RATE_LIMIT_WINDOW (-rate-window): Window length (default: 5s)
  - RATE_LIMIT_MAX (-rate-max): Attempts per window (default: 1)
  - RATE_LIMIT_SWEEP_INTERVAL (-sweep): Expired entry sweep (default: 10m)
  - COMMIT_TIMEOUT (-commit-timeout): Per-poll lock wait (default: 2s)
  - REDIS_URL (-redis): Use Redis for rate limiting across instances
  - LOG_LEVEL (-log-level): debug, info, warn or error (default: info)
  - ALLOWED_ORIGIN (-origin): CORS and WebSocket origin (default: *)

# Architecture

  - handlers: HTTP request handlers (polls, voting, results)
  - router: Route definitions using Go 1.22+ routing
  - voting: Vote ledger (per-poll commit order, retries, aggregation)
  - store: Poll and vote persistence
  - ratelimit: Fixed-window limiter (memory or Redis)
  - broadcast: Per-poll fan-out of result snapshots
  - ws: WebSocket subscribers
  - middleware: CORS, logging, JSON helpers, client IP
  - models: Request/response and domain types
  - auth: IDs, IP hashing, voter identity
  - db: Connection and schema creation
  - cliparse: Configuration parsing

See package documentation for each component.
*/
package main
