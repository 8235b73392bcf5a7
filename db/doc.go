// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package db handles database connections and schema creation.

# Connecting

	conn, err := db.Open(ctx, cfg.DatabaseType, cfg.DatabaseURL)

Supported types are "sqlite" (modernc.org/sqlite, pure Go, the default) and
"postgres" (lib/pq). SQLite DSNs get busy_timeout and foreign_keys pragmas
unless the caller already set pragmas, and the pool is capped at one
connection.

# Schema Creation

	if err := db.CreateSchema(conn); err != nil {
		log.Fatal(err)
	}

Safe to call multiple times - uses IF NOT EXISTS for all tables and indexes.
The same DDL runs on both databases; no column relies on a server-side
default timestamp.

# Tables

  - polls: question, maintained total_votes, created_at
  - poll_options: ordered options with maintained vote_count
  - votes: one immutable row per accepted vote

# Relationships

	polls 1──* poll_options
	polls 1──* votes
	poll_options 1──* votes

All foreign keys use ON DELETE CASCADE.

# Constraints

votes carries UNIQUE (poll_id, ip_hash) and UNIQUE (poll_id, fingerprint).
These are the final gate for one vote per identity when several processes
share a database.
*/
package db
