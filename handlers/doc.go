// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package handlers contains HTTP request handlers for the Quickly Vote API.

# Handler Types

Each handler is a struct with its dependencies and the config:

  - PollHandler: Poll creation and listing (PollStore)
  - VotingHandler: Vote submission (Voter)
  - ResultsHandler: Poll info with live results (Voter)

Handlers depend on small interfaces rather than the database, so the vote
ledger can be shared with the socket server:

	votingHandler := handlers.NewVotingHandler(ledger, cfg)

# Voting Flow

	POST /api/vote → SubmitVote

The voter identity is the salted hash of the client IP plus the
fingerprint from the request body. Ledger errors map to status codes:

	already voted   → 409
	poll not found  → 404
	invalid option  → 400
	rate limited    → 429 (Retry-After, X-RateLimit-Remaining, X-RateLimit-Reset)
	poll busy       → 503
	anything else   → 500

# Results

	GET /api/polls/{id} → GetPoll

Percentages are computed from the poll's totalVotes. When the
X-Fingerprint header matches a recorded vote, userVote holds its option.
*/
package handlers
