// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package router defines HTTP routes for the Quickly Vote API.

# Route Registration

NewRouter creates a configured http.ServeMux with all endpoints:

	mux := router.NewRouter(db, cfg, limiter, hub)

The limiter and hub are created by the caller so their background loops
(expired-entry sweep, topic shutdown) can be run alongside the server.

# Endpoints

Health:

	GET /health

Polls:

	POST /api/polls      - Create poll with its options
	GET  /api/polls      - List recent polls (?limit=1..100)
	GET  /api/polls/{id} - Poll with live results (X-Fingerprint fills userVote)

Voting:

	POST /api/vote - Cast a vote (rate limited per IP and poll)

Live results:

	GET /ws - WebSocket; joinPoll, leavePoll and vote frames

# Handler Initialization

The router builds one store and one vote ledger and shares them:

	pollStore := store.New(db)
	ledger := voting.NewLedger(pollStore, voting.Options{...})
	votingHandler := handlers.NewVotingHandler(ledger, cfg)
	socketServer := ws.NewServer(hub, ledger, cfg.IPHashSalt, cfg.AllowedOrigin, logger)

HTTP votes and socket votes go through the same ledger, so both paths see
the same duplicate checks, rate limits and broadcasts.
*/
package router
