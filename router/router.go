// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package router

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/danielhkuo/quickly-vote/broadcast"
	"github.com/danielhkuo/quickly-vote/cliparse"
	"github.com/danielhkuo/quickly-vote/handlers"
	"github.com/danielhkuo/quickly-vote/middleware"
	"github.com/danielhkuo/quickly-vote/ratelimit"
	"github.com/danielhkuo/quickly-vote/store"
	"github.com/danielhkuo/quickly-vote/voting"
	"github.com/danielhkuo/quickly-vote/ws"
)

// NewRouter wires storage, the vote ledger and the socket server onto one mux.
// The limiter and hub are owned by the caller, which runs their background work.
func NewRouter(db *sql.DB, cfg cliparse.Config, limiter ratelimit.Limiter, hub *broadcast.Hub) *http.ServeMux {
	mux := http.NewServeMux()

	pollStore := store.New(db)
	ledger := voting.NewLedger(pollStore, voting.Options{
		Limiter:       limiter,
		Publisher:     hub,
		CommitTimeout: cfg.CommitTimeout,
		Logger:        slog.Default(),
	})

	// Initialize handlers
	pollHandler := handlers.NewPollHandler(pollStore, cfg)
	votingHandler := handlers.NewVotingHandler(ledger, cfg)
	resultsHandler := handlers.NewResultsHandler(ledger, cfg)
	socketServer := ws.NewServer(hub, ledger, cfg.IPHashSalt, cfg.AllowedOrigin, slog.Default())

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Voting
	mux.HandleFunc("POST /api/vote", middleware.WithLogging(votingHandler.SubmitVote))

	// Polls
	mux.HandleFunc("POST /api/polls", middleware.WithLogging(pollHandler.CreatePoll))
	mux.HandleFunc("GET /api/polls", middleware.WithLogging(pollHandler.ListPolls))
	mux.HandleFunc("GET /api/polls/{id}", middleware.WithLogging(resultsHandler.GetPoll))

	// Live results
	mux.Handle("GET /ws", socketServer)

	// Root endpoint
	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("quickly-vote API v1"))
	})

	return mux
}
