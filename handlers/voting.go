// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/danielhkuo/quickly-vote/auth"
	"github.com/danielhkuo/quickly-vote/cliparse"
	"github.com/danielhkuo/quickly-vote/middleware"
	"github.com/danielhkuo/quickly-vote/models"
	"github.com/danielhkuo/quickly-vote/voting"
)

// Voter is the vote path the HTTP boundary depends on
type Voter interface {
	Submit(ctx context.Context, pollID, optionID string, identity models.Identity) (models.PollResults, error)
	Results(ctx context.Context, pollID, fingerprint string) (models.PollResults, error)
}

type VotingHandler struct {
	voter Voter
	cfg   cliparse.Config
}

func NewVotingHandler(voter Voter, cfg cliparse.Config) *VotingHandler {
	return &VotingHandler{voter: voter, cfg: cfg}
}

// SubmitVote handles POST /api/vote
func (h *VotingHandler) SubmitVote(w http.ResponseWriter, r *http.Request) {
	var req models.VoteRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	pollID := strings.TrimSpace(req.PollID)
	optionID := strings.TrimSpace(req.OptionID)
	if pollID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "pollId is required")
		return
	}
	if optionID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "optionId is required")
		return
	}

	identity, err := auth.ResolveIdentity(r, req.Fingerprint, h.cfg.IPHashSalt)
	if err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	snapshot, err := h.voter.Submit(r.Context(), pollID, optionID, identity)
	if err != nil {
		writeVoteError(w, err, pollID)
		return
	}

	middleware.JSONResponse(w, http.StatusCreated, snapshot)
}

// writeVoteError maps ledger errors to HTTP responses
func writeVoteError(w http.ResponseWriter, err error, pollID string) {
	var rl *voting.RateLimitError
	if errors.As(err, &rl) {
		now := time.Now()
		retryAfter := rl.Result.RetryAfter(now)

		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(rl.Result.Remaining))
		w.Header().Set("X-RateLimit-Reset", rl.Result.ResetAt.UTC().Format(time.RFC3339))

		middleware.JSONResponse(w, http.StatusTooManyRequests, models.RateLimitResponse{
			Error:      http.StatusText(http.StatusTooManyRequests),
			Message:    voting.Message(err),
			RetryAfter: retryAfter,
			Remaining:  rl.Result.Remaining,
			ResetAt:    rl.Result.ResetAt.UTC(),
		})
		return
	}

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, voting.ErrAlreadyVoted):
		status = http.StatusConflict
	case errors.Is(err, voting.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, voting.ErrInvalidOption):
		status = http.StatusBadRequest
	case errors.Is(err, voting.ErrBusy):
		status = http.StatusServiceUnavailable
	default:
		slog.Error("failed to submit vote", "error", err, "poll_id", pollID)
	}

	middleware.ErrorResponse(w, status, voting.Message(err))
}
