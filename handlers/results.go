// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/danielhkuo/quickly-vote/cliparse"
	"github.com/danielhkuo/quickly-vote/middleware"
	"github.com/danielhkuo/quickly-vote/voting"
)

type ResultsHandler struct {
	voter Voter
	cfg   cliparse.Config
}

func NewResultsHandler(voter Voter, cfg cliparse.Config) *ResultsHandler {
	return &ResultsHandler{voter: voter, cfg: cfg}
}

// GetPoll handles GET /api/polls/{id}
// Returns the poll with live results. When X-Fingerprint identifies a voter,
// userVote holds the option they chose.
func (h *ResultsHandler) GetPoll(w http.ResponseWriter, r *http.Request) {
	pollID := r.PathValue("id")
	if pollID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "id is required")
		return
	}

	fingerprint := strings.TrimSpace(r.Header.Get("X-Fingerprint"))

	snapshot, err := h.voter.Results(r.Context(), pollID, fingerprint)
	if errors.Is(err, voting.ErrNotFound) {
		middleware.ErrorResponse(w, http.StatusNotFound, "Poll not found")
		return
	}
	if err != nil {
		slog.Error("failed to load poll results", "error", err, "poll_id", pollID)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to fetch poll")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, snapshot)
}
