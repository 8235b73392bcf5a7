// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/danielhkuo/quickly-vote/cliparse"
	"github.com/danielhkuo/quickly-vote/middleware"
	"github.com/danielhkuo/quickly-vote/models"
	"github.com/danielhkuo/quickly-vote/store"
)

// maxListLimit caps ?limit= on GET /api/polls
const maxListLimit = 100

// PollStore is the poll storage the handlers use
type PollStore interface {
	CreatePoll(ctx context.Context, question string, options []string) (models.Poll, error)
	ListPolls(ctx context.Context, limit int) ([]models.Poll, error)
}

type PollHandler struct {
	store PollStore
	cfg   cliparse.Config
}

func NewPollHandler(store PollStore, cfg cliparse.Config) *PollHandler {
	return &PollHandler{store: store, cfg: cfg}
}

// CreatePoll handles POST /api/polls
func (h *PollHandler) CreatePoll(w http.ResponseWriter, r *http.Request) {
	var req models.CreatePollRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	poll, err := h.store.CreatePoll(r.Context(), req.Question, req.Options)
	if errors.Is(err, store.ErrInvalidPoll) {
		middleware.ErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		slog.Error("failed to create poll", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create poll")
		return
	}

	slog.Info("poll created", "poll_id", poll.ID, "options", len(poll.Options))

	middleware.JSONResponse(w, http.StatusCreated, poll)
}

// ListPolls handles GET /api/polls
// Returns the most recent polls, newest first (default 20)
func (h *PollHandler) ListPolls(w http.ResponseWriter, r *http.Request) {
	limit := store.DefaultListLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > maxListLimit {
			middleware.ErrorResponse(w, http.StatusBadRequest, "limit must be between 1 and "+strconv.Itoa(maxListLimit))
			return
		}
		limit = n
	}

	polls, err := h.store.ListPolls(r.Context(), limit)
	if err != nil {
		slog.Error("failed to list polls", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to fetch polls")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, polls)
}
