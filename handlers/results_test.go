// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/danielhkuo/quickly-vote/models"
	"github.com/danielhkuo/quickly-vote/testutil"
)

func getPoll(h *ResultsHandler, pollID, fingerprint string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("GET", "/api/polls/"+pollID, nil)
	req.SetPathValue("id", pollID)
	if fingerprint != "" {
		req.Header.Set("X-Fingerprint", fingerprint)
	}
	w := httptest.NewRecorder()
	h.GetPoll(w, req)
	return w
}

func TestGetPoll(t *testing.T) {
	env := setupHandlers(t, nil)
	poll := testutil.CreateTestPoll(t, env.db, "Lunch?", "Pizza", "Sushi")

	// Three votes for Pizza, one for Sushi
	voters := []struct {
		fp, ip string
		option int
	}{
		{"fp-1", "192.0.2.1", 0},
		{"fp-2", "192.0.2.2", 0},
		{"fp-3", "192.0.2.3", 0},
		{"fp-4", "192.0.2.4", 1},
	}
	for _, v := range voters {
		w := postVote(env.voting, models.VoteRequest{
			PollID:      poll.ID,
			OptionID:    poll.Options[v.option].ID,
			Fingerprint: v.fp,
		}, v.ip)
		testutil.AssertStatus(t, w, http.StatusCreated)
	}

	tests := []struct {
		name           string
		pollID         string
		fingerprint    string
		expectedStatus int
		expectedVote   *string
	}{
		{
			name:           "anonymous viewer",
			pollID:         poll.ID,
			expectedStatus: http.StatusOK,
		},
		{
			name:           "voter sees own choice",
			pollID:         poll.ID,
			fingerprint:    "fp-4",
			expectedStatus: http.StatusOK,
			expectedVote:   &poll.Options[1].ID,
		},
		{
			name:           "unknown fingerprint",
			pollID:         poll.ID,
			fingerprint:    "fp-unknown",
			expectedStatus: http.StatusOK,
		},
		{
			name:           "poll not found",
			pollID:         "nonexistent",
			expectedStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := getPoll(env.results, tt.pollID, tt.fingerprint)

			testutil.AssertStatus(t, w, tt.expectedStatus)
			if tt.expectedStatus != http.StatusOK {
				return
			}

			var res models.PollResults
			testutil.AssertJSON(t, w, &res)

			if res.TotalVotes != 4 || res.Poll.TotalVotes != 4 {
				t.Errorf("Expected totalVotes 4, got %d (poll %d)", res.TotalVotes, res.Poll.TotalVotes)
			}
			if len(res.Results) != 2 {
				t.Fatalf("Expected 2 results, got %d", len(res.Results))
			}
			if res.Results[0].Percentage != 75 || res.Results[1].Percentage != 25 {
				t.Errorf("Expected 75/25, got %v/%v", res.Results[0].Percentage, res.Results[1].Percentage)
			}
			if res.Results[0].Text != "Pizza" || res.Results[0].VoteCount != 3 {
				t.Errorf("Unexpected first result %+v", res.Results[0])
			}

			switch {
			case tt.expectedVote == nil && res.UserVote != nil:
				t.Errorf("Expected no userVote, got %s", *res.UserVote)
			case tt.expectedVote != nil && (res.UserVote == nil || *res.UserVote != *tt.expectedVote):
				t.Errorf("Expected userVote %s, got %v", *tt.expectedVote, res.UserVote)
			}
		})
	}
}

func TestGetPoll_NoVotes(t *testing.T) {
	env := setupHandlers(t, nil)
	poll := testutil.CreateTestPoll(t, env.db, "Q", "A", "B", "C")

	w := getPoll(env.results, poll.ID, "")
	testutil.AssertStatus(t, w, http.StatusOK)

	var res models.PollResults
	testutil.AssertJSON(t, w, &res)

	if res.TotalVotes != 0 {
		t.Errorf("Expected totalVotes 0, got %d", res.TotalVotes)
	}
	for _, r := range res.Results {
		if r.Percentage != 0 {
			t.Errorf("Expected 0%% for %s, got %v", r.Text, r.Percentage)
		}
	}
}

func TestGetPoll_StorageError(t *testing.T) {
	h := NewResultsHandler(stubVoter{err: errors.New("db down")}, testutil.GetTestConfig())

	w := getPoll(h, "p", "")

	testutil.AssertStatus(t, w, http.StatusInternalServerError)
}
