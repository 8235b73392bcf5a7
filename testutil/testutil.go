// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package testutil

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/danielhkuo/quickly-vote/auth"
	"github.com/danielhkuo/quickly-vote/cliparse"
	"github.com/danielhkuo/quickly-vote/db"
	"github.com/danielhkuo/quickly-vote/models"
)

// TestSalt is the IP hash salt used by GetTestConfig
const TestSalt = "test-ip-salt"

// SetupTestDB creates a fresh sqlite database file with the full schema.
// The file lives in t.TempDir and is closed when the test ends.
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	url := "file:" + filepath.Join(t.TempDir(), "test.db")
	conn, err := db.Open(context.Background(), db.TypeSQLite, url)
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	if err := db.CreateSchema(conn); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}

	return conn
}

// GetTestConfig returns a standard test configuration
func GetTestConfig() cliparse.Config {
	return cliparse.Config{
		Port:            3318,
		DatabaseURL:     "file::memory:",
		DatabaseType:    db.TypeSQLite,
		IPHashSalt:      TestSalt,
		RateLimitWindow: 5 * time.Second,
		RateLimitMax:    1,
		SweepInterval:   10 * time.Minute,
		CommitTimeout:   2 * time.Second,
		LogLevel:        "info",
		AllowedOrigin:   "*",
	}
}

// CreateTestPoll inserts a poll with the given option texts and returns it
func CreateTestPoll(t *testing.T, conn *sql.DB, question string, options ...string) models.Poll {
	t.Helper()

	pollID, _ := auth.GenerateID(8)
	poll := models.Poll{
		ID:        pollID,
		Question:  question,
		CreatedAt: time.Now().UTC(),
	}

	_, err := conn.Exec(`
		INSERT INTO polls (id, question, total_votes, created_at)
		VALUES ($1, $2, 0, $3)
	`, poll.ID, poll.Question, poll.CreatedAt)
	if err != nil {
		t.Fatalf("Failed to create test poll: %v", err)
	}

	for i, text := range options {
		poll.Options = append(poll.Options, models.Option{
			ID:   AddTestOption(t, conn, pollID, i, text),
			Text: text,
		})
	}

	return poll
}

// AddTestOption adds an option at position and returns the option ID
func AddTestOption(t *testing.T, conn *sql.DB, pollID string, position int, text string) string {
	t.Helper()

	optionID, _ := auth.GenerateID(8)
	_, err := conn.Exec(`
		INSERT INTO poll_options (id, poll_id, position, text, vote_count)
		VALUES ($1, $2, $3, $4, 0)
	`, optionID, pollID, position, text)
	if err != nil {
		t.Fatalf("Failed to create test option: %v", err)
	}

	return optionID
}

// CountVoteRows returns the number of vote records for a poll
func CountVoteRows(t *testing.T, conn *sql.DB, pollID string) int {
	t.Helper()

	var n int
	if err := conn.QueryRow(`SELECT COUNT(*) FROM votes WHERE poll_id = $1`, pollID).Scan(&n); err != nil {
		t.Fatalf("Failed to count votes: %v", err)
	}
	return n
}

// AssertInvariant checks totalVotes == sum(voteCount) == count(votes) for a poll
func AssertInvariant(t *testing.T, conn *sql.DB, pollID string) {
	t.Helper()

	var total, sum int
	err := conn.QueryRow(`SELECT total_votes FROM polls WHERE id = $1`, pollID).Scan(&total)
	if err != nil {
		t.Fatalf("Failed to read poll total: %v", err)
	}
	err = conn.QueryRow(`SELECT COALESCE(SUM(vote_count), 0) FROM poll_options WHERE poll_id = $1`, pollID).Scan(&sum)
	if err != nil {
		t.Fatalf("Failed to sum option counts: %v", err)
	}
	rows := CountVoteRows(t, conn, pollID)

	if total != sum || sum != rows {
		t.Errorf("Invariant violated for poll %s: totalVotes=%d sum(voteCount)=%d votes=%d", pollID, total, sum, rows)
	}
}

// MakeRequest creates an HTTP test request
func MakeRequest(method, path string, body interface{}, headers map[string]string) *http.Request {
	var req *http.Request
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(jsonBody))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return req
}

// AssertStatus checks that the response has the expected status code
func AssertStatus(t *testing.T, w *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if w.Code != expected {
		t.Errorf("Expected status %d, got %d. Body: %s", expected, w.Code, w.Body.String())
	}
}

// AssertJSON decodes the response body into the provided struct
func AssertJSON(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode JSON response: %v", err)
	}
}
