// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package models

import (
	"encoding/json"
	"time"
)

// UnknownIP is used when no client address can be derived from the request
const UnknownIP = "unknown"

// Poll creation limits
const (
	MaxQuestionLength = 500
	MaxOptionLength   = 200
	MinOptions        = 2
	MaxOptions        = 10
)

// Socket event types
const (
	EventJoinPoll   = "joinPoll"
	EventLeavePoll  = "leavePoll"
	EventVote       = "vote"
	EventVoteUpdate = "voteUpdate"
	EventError      = "error"
)

// Identity is the (ip, fingerprint) pair used to recognize a repeat voter.
// Either component matching an earlier vote blocks a second one.
type Identity struct {
	IP          string `json:"-"`
	Fingerprint string `json:"-"`
}

// Request types

type CreatePollRequest struct {
	Question string   `json:"question"`
	Options  []string `json:"options"`
}

type VoteRequest struct {
	PollID      string `json:"pollId"`
	OptionID    string `json:"optionId"`
	Fingerprint string `json:"fingerprint"`
}

// Domain types

type Poll struct {
	ID         string    `json:"id"`
	Question   string    `json:"question"`
	Options    []Option  `json:"options"`
	TotalVotes int       `json:"totalVotes"`
	CreatedAt  time.Time `json:"createdAt"`
}

type Option struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	VoteCount int    `json:"voteCount"`
}

type Vote struct {
	ID          string    `json:"id"`
	PollID      string    `json:"pollId"`
	OptionID    string    `json:"optionId"`
	IP          string    `json:"-"` // salted hash, never exposed
	Fingerprint string    `json:"-"`
	VotedAt     time.Time `json:"votedAt"`
}

type OptionResult struct {
	OptionID   string  `json:"optionId"`
	Text       string  `json:"text"`
	VoteCount  int     `json:"voteCount"`
	Percentage float64 `json:"percentage"`
}

// PollResults is the aggregate snapshot returned to voters and pushed to viewers
type PollResults struct {
	Poll       Poll           `json:"poll"`
	Results    []OptionResult `json:"results"`
	TotalVotes int            `json:"totalVotes"`
	UserVote   *string        `json:"userVote"`
}

// Socket frames

// ClientEvent is a frame received from a socket subscriber
type ClientEvent struct {
	Type        string `json:"type"`
	PollID      string `json:"pollId"`
	OptionID    string `json:"optionId,omitempty"`
	Fingerprint string `json:"fingerprint,omitempty"`
}

// ServerEvent is a frame pushed to a socket subscriber
type ServerEvent struct {
	Type    string          `json:"type"`
	PollID  string          `json:"pollId,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message,omitempty"`
}

// Error responses

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

type RateLimitResponse struct {
	Error      string    `json:"error"`
	Message    string    `json:"message"`
	RetryAfter int       `json:"retryAfter"`
	Remaining  int       `json:"remaining"`
	ResetAt    time.Time `json:"resetAt"`
}
