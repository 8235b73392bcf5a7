// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package models defines request, response, domain, and socket event types.

# Request Types

Types for parsing incoming JSON:

  - CreatePollRequest: question, options
  - VoteRequest: pollId, optionId, fingerprint

# Domain Types

  - Identity: (ip, fingerprint) pair recognizing a repeat voter
  - Poll: question, ordered options, totalVotes
  - Option: option text with its maintained voteCount
  - Vote: immutable record, the source of truth for one-vote-per-identity
  - OptionResult: per-option count and percentage
  - PollResults: the snapshot {poll, results, totalVotes, userVote}

The central invariant is

	poll.TotalVotes == sum(option.VoteCount) == count(votes for poll)

# Socket Events

Subscribers send ClientEvent frames (joinPoll, leavePoll, vote) and receive
ServerEvent frames (voteUpdate, error).

# Error Types

  - ErrorResponse: error, message
  - RateLimitResponse: error, message, retryAfter, remaining, resetAt
*/
package models
