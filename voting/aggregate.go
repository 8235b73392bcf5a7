// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package voting

import (
	"fmt"

	"github.com/danielhkuo/quickly-vote/models"
)

// Aggregate computes per-option counts and percentages of the poll total.
// Percentages are not rounded, so they may not sum to exactly 100.
func Aggregate(poll models.Poll) []models.OptionResult {
	results := make([]models.OptionResult, len(poll.Options))
	for i, opt := range poll.Options {
		var pct float64
		if poll.TotalVotes > 0 {
			pct = float64(opt.VoteCount) / float64(poll.TotalVotes) * 100
		}
		results[i] = models.OptionResult{
			OptionID:   opt.ID,
			Text:       opt.Text,
			VoteCount:  opt.VoteCount,
			Percentage: pct,
		}
	}
	return results
}

// Snapshot builds the results payload for poll; userVote may be nil
func Snapshot(poll models.Poll, userVote *string) models.PollResults {
	return models.PollResults{
		Poll:       poll,
		Results:    Aggregate(poll),
		TotalVotes: poll.TotalVotes,
		UserVote:   userVote,
	}
}

// CheckInvariant verifies totalVotes == sum(voteCount) == voteRows
func CheckInvariant(poll models.Poll, voteRows int) error {
	sum := 0
	for _, opt := range poll.Options {
		sum += opt.VoteCount
	}
	if poll.TotalVotes != sum || sum != voteRows {
		return fmt.Errorf("poll %s: totalVotes=%d sum(voteCount)=%d votes=%d", poll.ID, poll.TotalVotes, sum, voteRows)
	}
	return nil
}
