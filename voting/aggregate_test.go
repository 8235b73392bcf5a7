// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package voting

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/danielhkuo/quickly-vote/models"
	"github.com/danielhkuo/quickly-vote/ratelimit"
)

func pollWithCounts(counts ...int) models.Poll {
	poll := models.Poll{ID: "p"}
	for i, c := range counts {
		poll.Options = append(poll.Options, models.Option{
			ID:        string(rune('a' + i)),
			Text:      string(rune('A' + i)),
			VoteCount: c,
		})
		poll.TotalVotes += c
	}
	return poll
}

func TestAggregate(t *testing.T) {
	tests := []struct {
		name     string
		counts   []int
		expected []float64
	}{
		{"three to one", []int{3, 1}, []float64{75.0, 25.0}},
		{"no votes", []int{0, 0}, []float64{0, 0}},
		{"unanimous", []int{0, 5, 0}, []float64{0, 100, 0}},
		{"thirds", []int{1, 1, 1}, []float64{100.0 / 3, 100.0 / 3, 100.0 / 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results := Aggregate(pollWithCounts(tt.counts...))
			if len(results) != len(tt.expected) {
				t.Fatalf("expected %d results, got %d", len(tt.expected), len(results))
			}
			for i, r := range results {
				if math.Abs(r.Percentage-tt.expected[i]) > 1e-9 {
					t.Errorf("option %d: expected %.4f%%, got %.4f%%", i, tt.expected[i], r.Percentage)
				}
				if r.VoteCount != tt.counts[i] {
					t.Errorf("option %d: expected count %d, got %d", i, tt.counts[i], r.VoteCount)
				}
			}
		})
	}
}

func TestAggregate_SumWithinDrift(t *testing.T) {
	results := Aggregate(pollWithCounts(1, 1, 1, 4, 7))
	sum := 0.0
	for _, r := range results {
		sum += r.Percentage
	}
	if math.Abs(sum-100) > 0.01 {
		t.Errorf("percentages sum to %.6f, outside 0.01 of 100", sum)
	}
}

func TestSnapshot(t *testing.T) {
	poll := pollWithCounts(2, 2)
	choice := "a"

	snap := Snapshot(poll, &choice)
	if snap.TotalVotes != 4 {
		t.Errorf("expected total 4, got %d", snap.TotalVotes)
	}
	if snap.UserVote == nil || *snap.UserVote != "a" {
		t.Errorf("expected userVote a, got %v", snap.UserVote)
	}
	if len(snap.Results) != 2 || snap.Results[0].Percentage != 50 {
		t.Errorf("unexpected results: %+v", snap.Results)
	}

	if Snapshot(poll, nil).UserVote != nil {
		t.Error("expected nil userVote")
	}
}

func TestCheckInvariant(t *testing.T) {
	poll := pollWithCounts(3, 1)

	if err := CheckInvariant(poll, 4); err != nil {
		t.Errorf("expected invariant to hold: %v", err)
	}
	if err := CheckInvariant(poll, 5); err == nil {
		t.Error("expected mismatch with vote rows")
	}

	poll.TotalVotes = 3
	if err := CheckInvariant(poll, 4); err == nil {
		t.Error("expected mismatch with total")
	}
}

func TestMessage(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		contains string
	}{
		{"rate limited", &RateLimitError{Result: ratelimit.Result{ResetAt: time.Now().Add(4 * time.Second)}}, "from now"},
		{"already voted", ErrAlreadyVoted, "already voted"},
		{"not found", ErrNotFound, "not found"},
		{"invalid option", ErrInvalidOption, "Invalid option"},
		{"busy", ErrBusy, "busy"},
		{"storage", ErrStorageFailure, "Failed to record vote"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Message(tt.err); !strings.Contains(got, tt.contains) {
				t.Errorf("Message(%v) = %q, want it to contain %q", tt.err, got, tt.contains)
			}
		})
	}
}
