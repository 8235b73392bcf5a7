// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package voting

import (
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"

	"github.com/danielhkuo/quickly-vote/ratelimit"
)

var (
	ErrNotFound       = errors.New("poll not found")
	ErrInvalidOption  = errors.New("option does not belong to poll")
	ErrAlreadyVoted   = errors.New("already voted in this poll")
	ErrRateLimited    = errors.New("too many requests")
	ErrStorageFailure = errors.New("storage failure")

	// ErrBusy is returned when the poll's commit lock cannot be taken in time.
	// It is a StorageFailure: transient, nothing was written.
	ErrBusy = fmt.Errorf("poll is busy: %w", ErrStorageFailure)
)

// RateLimitError carries the limiter verdict for a rejected attempt
type RateLimitError struct {
	Result ratelimit.Result
}

func (e *RateLimitError) Error() string {
	return ErrRateLimited.Error()
}

func (e *RateLimitError) Is(target error) bool {
	return target == ErrRateLimited
}

// Message is the caller-facing text for a Submit or Results error
func Message(err error) string {
	var rl *RateLimitError
	switch {
	case errors.As(err, &rl):
		return "Too many requests. Please wait before voting again (retry " + humanize.Time(rl.Result.ResetAt) + ")"
	case errors.Is(err, ErrAlreadyVoted):
		return "You have already voted in this poll"
	case errors.Is(err, ErrNotFound):
		return "Poll not found"
	case errors.Is(err, ErrInvalidOption):
		return "Invalid option for this poll"
	case errors.Is(err, ErrBusy):
		return "Poll is busy, please try again"
	}
	return "Failed to record vote"
}
