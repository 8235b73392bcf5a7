// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package voting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/danielhkuo/quickly-vote/models"
	"github.com/danielhkuo/quickly-vote/ratelimit"
	"github.com/danielhkuo/quickly-vote/store"
)

// DefaultCommitTimeout bounds the wait for a poll's commit lock
const DefaultCommitTimeout = 2 * time.Second

// Repository is the storage the ledger commits through
type Repository interface {
	GetPoll(ctx context.Context, id string) (models.Poll, error)
	FindVote(ctx context.Context, pollID string, identity models.Identity) (*models.Vote, error)
	FindVoteByFingerprint(ctx context.Context, pollID, fingerprint string) (*models.Vote, error)
	CommitVote(ctx context.Context, vote models.Vote) error
}

// Publisher receives the snapshot of every committed vote
type Publisher interface {
	Publish(pollID string, snapshot models.PollResults)
}

type Options struct {
	// Limiter gates attempts before any storage access; nil disables it
	Limiter   ratelimit.Limiter
	Publisher Publisher

	CommitTimeout time.Duration
	Logger        *slog.Logger
	Now           func() time.Time
}

// pollLock is a one-slot semaphore; refs counts holders and waiters
type pollLock struct {
	sem  chan struct{}
	refs int
}

// Ledger serializes vote commits per poll and publishes the result of each
type Ledger struct {
	repo    Repository
	limiter ratelimit.Limiter
	pub     Publisher
	timeout time.Duration
	logger  *slog.Logger
	now     func() time.Time

	mu    sync.Mutex
	locks map[string]*pollLock
}

func NewLedger(repo Repository, opts Options) *Ledger {
	l := &Ledger{
		repo:    repo,
		limiter: opts.Limiter,
		pub:     opts.Publisher,
		timeout: opts.CommitTimeout,
		logger:  opts.Logger,
		now:     opts.Now,
		locks:   make(map[string]*pollLock),
	}
	if l.timeout <= 0 {
		l.timeout = DefaultCommitTimeout
	}
	if l.logger == nil {
		l.logger = slog.Default()
	}
	if l.now == nil {
		l.now = time.Now
	}
	return l
}

// Submit casts identity's vote for optionID in pollID.
//
// The rate limit is checked first. Then, holding the poll's commit lock,
// the poll and option are validated, earlier votes by either identity
// component are rejected, the vote is committed, and the post-commit
// snapshot is published before the lock is released. Publishes for one
// poll therefore happen in commit order.
func (l *Ledger) Submit(ctx context.Context, pollID, optionID string, identity models.Identity) (models.PollResults, error) {
	if err := l.checkLimit(ctx, pollID, identity); err != nil {
		return models.PollResults{}, err
	}

	unlock, err := l.lock(ctx, pollID)
	if err != nil {
		return models.PollResults{}, err
	}
	defer unlock()

	var poll models.Poll
	err = l.withRetry(ctx, "load poll", func() error {
		var err error
		poll, err = l.repo.GetPoll(ctx, pollID)
		return err
	})
	if err != nil {
		return models.PollResults{}, mapStoreErr(err)
	}

	if !hasOption(poll, optionID) {
		return models.PollResults{}, ErrInvalidOption
	}

	var existing *models.Vote
	err = l.withRetry(ctx, "find vote", func() error {
		var err error
		existing, err = l.repo.FindVote(ctx, pollID, identity)
		return err
	})
	if err != nil {
		return models.PollResults{}, mapStoreErr(err)
	}
	if existing != nil {
		return models.PollResults{}, ErrAlreadyVoted
	}

	vote := models.Vote{
		ID:          uuid.NewString(),
		PollID:      pollID,
		OptionID:    optionID,
		IP:          identity.IP,
		Fingerprint: identity.Fingerprint,
		VotedAt:     l.now().UTC(),
	}
	if err := l.commit(ctx, vote); err != nil {
		return models.PollResults{}, err
	}

	snapshot := l.snapshotAfterCommit(ctx, poll, vote)

	if l.pub != nil {
		l.pub.Publish(pollID, snapshot)
	}

	l.logger.Info("vote recorded", "poll_id", pollID, "option_id", optionID, "total_votes", snapshot.TotalVotes)

	return snapshot, nil
}

// Results returns the current snapshot of a poll. userVote is set when
// fingerprint has voted in it.
func (l *Ledger) Results(ctx context.Context, pollID, fingerprint string) (models.PollResults, error) {
	var poll models.Poll
	err := l.withRetry(ctx, "load poll", func() error {
		var err error
		poll, err = l.repo.GetPoll(ctx, pollID)
		return err
	})
	if err != nil {
		return models.PollResults{}, mapStoreErr(err)
	}

	var userVote *string
	if fingerprint != "" {
		var v *models.Vote
		err = l.withRetry(ctx, "find vote", func() error {
			var err error
			v, err = l.repo.FindVoteByFingerprint(ctx, pollID, fingerprint)
			return err
		})
		if err != nil {
			return models.PollResults{}, mapStoreErr(err)
		}
		if v != nil {
			userVote = &v.OptionID
		}
	}

	return Snapshot(poll, userVote), nil
}

func (l *Ledger) checkLimit(ctx context.Context, pollID string, identity models.Identity) error {
	if l.limiter == nil {
		return nil
	}

	res, err := l.limiter.Check(ctx, ratelimit.Key(identity.IP, pollID))
	if err != nil {
		// The one-vote gate still holds without the limiter
		l.logger.Warn("rate limit check failed, allowing attempt", "poll_id", pollID, "error", err)
		return nil
	}
	if !res.Allowed {
		return &RateLimitError{Result: res}
	}
	return nil
}

// commit writes vote, retrying once on a storage error. A retry that
// collides with the first attempt's own row means that attempt committed.
func (l *Ledger) commit(ctx context.Context, vote models.Vote) error {
	err := l.repo.CommitVote(ctx, vote)
	if err == nil {
		return nil
	}
	if !retryable(ctx, err) {
		return mapStoreErr(err)
	}

	l.logger.Warn("vote commit failed, retrying", "poll_id", vote.PollID, "error", err)

	err = l.repo.CommitVote(ctx, vote)
	if errors.Is(err, store.ErrDuplicateVote) {
		existing, findErr := l.repo.FindVote(ctx, vote.PollID, models.Identity{IP: vote.IP, Fingerprint: vote.Fingerprint})
		if findErr == nil && existing != nil && existing.ID == vote.ID {
			return nil
		}
	}
	if err != nil && retryable(ctx, err) {
		return fmt.Errorf("%w: commit vote: %v", ErrStorageFailure, err)
	}
	return mapStoreErr(err)
}

// snapshotAfterCommit re-reads the poll. The vote is already durable, so if
// the read fails the snapshot is derived from the pre-commit state, which is
// exact while the commit lock is held.
func (l *Ledger) snapshotAfterCommit(ctx context.Context, before models.Poll, vote models.Vote) models.PollResults {
	var poll models.Poll
	err := l.withRetry(ctx, "reload poll", func() error {
		var err error
		poll, err = l.repo.GetPoll(ctx, vote.PollID)
		return err
	})
	if err != nil {
		l.logger.Warn("failed to reload poll after commit", "poll_id", vote.PollID, "error", err)
		poll = withVote(before, vote.OptionID)
	}

	optionID := vote.OptionID
	return Snapshot(poll, &optionID)
}

// withRetry runs fn and, on a storage error, runs it once more
func (l *Ledger) withRetry(ctx context.Context, op string, fn func() error) error {
	err := fn()
	if err == nil || !retryable(ctx, err) {
		return err
	}

	l.logger.Warn("storage call failed, retrying", "op", op, "error", err)

	err = fn()
	if err == nil || !retryable(ctx, err) {
		return err
	}
	return fmt.Errorf("%w: %s: %v", ErrStorageFailure, op, err)
}

// lock takes the poll's commit lock, waiting at most the commit timeout
func (l *Ledger) lock(ctx context.Context, pollID string) (func(), error) {
	l.mu.Lock()
	pl, ok := l.locks[pollID]
	if !ok {
		pl = &pollLock{sem: make(chan struct{}, 1)}
		l.locks[pollID] = pl
	}
	pl.refs++
	l.mu.Unlock()

	timer := time.NewTimer(l.timeout)
	defer timer.Stop()

	select {
	case pl.sem <- struct{}{}:
		return func() {
			<-pl.sem
			l.release(pollID, pl)
		}, nil
	case <-timer.C:
		l.release(pollID, pl)
		l.logger.Warn("commit lock timeout", "poll_id", pollID, "timeout", l.timeout)
		return nil, ErrBusy
	case <-ctx.Done():
		l.release(pollID, pl)
		return nil, fmt.Errorf("%w: %v", ErrBusy, ctx.Err())
	}
}

func (l *Ledger) release(pollID string, pl *pollLock) {
	l.mu.Lock()
	pl.refs--
	if pl.refs == 0 {
		delete(l.locks, pollID)
	}
	l.mu.Unlock()
}

// retryable reports whether err is a transient storage error
func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	switch {
	case errors.Is(err, store.ErrPollNotFound),
		errors.Is(err, store.ErrOptionNotFound),
		errors.Is(err, store.ErrDuplicateVote),
		errors.Is(err, store.ErrInvalidPoll),
		errors.Is(err, ErrStorageFailure):
		return false
	}
	return true
}

// mapStoreErr converts storage sentinels to ledger errors
func mapStoreErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrPollNotFound):
		return ErrNotFound
	case errors.Is(err, store.ErrOptionNotFound):
		return ErrInvalidOption
	case errors.Is(err, store.ErrDuplicateVote):
		return ErrAlreadyVoted
	case errors.Is(err, ErrStorageFailure):
		return err
	}
	return fmt.Errorf("%w: %v", ErrStorageFailure, err)
}

func hasOption(poll models.Poll, optionID string) bool {
	for _, opt := range poll.Options {
		if opt.ID == optionID {
			return true
		}
	}
	return false
}

// withVote returns a copy of poll with one more vote for optionID
func withVote(poll models.Poll, optionID string) models.Poll {
	options := make([]models.Option, len(poll.Options))
	copy(options, poll.Options)
	for i := range options {
		if options[i].ID == optionID {
			options[i].VoteCount++
		}
	}
	poll.Options = options
	poll.TotalVotes++
	return poll
}
