// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/danielhkuo/quickly-vote/auth"
	"github.com/danielhkuo/quickly-vote/models"
)

var (
	ErrPollNotFound   = errors.New("poll not found")
	ErrOptionNotFound = errors.New("option not found")
	ErrDuplicateVote  = errors.New("identity already voted in this poll")
	ErrInvalidPoll    = errors.New("invalid poll")
)

// DefaultListLimit is the number of polls returned by ListPolls when no limit is given
const DefaultListLimit = 20

// querier is satisfied by both *sql.DB and *sql.Tx
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store persists polls, options and votes
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// ValidatePoll trims and checks a poll definition
func ValidatePoll(question string, options []string) (string, []string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", nil, fmt.Errorf("%w: question is required", ErrInvalidPoll)
	}
	if utf8.RuneCountInString(question) > models.MaxQuestionLength {
		return "", nil, fmt.Errorf("%w: question must be at most %d characters", ErrInvalidPoll, models.MaxQuestionLength)
	}

	if len(options) < models.MinOptions || len(options) > models.MaxOptions {
		return "", nil, fmt.Errorf("%w: poll must have %d-%d options", ErrInvalidPoll, models.MinOptions, models.MaxOptions)
	}

	cleaned := make([]string, len(options))
	for i, text := range options {
		text = strings.TrimSpace(text)
		if text == "" {
			return "", nil, fmt.Errorf("%w: option %d is empty", ErrInvalidPoll, i+1)
		}
		if utf8.RuneCountInString(text) > models.MaxOptionLength {
			return "", nil, fmt.Errorf("%w: option %d must be at most %d characters", ErrInvalidPoll, i+1, models.MaxOptionLength)
		}
		cleaned[i] = text
	}

	return question, cleaned, nil
}

// CreatePoll validates and inserts a poll with its ordered options
func (s *Store) CreatePoll(ctx context.Context, question string, options []string) (models.Poll, error) {
	question, options, err := ValidatePoll(question, options)
	if err != nil {
		return models.Poll{}, err
	}

	pollID, err := auth.GenerateID(8)
	if err != nil {
		return models.Poll{}, err
	}

	poll := models.Poll{
		ID:        pollID,
		Question:  question,
		Options:   make([]models.Option, len(options)),
		CreatedAt: time.Now().UTC(),
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.Poll{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO polls (id, question, total_votes, created_at)
		VALUES ($1, $2, 0, $3)
	`, poll.ID, poll.Question, poll.CreatedAt)
	if err != nil {
		return models.Poll{}, fmt.Errorf("failed to insert poll: %w", err)
	}

	for i, text := range options {
		optionID, err := auth.GenerateID(8)
		if err != nil {
			return models.Poll{}, err
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO poll_options (id, poll_id, position, text, vote_count)
			VALUES ($1, $2, $3, $4, 0)
		`, optionID, poll.ID, i, text)
		if err != nil {
			return models.Poll{}, fmt.Errorf("failed to insert option: %w", err)
		}

		poll.Options[i] = models.Option{ID: optionID, Text: text}
	}

	if err := tx.Commit(); err != nil {
		return models.Poll{}, fmt.Errorf("failed to commit poll: %w", err)
	}

	return poll, nil
}

// GetPoll loads a poll with its options in creation order
func (s *Store) GetPoll(ctx context.Context, id string) (models.Poll, error) {
	return getPoll(ctx, s.db, id)
}

func getPoll(ctx context.Context, q querier, id string) (models.Poll, error) {
	var poll models.Poll
	err := q.QueryRowContext(ctx, `
		SELECT id, question, total_votes, created_at FROM polls WHERE id = $1
	`, id).Scan(&poll.ID, &poll.Question, &poll.TotalVotes, &poll.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return models.Poll{}, ErrPollNotFound
	}
	if err != nil {
		return models.Poll{}, fmt.Errorf("failed to query poll: %w", err)
	}

	poll.Options, err = loadOptions(ctx, q, id)
	if err != nil {
		return models.Poll{}, err
	}

	return poll, nil
}

func loadOptions(ctx context.Context, q querier, pollID string) ([]models.Option, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, text, vote_count FROM poll_options
		WHERE poll_id = $1
		ORDER BY position
	`, pollID)
	if err != nil {
		return nil, fmt.Errorf("failed to query options: %w", err)
	}
	defer rows.Close()

	options := []models.Option{}
	for rows.Next() {
		var opt models.Option
		if err := rows.Scan(&opt.ID, &opt.Text, &opt.VoteCount); err != nil {
			return nil, fmt.Errorf("failed to scan option: %w", err)
		}
		options = append(options, opt)
	}

	return options, rows.Err()
}

// ListPolls returns the most recent polls, newest first
func (s *Store) ListPolls(ctx context.Context, limit int) ([]models.Poll, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, question, total_votes, created_at FROM polls
		ORDER BY created_at DESC, id
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query polls: %w", err)
	}

	polls := []models.Poll{}
	for rows.Next() {
		var poll models.Poll
		if err := rows.Scan(&poll.ID, &poll.Question, &poll.TotalVotes, &poll.CreatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan poll: %w", err)
		}
		polls = append(polls, poll)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	// Release the connection before loading options (sqlite runs on one)
	rows.Close()

	for i := range polls {
		polls[i].Options, err = loadOptions(ctx, s.db, polls[i].ID)
		if err != nil {
			return nil, err
		}
	}

	return polls, nil
}

// FindVote returns the vote cast in pollID by either component of identity, or nil
func (s *Store) FindVote(ctx context.Context, pollID string, identity models.Identity) (*models.Vote, error) {
	return findVote(ctx, s.db, pollID, identity)
}

func findVote(ctx context.Context, q querier, pollID string, identity models.Identity) (*models.Vote, error) {
	return scanVote(q.QueryRowContext(ctx, `
		SELECT id, poll_id, option_id, ip_hash, fingerprint, voted_at FROM votes
		WHERE poll_id = $1 AND (ip_hash = $2 OR fingerprint = $3)
		LIMIT 1
	`, pollID, identity.IP, identity.Fingerprint))
}

// FindVoteByFingerprint returns the vote cast in pollID with fingerprint, or nil
func (s *Store) FindVoteByFingerprint(ctx context.Context, pollID, fingerprint string) (*models.Vote, error) {
	return scanVote(s.db.QueryRowContext(ctx, `
		SELECT id, poll_id, option_id, ip_hash, fingerprint, voted_at FROM votes
		WHERE poll_id = $1 AND fingerprint = $2
		LIMIT 1
	`, pollID, fingerprint))
}

func scanVote(row *sql.Row) (*models.Vote, error) {
	var v models.Vote
	err := row.Scan(&v.ID, &v.PollID, &v.OptionID, &v.IP, &v.Fingerprint, &v.VotedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query vote: %w", err)
	}
	return &v, nil
}

// CountVotes counts the vote records of a poll
func (s *Store) CountVotes(ctx context.Context, pollID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM votes WHERE poll_id = $1`, pollID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count votes: %w", err)
	}
	return n, nil
}

// CommitVote records vote and bumps the option and poll counters in one transaction.
// Returns ErrDuplicateVote if the identity already voted, whether caught by the
// pre-check or by the unique constraints.
func (s *Store) CommitVote(ctx context.Context, vote models.Vote) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	existing, err := findVote(ctx, tx, vote.PollID, models.Identity{IP: vote.IP, Fingerprint: vote.Fingerprint})
	if err != nil {
		return err
	}
	if existing != nil {
		return ErrDuplicateVote
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO votes (id, poll_id, option_id, ip_hash, fingerprint, voted_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, vote.ID, vote.PollID, vote.OptionID, vote.IP, vote.Fingerprint, vote.VotedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateVote
		}
		return fmt.Errorf("failed to insert vote: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE poll_options SET vote_count = vote_count + 1
		WHERE id = $1 AND poll_id = $2
	`, vote.OptionID, vote.PollID)
	if err := expectOneRow(res, err, ErrOptionNotFound); err != nil {
		return err
	}

	res, err = tx.ExecContext(ctx, `
		UPDATE polls SET total_votes = total_votes + 1 WHERE id = $1
	`, vote.PollID)
	if err := expectOneRow(res, err, ErrPollNotFound); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateVote
		}
		return fmt.Errorf("failed to commit vote: %w", err)
	}

	return nil
}

func expectOneRow(res sql.Result, err error, missing error) error {
	if err != nil {
		return fmt.Errorf("failed to update counts: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n != 1 {
		return missing
	}
	return nil
}
