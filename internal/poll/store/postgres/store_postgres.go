// Package postgres is the durable poll store. Uniqueness is enforced by
// the database's own unique indexes, so duplicate suppression holds even
// across independent processes.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"livepoll/internal/poll/models"
	id "livepoll/pkg/domain"
	"livepoll/pkg/platform/sentinel"
)

// uniqueViolation is the Postgres error code for unique_violation.
const uniqueViolation = "23505"

type Store struct {
	db *sql.DB
}

// New constructs a store over an already-verified database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// EnsureSchema creates the tables and unique indexes. Safe to call on
// every startup; uses IF NOT EXISTS throughout.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

const schema = `
CREATE TABLE IF NOT EXISTS polls (
    id UUID PRIMARY KEY,
    question TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS options (
    id UUID PRIMARY KEY,
    poll_id UUID NOT NULL REFERENCES polls(id),
    text TEXT NOT NULL,
    vote_count INTEGER NOT NULL DEFAULT 0 CHECK (vote_count >= 0),
    position INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_options_poll_id ON options(poll_id);

CREATE TABLE IF NOT EXISTS votes (
    id UUID PRIMARY KEY,
    poll_id UUID NOT NULL REFERENCES polls(id),
    option_id UUID NOT NULL REFERENCES options(id),
    fingerprint TEXT NOT NULL,
    voter_hash TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    UNIQUE (poll_id, fingerprint),
    UNIQUE (poll_id, voter_hash)
);

CREATE INDEX IF NOT EXISTS idx_votes_poll_id ON votes(poll_id);
`

func (s *Store) CreatePoll(ctx context.Context, poll *models.Poll) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create poll: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO polls (id, question, created_at) VALUES ($1, $2, $3)`,
		poll.ID.String(), poll.Question, poll.CreatedAt,
	)
	if err != nil {
		return translate(err, "insert poll")
	}

	for i, opt := range poll.Options {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO options (id, poll_id, text, vote_count, position) VALUES ($1, $2, $3, 0, $4)`,
			opt.ID.String(), poll.ID.String(), opt.Text, i,
		)
		if err != nil {
			return translate(err, "insert option")
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create poll: %w", err)
	}
	return nil
}

func (s *Store) GetPoll(ctx context.Context, pollID id.PollID) (*models.Poll, error) {
	return s.getPoll(ctx, s.db, pollID)
}

// RecordVote inserts the vote, increments the option tally, and reloads
// the poll inside one transaction. The unique indexes arbitrate racing
// duplicates: the loser's INSERT fails with unique_violation and the
// whole transaction rolls back, leaving no partial state.
func (s *Store) RecordVote(ctx context.Context, vote *models.Vote) (*models.Poll, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin record vote: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO votes (id, poll_id, option_id, fingerprint, voter_hash, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		vote.ID.String(), vote.PollID.String(), vote.OptionID.String(),
		vote.Fingerprint, vote.VoterHash, vote.CreatedAt,
	)
	if err != nil {
		return nil, translate(err, "insert vote")
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE options SET vote_count = vote_count + 1 WHERE id = $1 AND poll_id = $2`,
		vote.OptionID.String(), vote.PollID.String(),
	)
	if err != nil {
		return nil, translate(err, "increment tally")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("increment tally rows: %w", err)
	}
	if affected != 1 {
		// Option does not belong to the poll; the rollback also discards
		// the vote insert.
		return nil, sentinel.ErrNotFound
	}

	poll, err := s.getPoll(ctx, tx, vote.PollID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit record vote: %w", err)
	}
	return poll, nil
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *Store) getPoll(ctx context.Context, q querier, pollID id.PollID) (*models.Poll, error) {
	poll := &models.Poll{}
	var rawID string
	err := q.QueryRowContext(ctx,
		`SELECT id, question, created_at FROM polls WHERE id = $1`,
		pollID.String(),
	).Scan(&rawID, &poll.Question, &poll.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select poll: %w", err)
	}
	poll.ID, err = id.ParsePollID(rawID)
	if err != nil {
		return nil, fmt.Errorf("parse poll id: %w", err)
	}

	rows, err := q.QueryContext(ctx,
		`SELECT id, text, vote_count FROM options WHERE poll_id = $1 ORDER BY position`,
		pollID.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("select options: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		opt := models.Option{PollID: poll.ID}
		var rawOptID string
		if err := rows.Scan(&rawOptID, &opt.Text, &opt.VoteCount); err != nil {
			return nil, fmt.Errorf("scan option: %w", err)
		}
		opt.ID, err = id.ParseOptionID(rawOptID)
		if err != nil {
			return nil, fmt.Errorf("parse option id: %w", err)
		}
		poll.Options = append(poll.Options, opt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate options: %w", err)
	}

	return poll, nil
}

// translate maps driver errors onto sentinels: unique_violation means a
// duplicate vote; foreign_key_violation on votes.poll_id means the poll
// is gone.
func translate(err error, op string) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case uniqueViolation:
			return sentinel.ErrConflict
		case "23503": // foreign_key_violation
			return sentinel.ErrNotFound
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
