// Package store declares the persistence contract for polls and votes.
// Implementations live in the memory and postgres subpackages; both
// return sentinel errors so the service layer stays backend-agnostic.
package store

import (
	"context"

	"livepoll/internal/poll/models"
	id "livepoll/pkg/domain"
)

// Store is the transactional poll/vote persistence contract.
//
// RecordVote is the core guarantee of the whole system: within a single
// atomic unit it inserts the vote, increments the target option's tally
// by exactly one, and reloads the poll. Both writes succeed or both roll
// back. Duplicate suppression (at most one vote per (poll, fingerprint)
// and per (poll, voter hash)) is enforced by the implementation's own
// uniqueness constraints, not by callers, so concurrent attempts from
// independent goroutines or processes resolve to exactly one success.
type Store interface {
	// CreatePoll persists the poll and its options as one unit.
	CreatePoll(ctx context.Context, poll *models.Poll) error

	// GetPoll returns the poll with options in creation order, or
	// sentinel.ErrNotFound.
	GetPoll(ctx context.Context, pollID id.PollID) (*models.Poll, error)

	// RecordVote commits the vote and returns the reloaded poll for
	// exact-state broadcast. sentinel.ErrConflict on duplicates,
	// sentinel.ErrNotFound when the poll is absent.
	RecordVote(ctx context.Context, vote *models.Vote) (*models.Poll, error)
}
