package service

import (
	"context"
	"errors"
	"time"

	"livepoll/internal/identity"
	"livepoll/internal/poll/models"
	id "livepoll/pkg/domain"
	dErrors "livepoll/pkg/domain-errors"
	"livepoll/pkg/platform/sentinel"
)

// RecordVote is the vote ledger. Validation happens strictly before any
// mutation: poll existence, then option membership, then the store
// commit where the uniqueness constraints arbitrate duplicates. The
// commit inserts the vote and increments the tally atomically; the
// reloaded poll comes back from the same transaction and is what every
// subscriber receives: full state, never a delta.
//
// Two concurrent attempts sharing a (poll, fingerprint) or (poll,
// hashed address) key resolve to exactly one success and one
// CodeDuplicateVote. The arbitration lives in the store's constraints,
// not here, so it holds across processes.
func (s *Service) RecordVote(ctx context.Context, pollID id.PollID, optionID id.OptionID, fingerprint, sourceAddr string) (*models.Poll, error) {
	start := time.Now()

	if fingerprint == "" {
		s.countRejected()
		return nil, dErrors.New(dErrors.CodeInvalidInput, "fingerprint is required")
	}

	poll, err := s.store.GetPoll(ctx, pollID)
	if errors.Is(err, sentinel.ErrNotFound) {
		s.countRejected()
		return nil, dErrors.New(dErrors.CodeNotFound, "poll not found")
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to load poll for vote", "poll_id", pollID.String(), "error", err.Error())
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record vote")
	}

	if _, ok := poll.OptionByID(optionID); !ok {
		s.countRejected()
		return nil, dErrors.New(dErrors.CodeInvalidOption, "option does not belong to this poll")
	}

	vote := &models.Vote{
		ID:          id.NewVoteID(),
		PollID:      pollID,
		OptionID:    optionID,
		Fingerprint: fingerprint,
		VoterHash:   identity.HashAddress(sourceAddr),
		CreatedAt:   time.Now().UTC(),
	}

	updated, err := s.store.RecordVote(ctx, vote)
	switch {
	case errors.Is(err, sentinel.ErrConflict):
		if s.metrics != nil {
			s.metrics.IncrementVotesDuplicate()
		}
		return nil, dErrors.New(dErrors.CodeDuplicateVote, "already voted")
	case errors.Is(err, sentinel.ErrNotFound):
		// Lost a race with the membership check above.
		s.countRejected()
		return nil, dErrors.New(dErrors.CodeInvalidOption, "option does not belong to this poll")
	case err != nil:
		s.logger.ErrorContext(ctx, "failed to commit vote", "poll_id", pollID.String(), "error", err.Error())
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record vote")
	}

	if s.metrics != nil {
		s.metrics.IncrementVotesAccepted()
		s.metrics.ObserveVoteLatency(time.Since(start))
	}

	// Fan out the committed snapshot; delivery is the hub's concern.
	if s.hub != nil {
		s.hub.Publish(pollID, updated)
	}
	if s.events != nil {
		s.events.VoteAccepted(ctx, vote, updated)
	}

	return updated, nil
}

func (s *Service) countRejected() {
	if s.metrics != nil {
		s.metrics.IncrementVotesRejected()
	}
}
