// Package memory holds the in-memory poll store used in dev mode and as
// the test double for the service layer. It intentionally favors
// clarity over performance.
package memory

import (
	"context"
	"sync"

	"livepoll/internal/poll/models"
	id "livepoll/pkg/domain"
	"livepoll/pkg/platform/sentinel"
)

// Store keeps polls and votes in maps guarded by one mutex. The single
// lock plays the role a database transaction plays in the postgres
// store: vote insert and tally increment are observed together or not
// at all, and commits are totally ordered per process.
type Store struct {
	mu    sync.RWMutex
	polls map[id.PollID]*models.Poll

	// Uniqueness indexes, same keys as the postgres unique indexes.
	byFingerprint map[fingerprintKey]struct{}
	byVoterHash   map[voterHashKey]struct{}
	votes         []*models.Vote
}

type fingerprintKey struct {
	pollID      id.PollID
	fingerprint string
}

type voterHashKey struct {
	pollID    id.PollID
	voterHash string
}

func New() *Store {
	return &Store{
		polls:         make(map[id.PollID]*models.Poll),
		byFingerprint: make(map[fingerprintKey]struct{}),
		byVoterHash:   make(map[voterHashKey]struct{}),
	}
}

func (s *Store) CreatePoll(_ context.Context, poll *models.Poll) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.polls[poll.ID]; exists {
		return sentinel.ErrConflict
	}
	s.polls[poll.ID] = poll.Clone()
	return nil
}

func (s *Store) GetPoll(_ context.Context, pollID id.PollID) (*models.Poll, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	poll, ok := s.polls[pollID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return poll.Clone(), nil
}

func (s *Store) RecordVote(_ context.Context, vote *models.Vote) (*models.Poll, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	poll, ok := s.polls[vote.PollID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	opt, ok := poll.OptionByID(vote.OptionID)
	if !ok {
		return nil, sentinel.ErrNotFound
	}

	fpKey := fingerprintKey{pollID: vote.PollID, fingerprint: vote.Fingerprint}
	vhKey := voterHashKey{pollID: vote.PollID, voterHash: vote.VoterHash}
	if _, dup := s.byFingerprint[fpKey]; dup {
		return nil, sentinel.ErrConflict
	}
	if _, dup := s.byVoterHash[vhKey]; dup {
		return nil, sentinel.ErrConflict
	}

	// Commit point: all three writes happen under the same lock hold.
	s.byFingerprint[fpKey] = struct{}{}
	s.byVoterHash[vhKey] = struct{}{}
	v := *vote
	s.votes = append(s.votes, &v)
	opt.VoteCount++

	return poll.Clone(), nil
}

// VoteCount reports the number of recorded votes for a poll. Test hook
// for the votes-equal-tallies invariant.
func (s *Store) VoteCount(pollID id.PollID) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, v := range s.votes {
		if v.PollID == pollID {
			n++
		}
	}
	return n
}
