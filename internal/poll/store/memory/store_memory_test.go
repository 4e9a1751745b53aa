package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"livepoll/internal/poll/models"
	id "livepoll/pkg/domain"
	"livepoll/pkg/platform/sentinel"
)

type MemoryStoreSuite struct {
	suite.Suite
	store *Store
	ctx   context.Context
}

func (s *MemoryStoreSuite) SetupTest() {
	s.store = New()
	s.ctx = context.Background()
}

func TestMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(MemoryStoreSuite))
}

func (s *MemoryStoreSuite) newPoll(question string, options ...string) *models.Poll {
	pollID := id.NewPollID()
	poll := &models.Poll{
		ID:        pollID,
		Question:  question,
		CreatedAt: time.Now(),
	}
	for _, text := range options {
		poll.Options = append(poll.Options, models.Option{
			ID:     id.NewOptionID(),
			PollID: pollID,
			Text:   text,
		})
	}
	s.Require().NoError(s.store.CreatePoll(s.ctx, poll))
	return poll
}

func (s *MemoryStoreSuite) newVote(poll *models.Poll, optionIdx int, fingerprint, voterHash string) *models.Vote {
	return &models.Vote{
		ID:          id.NewVoteID(),
		PollID:      poll.ID,
		OptionID:    poll.Options[optionIdx].ID,
		Fingerprint: fingerprint,
		VoterHash:   voterHash,
		CreatedAt:   time.Now(),
	}
}

func (s *MemoryStoreSuite) TestCreateAndGet() {
	s.Run("round-trips a poll with options", func() {
		poll := s.newPoll("Pick one", "A", "B")

		found, err := s.store.GetPoll(s.ctx, poll.ID)
		s.Require().NoError(err)
		s.Equal("Pick one", found.Question)
		s.Require().Len(found.Options, 2)
		s.Equal(0, found.Options[0].VoteCount)
		s.Equal(0, found.Options[1].VoteCount)
	})

	s.Run("returns ErrNotFound for unknown poll", func() {
		_, err := s.store.GetPoll(s.ctx, id.NewPollID())
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("returned poll does not alias store state", func() {
		poll := s.newPoll("Aliasing", "A", "B")

		found, err := s.store.GetPoll(s.ctx, poll.ID)
		s.Require().NoError(err)
		found.Options[0].VoteCount = 99

		again, err := s.store.GetPoll(s.ctx, poll.ID)
		s.Require().NoError(err)
		s.Equal(0, again.Options[0].VoteCount)
	})
}

func (s *MemoryStoreSuite) TestRecordVote() {
	s.Run("increments exactly the voted option", func() {
		poll := s.newPoll("Pick one", "A", "B")

		updated, err := s.store.RecordVote(s.ctx, s.newVote(poll, 0, "f1", "h1"))
		s.Require().NoError(err)
		s.Equal(1, updated.Options[0].VoteCount)
		s.Equal(0, updated.Options[1].VoteCount)
	})

	s.Run("rejects duplicate fingerprint even on another option", func() {
		poll := s.newPoll("Pick one", "A", "B")

		_, err := s.store.RecordVote(s.ctx, s.newVote(poll, 0, "f1", "h1"))
		s.Require().NoError(err)

		_, err = s.store.RecordVote(s.ctx, s.newVote(poll, 1, "f1", "h2"))
		s.Require().ErrorIs(err, sentinel.ErrConflict)

		found, err := s.store.GetPoll(s.ctx, poll.ID)
		s.Require().NoError(err)
		s.Equal(1, found.TotalVotes())
	})

	s.Run("rejects duplicate voter hash across fingerprints", func() {
		poll := s.newPoll("Pick one", "A", "B")

		_, err := s.store.RecordVote(s.ctx, s.newVote(poll, 0, "f1", "h1"))
		s.Require().NoError(err)

		_, err = s.store.RecordVote(s.ctx, s.newVote(poll, 1, "f2", "h1"))
		s.Require().ErrorIs(err, sentinel.ErrConflict)
	})

	s.Run("same fingerprint may vote on different polls", func() {
		poll1 := s.newPoll("First", "A", "B")
		poll2 := s.newPoll("Second", "X", "Y")

		_, err := s.store.RecordVote(s.ctx, s.newVote(poll1, 0, "f1", "h1"))
		s.Require().NoError(err)
		_, err = s.store.RecordVote(s.ctx, s.newVote(poll2, 0, "f1", "h1"))
		s.Require().NoError(err)
	})

	s.Run("unknown poll yields ErrNotFound", func() {
		poll := s.newPoll("Pick one", "A", "B")
		vote := s.newVote(poll, 0, "f1", "h1")
		vote.PollID = id.NewPollID()

		_, err := s.store.RecordVote(s.ctx, vote)
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("failed vote leaves no partial state", func() {
		poll := s.newPoll("Pick one", "A", "B")
		vote := s.newVote(poll, 0, "f1", "h1")
		vote.OptionID = id.NewOptionID() // not a member of the poll

		_, err := s.store.RecordVote(s.ctx, vote)
		s.Require().Error(err)

		found, err := s.store.GetPoll(s.ctx, poll.ID)
		s.Require().NoError(err)
		s.Equal(0, found.TotalVotes())
		s.Equal(0, s.store.VoteCount(poll.ID))
	})
}

// TestConcurrentDuplicates drives the core concurrency guarantee: for N
// racing attempts sharing a dedup key, exactly one commits.
func (s *MemoryStoreSuite) TestConcurrentDuplicates() {
	poll := s.newPoll("Race", "A", "B")

	const attempts = 64
	var wg sync.WaitGroup
	var successes, conflicts int64
	var mu sync.Mutex

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.store.RecordVote(s.ctx, s.newVote(poll, i%2, "f-shared", "h-shared"))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			default:
				s.ErrorIs(err, sentinel.ErrConflict)
				conflicts++
			}
		}(i)
	}
	wg.Wait()

	s.Equal(int64(1), successes)
	s.Equal(int64(attempts-1), conflicts)

	found, err := s.store.GetPoll(s.ctx, poll.ID)
	s.Require().NoError(err)
	s.Equal(1, found.TotalVotes())
	s.Equal(s.store.VoteCount(poll.ID), found.TotalVotes())
}

// TestTallyMatchesVotes checks the derived-tally invariant under many
// distinct voters.
func (s *MemoryStoreSuite) TestTallyMatchesVotes() {
	poll := s.newPoll("Busy", "A", "B", "C")

	accepted := 0
	for i := 0; i < 30; i++ {
		fp := "fp-" + string(rune('a'+i%26)) + string(rune('0'+i/26))
		vh := "vh-" + fp
		_, err := s.store.RecordVote(s.ctx, s.newVote(poll, i%3, fp, vh))
		if err == nil {
			accepted++
		}
	}

	found, err := s.store.GetPoll(s.ctx, poll.ID)
	s.Require().NoError(err)
	s.Equal(accepted, found.TotalVotes())
	s.Equal(accepted, s.store.VoteCount(poll.ID))
}
