package service

import (
	"sync"

	"livepoll/internal/poll/models"
	id "livepoll/pkg/domain"
	dErrors "livepoll/pkg/domain-errors"
)

func (s *ServiceSuite) createPoll(question string, options ...string) *models.CreatePollResponse {
	resp, err := s.svc.CreatePoll(s.ctx, models.CreatePollRequest{
		Question: question,
		Options:  options,
	})
	s.Require().NoError(err)
	return resp
}

func (s *ServiceSuite) TestRecordVote() {
	s.Run("accepts a valid vote and returns full state", func() {
		poll := s.createPoll("Pick one", "A", "B")

		updated, err := s.svc.RecordVote(s.ctx, poll.ID, poll.Options[0].ID, "f1", "203.0.113.7")
		s.Require().NoError(err)
		s.Equal(1, updated.Options[0].VoteCount)
		s.Equal(0, updated.Options[1].VoteCount)
	})

	s.Run("requires a fingerprint", func() {
		poll := s.createPoll("Pick one", "A", "B")

		_, err := s.svc.RecordVote(s.ctx, poll.ID, poll.Options[0].ID, "", "203.0.113.7")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("unknown poll maps to not found", func() {
		poll := s.createPoll("Pick one", "A", "B")

		_, err := s.svc.RecordVote(s.ctx, id.NewPollID(), poll.Options[0].ID, "f1", "203.0.113.7")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("foreign option maps to invalid option with no tally change", func() {
		poll1 := s.createPoll("First", "A", "B")
		poll2 := s.createPoll("Second", "X", "Y")

		_, err := s.svc.RecordVote(s.ctx, poll1.ID, poll2.Options[0].ID, "f1", "203.0.113.7")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidOption))

		found, err := s.svc.GetPoll(s.ctx, poll1.ID)
		s.Require().NoError(err)
		s.Equal(0, found.TotalVotes())
	})

	s.Run("same fingerprint cannot vote twice even on another option", func() {
		poll := s.createPoll("Pick one", "A", "B")

		_, err := s.svc.RecordVote(s.ctx, poll.ID, poll.Options[0].ID, "f1", "203.0.113.7")
		s.Require().NoError(err)

		_, err = s.svc.RecordVote(s.ctx, poll.ID, poll.Options[1].ID, "f1", "198.51.100.1")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeDuplicateVote))
	})

	s.Run("same address cannot vote twice under different fingerprints", func() {
		poll := s.createPoll("Pick one", "A", "B")

		_, err := s.svc.RecordVote(s.ctx, poll.ID, poll.Options[0].ID, "f1", "203.0.113.7")
		s.Require().NoError(err)

		_, err = s.svc.RecordVote(s.ctx, poll.ID, poll.Options[1].ID, "f2", "203.0.113.7")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeDuplicateVote))
	})

	s.Run("rejected votes publish nothing", func() {
		poll := s.createPoll("Pick one", "A", "B")

		_, err := s.svc.RecordVote(s.ctx, poll.ID, poll.Options[0].ID, "", "203.0.113.7")
		s.Require().Error(err)
		s.Empty(s.hub.calls())
	})
}

// TestScenarioPickOne walks a full poll lifecycle: create, vote,
// duplicate rejection, second voter, and the snapshots a subscriber
// would see.
func (s *ServiceSuite) TestScenarioPickOne() {
	poll := s.createPoll("Pick one", "A", "B")
	optionA, optionB := poll.Options[0].ID, poll.Options[1].ID

	updated, err := s.svc.RecordVote(s.ctx, poll.ID, optionA, "f1", "203.0.113.7")
	s.Require().NoError(err)
	s.Equal([]int{1, 0}, counts(updated))

	_, err = s.svc.RecordVote(s.ctx, poll.ID, optionB, "f1", "203.0.113.7")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeDuplicateVote))

	current, err := s.svc.GetPoll(s.ctx, poll.ID)
	s.Require().NoError(err)
	s.Equal([]int{1, 0}, counts(current))

	updated, err = s.svc.RecordVote(s.ctx, poll.ID, optionB, "f2", "198.51.100.1")
	s.Require().NoError(err)
	s.Equal([]int{1, 1}, counts(updated))

	calls := s.hub.calls()
	s.Require().Len(calls, 2)
	s.Equal(poll.ID, calls[0].pollID)
	s.Equal([]int{1, 0}, counts(calls[0].snapshot))
	s.Equal([]int{1, 1}, counts(calls[1].snapshot))
}

// TestAcceptedVotesEqualTallySum drives many voters and checks the
// derived-tally property.
func (s *ServiceSuite) TestAcceptedVotesEqualTallySum() {
	poll := s.createPoll("Busy", "A", "B", "C")

	const voters = 25
	var wg sync.WaitGroup
	accepted := make(chan struct{}, voters)

	for i := 0; i < voters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			fp := "fp-" + string(rune('a'+i))
			addr := "10.0.0." + string(rune('a'+i))
			_, err := s.svc.RecordVote(s.ctx, poll.ID, poll.Options[i%3].ID, fp, addr)
			if err == nil {
				accepted <- struct{}{}
			}
		}(i)
	}
	wg.Wait()
	close(accepted)

	n := 0
	for range accepted {
		n++
	}

	found, err := s.svc.GetPoll(s.ctx, poll.ID)
	s.Require().NoError(err)
	s.Equal(n, found.TotalVotes())
	s.Equal(voters, n)
}

func counts(p *models.Poll) []int {
	out := make([]int, len(p.Options))
	for i := range p.Options {
		out[i] = p.Options[i].VoteCount
	}
	return out
}
