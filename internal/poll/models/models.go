// Package models defines the poll domain entities and the DTOs crossing
// the HTTP boundary.
package models

import (
	"strings"
	"time"

	id "livepoll/pkg/domain"
	pstrings "livepoll/pkg/platform/strings"
)

// Poll is immutable after creation except for option tallies, which
// mutate only through vote commits.
type Poll struct {
	ID        id.PollID `json:"id"`
	Question  string    `json:"question"`
	CreatedAt time.Time `json:"createdAt"`
	Options   []Option  `json:"options"`
}

// Option belongs to exactly one poll. The option set is fixed at poll
// creation; only VoteCount changes afterwards.
type Option struct {
	ID        id.OptionID `json:"id"`
	PollID    id.PollID   `json:"pollId"`
	Text      string      `json:"text"`
	VoteCount int         `json:"voteCount"`
}

// Vote is write-once. VoterHash is the hashed source address; the raw
// address never appears here.
type Vote struct {
	ID          id.VoteID   `json:"id"`
	PollID      id.PollID   `json:"pollId"`
	OptionID    id.OptionID `json:"optionId"`
	Fingerprint string      `json:"-"`
	VoterHash   string      `json:"-"`
	CreatedAt   time.Time   `json:"createdAt"`
}

// OptionByID returns the poll's option with the given id, if any.
func (p *Poll) OptionByID(optionID id.OptionID) (*Option, bool) {
	for i := range p.Options {
		if p.Options[i].ID == optionID {
			return &p.Options[i], true
		}
	}
	return nil, false
}

// TotalVotes sums the option tallies. Equal to the number of recorded
// votes at all times (the tally is updated in the same transaction as
// each vote insert).
func (p *Poll) TotalVotes() int {
	total := 0
	for i := range p.Options {
		total += p.Options[i].VoteCount
	}
	return total
}

// Clone deep-copies the poll so snapshots handed to broadcast can never
// alias store-internal state.
func (p *Poll) Clone() *Poll {
	cp := *p
	cp.Options = make([]Option, len(p.Options))
	copy(cp.Options, p.Options)
	return &cp
}

// CreatePollRequest is the POST /api/polls body.
type CreatePollRequest struct {
	Question string   `json:"question"`
	Options  []string `json:"options"`
}

// Validate enforces the creation preconditions: a non-empty question
// and at least two distinct non-empty options.
func (r *CreatePollRequest) Validate() []string {
	var problems []string
	if strings.TrimSpace(r.Question) == "" {
		problems = append(problems, "question is required")
	}
	if len(pstrings.Normalize(r.Options)) < 2 {
		problems = append(problems, "at least 2 distinct non-empty options are required")
	}
	return problems
}

// NormalizedOptions returns the option texts trimmed, deduplicated, and
// cleared of empties: exactly the set Validate counted.
func (r *CreatePollRequest) NormalizedOptions() []string {
	return pstrings.Normalize(r.Options)
}

// CreatePollResponse adds the derived share link to the created poll.
type CreatePollResponse struct {
	*Poll
	ShareableLink string `json:"shareableLink"`
}

// VoteRequest is the POST /api/polls/{id}/vote body. The source address
// is derived from the connection, never from the body.
type VoteRequest struct {
	OptionID    string `json:"optionId"`
	Fingerprint string `json:"fingerprint"`
}
