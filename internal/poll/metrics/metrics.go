package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	PollsCreated   prometheus.Counter
	VotesAccepted  prometheus.Counter
	VotesDuplicate prometheus.Counter
	VotesRejected  prometheus.Counter
	VoteLatency    prometheus.Histogram
}

func New() *Metrics {
	return &Metrics{
		PollsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "livepoll_polls_created_total",
			Help: "Total number of polls created",
		}),
		VotesAccepted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "livepoll_votes_accepted_total",
			Help: "Total number of votes committed",
		}),
		VotesDuplicate: promauto.NewCounter(prometheus.CounterOpts{
			Name: "livepoll_votes_duplicate_total",
			Help: "Total number of votes rejected by uniqueness constraints",
		}),
		VotesRejected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "livepoll_votes_rejected_total",
			Help: "Total number of votes rejected by validation",
		}),
		VoteLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "livepoll_vote_commit_duration_seconds",
			Help:    "Latency of the validate-commit-reload vote path",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) IncrementPollsCreated()   { m.PollsCreated.Inc() }
func (m *Metrics) IncrementVotesAccepted()  { m.VotesAccepted.Inc() }
func (m *Metrics) IncrementVotesDuplicate() { m.VotesDuplicate.Inc() }
func (m *Metrics) IncrementVotesRejected()  { m.VotesRejected.Inc() }

func (m *Metrics) ObserveVoteLatency(d time.Duration) {
	m.VoteLatency.Observe(d.Seconds())
}
