// Package events publishes accepted votes onto the Kafka event stream
// for downstream consumers (analytics, archival). Publishing is fire and
// forget: a vote that committed to the ledger is never failed or rolled
// back because the stream was unavailable.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"livepoll/internal/poll/models"
)

// VoteEvent is the wire payload for one accepted vote. Tallies are the
// post-commit totals, so consumers can treat each event as a snapshot
// cursor rather than replaying deltas.
type VoteEvent struct {
	VoteID     string    `json:"voteId"`
	PollID     string    `json:"pollId"`
	OptionID   string    `json:"optionId"`
	Question   string    `json:"question"`
	TotalVotes int       `json:"totalVotes"`
	OccurredAt time.Time `json:"occurredAt"`
}

// Publisher produces vote events to a single topic. A Publisher built
// without brokers is a no-op, so callers never branch on whether the
// stream is configured.
type Publisher struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

// NewPublisher connects to the given brokers. With no brokers it
// returns a disabled publisher rather than an error.
func NewPublisher(brokers []string, topic string, logger *slog.Logger) (*Publisher, error) {
	p := &Publisher{
		topic:  topic,
		logger: logger,
	}
	if len(brokers) == 0 {
		return p, nil
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.AllowAutoTopicCreation(),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, err
	}
	p.client = client
	return p, nil
}

// VoteAccepted emits one event for a committed vote. Records are keyed
// by poll id so each poll's events stay ordered within a partition.
// Produce failures are logged and dropped.
func (p *Publisher) VoteAccepted(ctx context.Context, vote *models.Vote, poll *models.Poll) {
	if p.client == nil {
		return
	}

	record, err := newVoteRecord(p.topic, vote, poll)
	if err != nil {
		p.logger.ErrorContext(ctx, "failed to encode vote event",
			"poll_id", poll.ID.String(),
			"error", err.Error(),
		)
		return
	}

	p.client.Produce(ctx, record, func(r *kgo.Record, err error) {
		if err != nil {
			p.logger.Error("failed to publish vote event",
				"topic", r.Topic,
				"key", string(r.Key),
				"error", err.Error(),
			)
		}
	})
}

// Close flushes buffered records and releases the client.
func (p *Publisher) Close() {
	if p.client == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = p.client.Flush(ctx)
	p.client.Close()
}

func newVoteRecord(topic string, vote *models.Vote, poll *models.Poll) (*kgo.Record, error) {
	payload, err := json.Marshal(VoteEvent{
		VoteID:     vote.ID.String(),
		PollID:     poll.ID.String(),
		OptionID:   vote.OptionID.String(),
		Question:   poll.Question,
		TotalVotes: poll.TotalVotes(),
		OccurredAt: vote.CreatedAt,
	})
	if err != nil {
		return nil, err
	}
	return &kgo.Record{
		Topic: topic,
		Key:   []byte(poll.ID.String()),
		Value: payload,
	}, nil
}
