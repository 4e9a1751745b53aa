// Package service orchestrates poll creation, reads, and the vote
// ledger. Handlers stay thin; stores stay dumb; everything with a
// business rule lives here.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"livepoll/internal/poll/metrics"
	"livepoll/internal/poll/models"
	"livepoll/internal/poll/store"
	id "livepoll/pkg/domain"
	dErrors "livepoll/pkg/domain-errors"
	"livepoll/pkg/platform/sentinel"
)

// Broadcaster delivers a committed poll snapshot to the poll's live
// subscribers. Implemented by the realtime hub.
type Broadcaster interface {
	Publish(pollID id.PollID, snapshot *models.Poll)
}

// EventPublisher emits accepted votes onto the event stream. Fire and
// forget: failures are the publisher's problem, never the vote's.
type EventPublisher interface {
	VoteAccepted(ctx context.Context, vote *models.Vote, poll *models.Poll)
}

type Service struct {
	store   store.Store
	hub     Broadcaster
	events  EventPublisher
	metrics *metrics.Metrics
	logger  *slog.Logger
	baseURL string
}

type Option func(*Service)

// WithMetrics attaches the poll metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithEvents attaches the vote event publisher.
func WithEvents(p EventPublisher) Option {
	return func(s *Service) { s.events = p }
}

func New(st store.Store, hub Broadcaster, logger *slog.Logger, baseURL string, opts ...Option) *Service {
	s := &Service{
		store:   st,
		hub:     hub,
		logger:  logger,
		baseURL: baseURL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreatePoll persists a poll with its options as one unit and derives
// the shareable link. Counts start at zero; the option set is fixed
// from here on.
func (s *Service) CreatePoll(ctx context.Context, req models.CreatePollRequest) (*models.CreatePollResponse, error) {
	if problems := req.Validate(); len(problems) > 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, strings.Join(problems, "; "))
	}

	pollID := id.NewPollID()
	poll := &models.Poll{
		ID:        pollID,
		Question:  strings.TrimSpace(req.Question),
		CreatedAt: time.Now().UTC(),
	}
	for _, text := range req.NormalizedOptions() {
		poll.Options = append(poll.Options, models.Option{
			ID:     id.NewOptionID(),
			PollID: pollID,
			Text:   text,
		})
	}

	if err := s.store.CreatePoll(ctx, poll); err != nil {
		s.logger.ErrorContext(ctx, "failed to create poll", "error", err.Error())
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create poll")
	}

	if s.metrics != nil {
		s.metrics.IncrementPollsCreated()
	}

	return &models.CreatePollResponse{
		Poll:          poll,
		ShareableLink: s.ShareLink(pollID),
	}, nil
}

// GetPoll returns the poll with current tallies.
func (s *Service) GetPoll(ctx context.Context, pollID id.PollID) (*models.Poll, error) {
	poll, err := s.store.GetPoll(ctx, pollID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "poll not found")
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to fetch poll", "poll_id", pollID.String(), "error", err.Error())
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to fetch poll")
	}
	return poll, nil
}

// ShareLink derives the shareable URL for a poll. Pure string
// construction over the configured base address; never stored.
func (s *Service) ShareLink(pollID id.PollID) string {
	return strings.TrimRight(s.baseURL, "/") + "/poll/" + pollID.String()
}
