// Package realtime fans committed poll snapshots out to live
// connections. The hub is the room registry: it knows which connections
// care about which poll and nothing else. No poll existence checks, no
// persistence, no retries.
package realtime

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"livepoll/internal/poll/models"
	id "livepoll/pkg/domain"
)

var (
	subscribersGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "livepoll_realtime_subscriptions",
		Help: "Current number of (connection, poll) subscriptions",
	})
	snapshotsSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "livepoll_realtime_snapshots_sent_total",
		Help: "Total number of snapshot messages enqueued to subscribers",
	})
	slowDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "livepoll_realtime_slow_subscribers_dropped_total",
		Help: "Total number of subscribers dropped for not keeping up",
	})
)

// Subscriber is a live connection able to accept a message without
// blocking. Enqueue returns false when the peer cannot keep up; the hub
// then drops and closes it so one slow connection never stalls a room.
type Subscriber interface {
	Enqueue(msg []byte) bool
	Close()
}

// voteUpdate is the push message subscribers receive on every commit.
// Always the full poll state: a subscriber that missed any number of
// updates converges on the next one.
type voteUpdate struct {
	Type string       `json:"type"`
	Poll *models.Poll `json:"poll"`
}

type room struct {
	subscribers map[Subscriber]struct{}

	// lastTotal gates delivery to commit order. Totals strictly
	// increase with each commit, so a snapshot at or below the gate
	// lost a publish race and is already superseded.
	lastTotal int
}

type Hub struct {
	mu          sync.Mutex
	rooms       map[id.PollID]*room
	memberships map[Subscriber]map[id.PollID]struct{}
	logger      *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		rooms:       make(map[id.PollID]*room),
		memberships: make(map[Subscriber]map[id.PollID]struct{}),
		logger:      logger,
	}
}

// Subscribe adds sub to the poll's interest set. Idempotent. The poll
// need not exist yet; joining an absent poll is a no-op until it is
// created and votes arrive.
func (h *Hub) Subscribe(sub Subscriber, pollID id.PollID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	r := h.rooms[pollID]
	if r == nil {
		r = &room{subscribers: make(map[Subscriber]struct{})}
		h.rooms[pollID] = r
	}
	if _, ok := r.subscribers[sub]; ok {
		return
	}
	r.subscribers[sub] = struct{}{}

	polls := h.memberships[sub]
	if polls == nil {
		polls = make(map[id.PollID]struct{})
		h.memberships[sub] = polls
	}
	polls[pollID] = struct{}{}

	subscribersGauge.Inc()
}

// UnsubscribeAll removes sub from every room it joined. Called on
// connection close; empty rooms are deleted so nothing dangles.
func (h *Hub) UnsubscribeAll(sub Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(sub)
}

func (h *Hub) removeLocked(sub Subscriber) {
	for pollID := range h.memberships[sub] {
		if r := h.rooms[pollID]; r != nil {
			delete(r.subscribers, sub)
			subscribersGauge.Dec()
			if len(r.subscribers) == 0 {
				delete(h.rooms, pollID)
			}
		}
	}
	delete(h.memberships, sub)
}

// Publish sends the snapshot to every current subscriber of the poll
// and nobody else. Best effort per connection: a full send buffer drops
// that subscriber rather than blocking the rest of the room.
func (h *Hub) Publish(pollID id.PollID, snapshot *models.Poll) {
	msg, err := json.Marshal(voteUpdate{Type: "voteUpdate", Poll: snapshot})
	if err != nil {
		h.logger.Error("failed to marshal snapshot", "poll_id", pollID.String(), "error", err.Error())
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	r := h.rooms[pollID]
	if r == nil {
		return
	}
	total := snapshot.TotalVotes()
	if total <= r.lastTotal {
		// A later commit already went out.
		return
	}
	r.lastTotal = total

	for sub := range r.subscribers {
		if sub.Enqueue(msg) {
			snapshotsSent.Inc()
			continue
		}
		slowDropped.Inc()
		h.logger.Warn("dropping slow subscriber", "poll_id", pollID.String())
		h.removeLocked(sub)
		sub.Close()
	}
}

// RoomSize reports the current subscriber count for a poll.
func (h *Hub) RoomSize(pollID id.PollID) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if r := h.rooms[pollID]; r != nil {
		return len(r.subscribers)
	}
	return 0
}

// Rooms reports the number of polls with at least one subscriber.
func (h *Hub) Rooms() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms)
}
