// Package ratelimit bounds vote attempts per source address per window.
// It is a courtesy throttle on attempt rate only: duplicate-vote
// suppression is the storage layer's uniqueness constraints, and the
// limit is bypassable by switching source address. That trade-off is
// intentional.
package ratelimit

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Result describes one admission decision.
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
	Limit     int
}

// BucketStore tracks attempt counts per key within a sliding window.
type BucketStore interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*Result, error)
}

var throttled = promauto.NewCounter(prometheus.CounterOpts{
	Name: "livepoll_ratelimit_throttled_total",
	Help: "Total number of vote attempts rejected by the rate limiter",
})

// Limiter applies one limit/window pair over a bucket store.
type Limiter struct {
	store  BucketStore
	limit  int
	window time.Duration
	logger *slog.Logger
}

func New(store BucketStore, limit int, window time.Duration, logger *slog.Logger) *Limiter {
	return &Limiter{
		store:  store,
		limit:  limit,
		window: window,
		logger: logger,
	}
}

// Admit decides whether another attempt from key may proceed. Fails
// open: if the bucket store is unreachable the attempt is admitted,
// since the ledger's constraints still hold and a broken Redis must not
// take voting down with it.
func (l *Limiter) Admit(ctx context.Context, key string) *Result {
	result, err := l.store.Allow(ctx, key, l.limit, l.window)
	if err != nil {
		l.logger.ErrorContext(ctx, "rate limit check failed, admitting", "error", err.Error())
		return &Result{Allowed: true, Remaining: 0, Limit: l.limit, ResetAt: time.Now().Add(l.window)}
	}
	if !result.Allowed {
		throttled.Inc()
	}
	return result
}

// Window reports the configured window, for Retry-After headers.
func (l *Limiter) Window() time.Duration { return l.window }
