package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const bucketKeyPrefix = "rl:vote:"

// RedisBucketStore implements BucketStore on a Redis sorted set per
// key: members are attempt ids scored by timestamp, so trimming by
// score gives the sliding window. Use when rate-limit state must
// survive restarts or be shared.
type RedisBucketStore struct {
	client *redis.Client
}

func NewRedisBucketStore(client *redis.Client) *RedisBucketStore {
	return &RedisBucketStore{client: client}
}

func (s *RedisBucketStore) Allow(ctx context.Context, key string, limit int, window time.Duration) (*Result, error) {
	now := time.Now()
	cutoff := now.Add(-window)
	rkey := bucketKeyPrefix + key

	// Trim expired attempts and count the rest in one round trip.
	pipe := s.client.Pipeline()
	pipe.ZRemRangeByScore(ctx, rkey, "0", strconv.FormatInt(cutoff.UnixNano(), 10))
	card := pipe.ZCard(ctx, rkey)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("count attempts: %w", err)
	}

	count := int(card.Val())
	if count >= limit {
		oldest, err := s.client.ZRangeWithScores(ctx, rkey, 0, 0).Result()
		resetAt := now.Add(window)
		if err == nil && len(oldest) == 1 {
			resetAt = time.Unix(0, int64(oldest[0].Score)).Add(window)
		}
		return &Result{Allowed: false, Remaining: 0, ResetAt: resetAt, Limit: limit}, nil
	}

	member := strconv.FormatInt(now.UnixNano(), 10) + ":" + strconv.Itoa(count)
	pipe = s.client.Pipeline()
	pipe.ZAdd(ctx, rkey, redis.Z{Score: float64(now.UnixNano()), Member: member})
	pipe.PExpire(ctx, rkey, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("record attempt: %w", err)
	}

	return &Result{
		Allowed:   true,
		Remaining: limit - count - 1,
		ResetAt:   now.Add(window),
		Limit:     limit,
	}, nil
}
