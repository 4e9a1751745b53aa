package config

import (
	"os"
	"strconv"
	"time"
)

// Config captures everything main needs to wire the server. Values come
// from the environment so deployments stay twelve-factor; defaults suit
// local development.
type Config struct {
	Addr    string
	BaseURL string

	// DatabaseURL selects the durable store. Empty means in-memory
	// storage (dev/test only; state dies with the process).
	DatabaseURL string

	// RedisURL selects the rate limiter's bucket store. Empty means the
	// in-process sliding window.
	RedisURL string

	// KafkaBrokers enables the vote event stream when non-empty.
	KafkaBrokers string
	KafkaTopic   string

	// Vote throttle: attempts allowed per source address per window.
	// A courtesy limit on attempt rate only; duplicate suppression is
	// the storage layer's uniqueness constraints.
	VoteRateLimit  int
	VoteRateWindow time.Duration
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() Config {
	cfg := Config{
		Addr:           envOr("LIVEPOLL_ADDR", ":8080"),
		BaseURL:        envOr("LIVEPOLL_BASE_URL", "http://localhost:3000"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		RedisURL:       os.Getenv("REDIS_URL"),
		KafkaBrokers:   os.Getenv("KAFKA_BROKERS"),
		KafkaTopic:     envOr("KAFKA_VOTE_TOPIC", "livepoll.votes"),
		VoteRateLimit:  5,
		VoteRateWindow: 60 * time.Second,
	}

	if v := os.Getenv("VOTE_RATE_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.VoteRateLimit = n
		}
	}
	if v := os.Getenv("VOTE_RATE_WINDOW"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.VoteRateWindow = d
		}
	}

	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
