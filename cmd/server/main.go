package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"livepoll/internal/events"
	"livepoll/internal/platform/config"
	"livepoll/internal/platform/httpserver"
	"livepoll/internal/platform/logger"
	"livepoll/internal/platform/postgres"
	redisplatform "livepoll/internal/platform/redis"
	"livepoll/internal/poll/handler"
	pollmetrics "livepoll/internal/poll/metrics"
	"livepoll/internal/poll/service"
	"livepoll/internal/poll/store"
	memorystore "livepoll/internal/poll/store/memory"
	postgresstore "livepoll/internal/poll/store/postgres"
	"livepoll/internal/ratelimit"
	"livepoll/internal/realtime"
)

// main wires dependencies and owns the process lifecycle. Business
// logic lives in the internal service packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server exited", "error", err.Error())
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	st, cleanup, err := newStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	rdb, err := redisplatform.New(ctx, cfg.RedisURL)
	if err != nil {
		return err
	}
	if rdb != nil {
		defer rdb.Close()
	}

	var buckets ratelimit.BucketStore
	var memBuckets *ratelimit.InMemoryBucketStore
	if rdb != nil {
		buckets = ratelimit.NewRedisBucketStore(rdb.Client)
		log.Info("rate limiter using redis buckets")
	} else {
		memBuckets = ratelimit.NewInMemoryBucketStore()
		buckets = memBuckets
		log.Info("rate limiter using in-process buckets")
	}
	limiter := ratelimit.New(buckets, cfg.VoteRateLimit, cfg.VoteRateWindow, log)

	publisher, err := events.NewPublisher(splitBrokers(cfg.KafkaBrokers), cfg.KafkaTopic, log)
	if err != nil {
		return err
	}
	defer publisher.Close()

	hub := realtime.NewHub(log)

	svc := service.New(st, hub, log, cfg.BaseURL,
		service.WithMetrics(pollmetrics.New()),
		service.WithEvents(publisher),
	)

	router := chi.NewRouter()
	handler.New(svc, limiter, log).Register(router)
	router.Get("/ws", realtime.ServeWS(hub, log))
	router.Handle("/metrics", promhttp.Handler())
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := httpserver.New(cfg.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	if memBuckets != nil {
		g.Go(func() error {
			memBuckets.Run(gctx, cfg.VoteRateWindow)
			return nil
		})
	}
	g.Go(func() error {
		log.Info("starting livepoll server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// newStore picks the durable store when DATABASE_URL is set, otherwise
// the in-memory store for local development.
func newStore(ctx context.Context, cfg config.Config, log *slog.Logger) (store.Store, func(), error) {
	if cfg.DatabaseURL == "" {
		log.Warn("no DATABASE_URL configured, using in-memory store")
		return memorystore.New(), func() {}, nil
	}

	db, err := postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	pg := postgresstore.New(db)
	if err := pg.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}
	log.Info("using postgres store")
	return pg, func() { db.Close() }, nil
}

func splitBrokers(raw string) []string {
	if raw == "" {
		return nil
	}
	var brokers []string
	for _, b := range strings.Split(raw, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}
