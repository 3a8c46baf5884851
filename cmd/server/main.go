// Command server runs the Peryon auth API: the Strava mobile login flow,
// token refresh, and user profile lookup.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"peryon/internal/auth/exchange"
	authhandler "peryon/internal/auth/handler"
	"peryon/internal/auth/service"
	"peryon/internal/auth/store/handoff"
	"peryon/internal/platform/config"
	"peryon/internal/platform/httpserver"
	"peryon/internal/platform/kafka"
	"peryon/internal/platform/logger"
	"peryon/internal/platform/metrics"
	"peryon/internal/platform/middleware"
	platformredis "peryon/internal/platform/redis"
	userhandler "peryon/internal/user/handler"
	userstore "peryon/internal/user/store"
	"peryon/pkg/audit"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "server: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.New(cfg.Development())
	m := metrics.New()

	users, closeUsers, err := buildUserStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeUsers()

	sessions, closeSessions, err := buildHandoffStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeSessions()

	var publisher audit.Publisher = audit.NopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		producer, err := kafka.NewProducer(cfg.KafkaBrokers, cfg.AuditTopic, log)
		if err != nil {
			return fmt.Errorf("connect kafka: %w", err)
		}
		defer producer.Close()
		publisher = producer
		log.Info("audit events enabled", "topic", cfg.AuditTopic)
	}

	exchanger, err := exchange.New(cfg.Strava, log)
	if err != nil {
		return fmt.Errorf("configure strava exchange: %w", err)
	}

	svc := service.New(users, sessions, exchanger, log, m, cfg.AppScheme,
		service.WithAuditPublisher(publisher))

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recovery(log))
	router.Use(middleware.Logger(log))
	router.Use(middleware.Latency(m))
	router.Use(middleware.Timeout(cfg.Strava.Timeout + cfg.Strava.Timeout/2))

	authhandler.New(svc, log).Register(router)
	userhandler.New(users, log).Register(router)
	router.Handle("/metrics", promhttp.Handler())
	router.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := httpserver.New(cfg.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server listening", "addr", cfg.Addr, "env", cfg.Environment)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// buildUserStore picks Postgres when configured, the in-memory store
// otherwise. The in-memory fallback is refused outside development.
func buildUserStore(ctx context.Context, cfg config.Config, log *slog.Logger) (userstore.Store, func(), error) {
	if cfg.DatabaseURL == "" {
		if !cfg.Development() {
			return nil, nil, fmt.Errorf("DATABASE_URL required outside development")
		}
		log.Warn("no DATABASE_URL, using in-memory user store")
		return userstore.NewInMemory(), func() {}, nil
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("ping database: %w", err)
	}
	return userstore.NewPostgres(db), func() { db.Close() }, nil
}

// buildHandoffStore picks Redis when configured so minted tokens survive
// instance restarts and load-balanced deployments.
func buildHandoffStore(ctx context.Context, cfg config.Config, log *slog.Logger) (handoff.Store, func(), error) {
	client, err := platformredis.New(ctx, cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect redis: %w", err)
	}
	if client == nil {
		log.Warn("no REDIS_URL, using in-memory handoff store")
		return handoff.NewInMemory(), func() {}, nil
	}
	return handoff.NewRedis(client.Client), func() { client.Close() }, nil
}
