// Command migrate applies the embedded schema migrations and, in
// development, seeds demo users. Run as an init container or one-off job
// before the server starts.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"time"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"

	"peryon/internal/migrations"
	"peryon/internal/platform/config"
	"peryon/internal/platform/logger"
	"peryon/internal/user/store"
)

const (
	connectAttempts = 3
	connectBackoff  = 5 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Development())

	if cfg.DatabaseURL == "" {
		log.Error("DATABASE_URL not configured, nothing to migrate")
		os.Exit(1)
	}

	ctx := context.Background()

	db, err := connect(ctx, cfg.DatabaseURL, log)
	if err != nil {
		log.Error("database unreachable", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		log.Error("set goose dialect", "error", err)
		os.Exit(1)
	}
	if err := goose.UpContext(ctx, db, "."); err != nil {
		log.Error("apply migrations", "error", err)
		os.Exit(1)
	}
	log.Info("migrations applied")

	if cfg.Development() {
		if err := store.SeedDevelopmentUsers(ctx, store.NewPostgres(db)); err != nil {
			log.Error("seed development users", "error", err)
			os.Exit(1)
		}
		log.Info("development users seeded")
	}
}

// connect opens the database and waits for it to answer; the database
// container usually comes up alongside this job.
func connect(ctx context.Context, dsn string, log *slog.Logger) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	var pingErr error
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		if pingErr = db.PingContext(ctx); pingErr == nil {
			return db, nil
		}
		log.Warn("database not ready", "attempt", attempt, "error", pingErr)
		if attempt < connectAttempts {
			time.Sleep(connectBackoff)
		}
	}
	db.Close()
	return nil, pingErr
}
