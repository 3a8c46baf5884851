// Package config loads server configuration from the environment so main
// stays lean.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	dErrors "peryon/pkg/domain-errors"
)

// Config captures everything the server and the migration worker need.
type Config struct {
	Addr        string `env:"PERYON_ADDR" envDefault:":8080"`
	Environment string `env:"PERYON_ENV" envDefault:"production"`

	// DatabaseURL is the Postgres DSN. When empty the server falls back to
	// the in-memory user store (development only).
	DatabaseURL string `env:"DATABASE_URL"`

	// RedisURL enables the shared handoff session store. When empty the
	// single-instance in-memory store is used.
	RedisURL string `env:"REDIS_URL"`

	// KafkaBrokers enables the audit event producer. When empty audit events
	// are discarded.
	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`
	AuditTopic   string   `env:"AUDIT_TOPIC" envDefault:"peryon.audit"`

	Strava StravaConfig

	// AppScheme is the mobile deep-link scheme the callback redirects to.
	AppScheme string `env:"APP_SCHEME" envDefault:"peryon"`

	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// StravaConfig holds the identity provider's client credentials. Absence is a
// startup error, not a per-request one.
type StravaConfig struct {
	ClientID     string        `env:"STRAVA_CLIENT_ID"`
	ClientSecret string        `env:"STRAVA_CLIENT_SECRET"`
	Timeout      time.Duration `env:"STRAVA_TIMEOUT" envDefault:"10s"`
}

// Load parses configuration from environment variables.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// Validate checks the credentials the auth core cannot run without.
func (s StravaConfig) Validate() error {
	if s.ClientID == "" {
		return dErrors.New(dErrors.CodeConfig, "STRAVA_CLIENT_ID not configured")
	}
	if s.ClientSecret == "" {
		return dErrors.New(dErrors.CodeConfig, "STRAVA_CLIENT_SECRET not configured")
	}
	return nil
}

// Development reports whether dev-only conveniences (seed data, memory
// stores) are allowed.
func (c Config) Development() bool {
	return c.Environment == "development"
}
