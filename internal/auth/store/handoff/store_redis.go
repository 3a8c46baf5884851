package handoff

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"

	"peryon/pkg/platform/sentinel"
)

var redeemDurationMs = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "peryon_handoff_redeem_duration_ms",
	Help:    "Latency of handoff session redeems in milliseconds",
	Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25},
})

const sessionKeyPrefix = "handoff:session:"

// Redis is the shared handoff store for multi-instance deployments. TTL
// enforcement and the sweep are Redis's problem; GETDEL keeps the
// remove-then-return step atomic.
type Redis struct {
	client *redis.Client
}

// NewRedis constructs a Redis-backed handoff store. The client lifecycle is
// managed externally.
func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func (s *Redis) Mint(ctx context.Context, userID uuid.UUID) (string, error) {
	token := uuid.NewString()
	key := sessionKeyPrefix + token
	// SET NX guards the (vanishingly unlikely) token collision: never
	// overwrite a live entry.
	ok, err := s.client.SetNX(ctx, key, userID.String(), TTL).Result()
	if err != nil {
		return "", fmt.Errorf("mint handoff session: %w", err)
	}
	if !ok {
		return s.Mint(ctx, userID)
	}
	return token, nil
}

func (s *Redis) RedeemAndInvalidate(ctx context.Context, token string) (uuid.UUID, error) {
	start := time.Now()
	defer func() {
		redeemDurationMs.Observe(float64(time.Since(start).Microseconds()) / 1000.0)
	}()

	val, err := s.client.GetDel(ctx, sessionKeyPrefix+token).Result()
	if errors.Is(err, redis.Nil) {
		return uuid.Nil, fmt.Errorf("handoff session not found: %w", sentinel.ErrNotFound)
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("redeem handoff session: %w", err)
	}

	userID, err := uuid.Parse(val)
	if err != nil {
		return uuid.Nil, fmt.Errorf("corrupt handoff session value: %w", err)
	}
	return userID, nil
}
