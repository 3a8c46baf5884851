// Package handoff bridges the server-rendered OAuth redirect to the mobile
// app: a short-lived opaque token maps to a user identity and is exchanged
// exactly once for the real credentials.
package handoff

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// TTL bounds how long a minted token stays redeemable.
const TTL = 5 * time.Minute

// Error Contract:
// - RedeemAndInvalidate returns sentinel.ErrNotFound (wrapped) for unknown,
//   expired, and already-redeemed tokens alike; callers must not be able to
//   distinguish a replayed token from one that never existed.
// - Infrastructure failures (redis outage) come back wrapped with context.

// Store is the single-use, time-boxed token map. Implementations must be
// safe under arbitrary concurrent Mint/Redeem calls and must make the
// remove-then-return step atomic.
type Store interface {
	// Mint generates a cryptographically unguessable token for the user and
	// stores it with the TTL. The token is unique within the live set.
	Mint(ctx context.Context, userID uuid.UUID) (string, error)

	// RedeemAndInvalidate removes the entry and returns the user it resolved
	// to, exactly once per token.
	RedeemAndInvalidate(ctx context.Context, token string) (uuid.UUID, error)
}
