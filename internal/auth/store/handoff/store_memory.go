package handoff

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"peryon/pkg/platform/sentinel"
)

type entry struct {
	userID    uuid.UUID
	expiresAt time.Time
}

// InMemory stores handoff sessions in process memory. Suitable for a single
// instance: tokens live five minutes and the redeeming client calls back
// within seconds. Multi-instance deployments use the Redis store instead.
type InMemory struct {
	mu       sync.Mutex
	sessions map[string]entry
	now      func() time.Time
}

// NewInMemory constructs an empty in-memory handoff store.
func NewInMemory() *InMemory {
	return &InMemory{
		sessions: make(map[string]entry),
		now:      time.Now,
	}
}

// NewInMemoryWithClock injects the clock so tests can move time without
// sleeping.
func NewInMemoryWithClock(now func() time.Time) *InMemory {
	s := NewInMemory()
	s.now = now
	return s
}

// Mint stores a fresh token and opportunistically sweeps expired entries.
// The sweep is a full scan; acceptable while mint rate stays low.
func (s *InMemory) Mint(_ context.Context, userID uuid.UUID) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for token, e := range s.sessions {
		if !e.expiresAt.After(now) {
			delete(s.sessions, token)
		}
	}

	token := uuid.NewString()
	for {
		if _, taken := s.sessions[token]; !taken {
			break
		}
		token = uuid.NewString()
	}
	s.sessions[token] = entry{userID: userID, expiresAt: now.Add(TTL)}
	return token, nil
}

// RedeemAndInvalidate removes the entry under the lock, then checks expiry.
// Removal happens regardless, so an expired token is also gone after the
// first attempt.
func (s *InMemory) RedeemAndInvalidate(_ context.Context, token string) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[token]
	if !ok {
		return uuid.Nil, fmt.Errorf("handoff session not found: %w", sentinel.ErrNotFound)
	}
	delete(s.sessions, token)

	if !e.expiresAt.After(s.now()) {
		return uuid.Nil, fmt.Errorf("handoff session expired: %w", sentinel.ErrNotFound)
	}
	return e.userID, nil
}

// Len reports the live entry count. Test hook.
func (s *InMemory) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
