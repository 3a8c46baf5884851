package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"peryon/internal/user/models"
	"peryon/pkg/platform/sentinel"
)

// InMemory stores users in memory for tests and development.
type InMemory struct {
	mu    sync.RWMutex
	users map[uuid.UUID]*models.User
}

// NewInMemory constructs an empty in-memory user store.
func NewInMemory() *InMemory {
	return &InMemory{users: make(map[uuid.UUID]*models.User)}
}

func (s *InMemory) Create(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.StravaID == user.StravaID {
			return fmt.Errorf("strava id %d taken: %w", user.StravaID, sentinel.ErrConflict)
		}
		if existing.Email == user.Email {
			return fmt.Errorf("email taken: %w", sentinel.ErrConflict)
		}
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	s.users[user.ID] = cloneUser(user)
	return nil
}

func (s *InMemory) FindByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if user, ok := s.users[id]; ok {
		return cloneUser(user), nil
	}
	return nil, fmt.Errorf("user not found: %w", sentinel.ErrNotFound)
}

func (s *InMemory) FindByStravaID(_ context.Context, stravaID int64) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, user := range s.users {
		if user.StravaID == stravaID {
			return cloneUser(user), nil
		}
	}
	return nil, fmt.Errorf("user not found: %w", sentinel.ErrNotFound)
}

func (s *InMemory) FindByRefreshToken(_ context.Context, refreshToken string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, user := range s.users {
		if user.RefreshToken != nil && *user.RefreshToken == refreshToken {
			return cloneUser(user), nil
		}
	}
	return nil, fmt.Errorf("user not found: %w", sentinel.ErrNotFound)
}

func (s *InMemory) UpdateCredentials(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.users[user.ID]
	if !ok {
		return fmt.Errorf("user not found: %w", sentinel.ErrNotFound)
	}
	// The bundle replaces together, never piecemeal.
	stored.AccessToken = user.AccessToken
	stored.RefreshToken = user.RefreshToken
	stored.TokenExpiresAt = user.TokenExpiresAt
	stored.ProfilePicture = user.ProfilePicture
	stored.UpdatedAt = user.UpdatedAt
	return nil
}

// cloneUser keeps callers from mutating stored state through shared pointers.
func cloneUser(u *models.User) *models.User {
	c := *u
	if u.ProfilePicture != nil {
		v := *u.ProfilePicture
		c.ProfilePicture = &v
	}
	if u.AccessToken != nil {
		v := *u.AccessToken
		c.AccessToken = &v
	}
	if u.RefreshToken != nil {
		v := *u.RefreshToken
		c.RefreshToken = &v
	}
	if u.TokenExpiresAt != nil {
		v := *u.TokenExpiresAt
		c.TokenExpiresAt = &v
	}
	return &c
}
