package store

import (
	"context"

	"github.com/google/uuid"

	"peryon/internal/user/models"
)

// Error Contract:
// All store methods follow this error pattern:
// - Return sentinel.ErrNotFound (wrapped) when the requested user does not exist
// - Return sentinel.ErrConflict (wrapped) on unique violations (email, strava id)
// - Return nil for successful operations
// - Return wrapped errors with context for infrastructure failures

// Store persists users. The auth core only mutates provider credentials
// through UpdateCredentials so the bundle always replaces atomically.
type Store interface {
	Create(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindByStravaID(ctx context.Context, stravaID int64) (*models.User, error)
	FindByRefreshToken(ctx context.Context, refreshToken string) (*models.User, error)
	UpdateCredentials(ctx context.Context, user *models.User) error
}
