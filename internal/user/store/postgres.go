package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"peryon/internal/user/models"
	"peryon/pkg/platform/sentinel"
)

// uniqueViolation is the Postgres error code for unique constraint failures.
const uniqueViolation = "23505"

// Postgres is the production user store.
type Postgres struct {
	db *sql.DB
}

// NewPostgres wraps an open database handle. Migrations are owned by
// cmd/migrate, not the store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const userColumns = `id, first_name, last_name, email, strava_id, profile_picture,
	strava_access_token, strava_refresh_token, token_expires_at, created_at, updated_at`

func (s *Postgres) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, first_name, last_name, email, strava_id, profile_picture,
			strava_access_token, strava_refresh_token, token_expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`
	err := s.db.QueryRowContext(ctx, query,
		user.ID, user.FirstName, user.LastName, user.Email, user.StravaID,
		user.ProfilePicture, user.AccessToken, user.RefreshToken, user.TokenExpiresAt,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return fmt.Errorf("user already exists: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return s.scanUser(s.db.QueryRowContext(ctx, query, id))
}

func (s *Postgres) FindByStravaID(ctx context.Context, stravaID int64) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE strava_id = $1`
	return s.scanUser(s.db.QueryRowContext(ctx, query, stravaID))
}

func (s *Postgres) FindByRefreshToken(ctx context.Context, refreshToken string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE strava_refresh_token = $1`
	return s.scanUser(s.db.QueryRowContext(ctx, query, refreshToken))
}

// UpdateCredentials replaces the provider credential fields in one statement
// so the bundle can never be observed half-written.
func (s *Postgres) UpdateCredentials(ctx context.Context, user *models.User) error {
	query := `
		UPDATE users
		SET strava_access_token = $2,
			strava_refresh_token = $3,
			token_expires_at = $4,
			profile_picture = $5,
			updated_at = now()
		WHERE id = $1
	`
	result, err := s.db.ExecContext(ctx, query,
		user.ID, user.AccessToken, user.RefreshToken, user.TokenExpiresAt, user.ProfilePicture,
	)
	if err != nil {
		return fmt.Errorf("update credentials: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update credentials: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("user not found: %w", sentinel.ErrNotFound)
	}
	return nil
}

func (s *Postgres) scanUser(row *sql.Row) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(
		&user.ID, &user.FirstName, &user.LastName, &user.Email, &user.StravaID,
		&user.ProfilePicture, &user.AccessToken, &user.RefreshToken, &user.TokenExpiresAt,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user not found: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return user, nil
}
