package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"peryon/internal/user/models"
	"peryon/pkg/platform/sentinel"
)

// SeedDevelopmentUsers inserts demo athletes for local development. Existing
// rows are left alone: conflicts mean the database was already seeded.
func SeedDevelopmentUsers(ctx context.Context, s Store) error {
	picture := "https://dgalywyr863hv.cloudfront.net/pictures/athletes/1000001/medium.jpg"
	demo := []*models.User{
		{
			ID:             uuid.New(),
			FirstName:      "Dev",
			LastName:       "Rider",
			Email:          "athlete1000001@strava.com",
			StravaID:       1000001,
			ProfilePicture: &picture,
		},
		{
			ID:        uuid.New(),
			FirstName: "Test",
			LastName:  "Commuter",
			Email:     "athlete1000002@strava.com",
			StravaID:  1000002,
		},
	}

	now := time.Now()
	for _, u := range demo {
		u.CreatedAt = now
		if err := s.Create(ctx, u); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				continue
			}
			return err
		}
	}
	return nil
}
