//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"peryon/internal/user/models"
	"peryon/internal/user/store"
	"peryon/pkg/platform/sentinel"
	"peryon/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.Postgres
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateUsers(context.Background()))
}

func makeUser(stravaID int64) *models.User {
	u := &models.User{
		ID:        uuid.New(),
		FirstName: "Mara",
		LastName:  "Vels",
		Email:     uuid.NewString() + "@strava.com",
		StravaID:  stravaID,
		CreatedAt: time.Now(),
	}
	u.SetCredentials("access-"+uuid.NewString(), "refresh-"+uuid.NewString(), 21600, time.Now())
	return u
}

func (s *PostgresStoreSuite) TestCreateAndFindByID() {
	ctx := context.Background()
	u := makeUser(100)
	s.Require().NoError(s.store.Create(ctx, u))

	got, err := s.store.FindByID(ctx, u.ID)
	s.Require().NoError(err)
	s.Equal(u.Email, got.Email)
	s.EqualValues(100, got.StravaID)
	s.Require().NotNil(got.AccessToken)
	s.Equal(*u.AccessToken, *got.AccessToken)
	s.False(got.CreatedAt.IsZero())
}

func (s *PostgresStoreSuite) TestFindByStravaID() {
	ctx := context.Background()
	u := makeUser(200)
	s.Require().NoError(s.store.Create(ctx, u))

	got, err := s.store.FindByStravaID(ctx, 200)
	s.Require().NoError(err)
	s.Equal(u.ID, got.ID)

	_, err = s.store.FindByStravaID(ctx, 999)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestFindByRefreshToken() {
	ctx := context.Background()
	u := makeUser(300)
	s.Require().NoError(s.store.Create(ctx, u))

	got, err := s.store.FindByRefreshToken(ctx, *u.RefreshToken)
	s.Require().NoError(err)
	s.Equal(u.ID, got.ID)

	_, err = s.store.FindByRefreshToken(ctx, "nobody-owns-this")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestDuplicateStravaIDConflicts() {
	ctx := context.Background()
	s.Require().NoError(s.store.Create(ctx, makeUser(400)))

	err := s.store.Create(ctx, makeUser(400))
	s.ErrorIs(err, sentinel.ErrConflict)
}

func (s *PostgresStoreSuite) TestDuplicateEmailConflicts() {
	ctx := context.Background()
	first := makeUser(500)
	s.Require().NoError(s.store.Create(ctx, first))

	dup := makeUser(501)
	dup.Email = first.Email
	err := s.store.Create(ctx, dup)
	s.ErrorIs(err, sentinel.ErrConflict)
}

func (s *PostgresStoreSuite) TestUpdateCredentials() {
	ctx := context.Background()
	u := makeUser(600)
	s.Require().NoError(s.store.Create(ctx, u))

	u.SetCredentials("access-new", "refresh-new", 3600, time.Now())
	picture := "https://example.com/a.jpg"
	u.ProfilePicture = &picture
	s.Require().NoError(s.store.UpdateCredentials(ctx, u))

	got, err := s.store.FindByID(ctx, u.ID)
	s.Require().NoError(err)
	s.Equal("access-new", *got.AccessToken)
	s.Equal("refresh-new", *got.RefreshToken)
	s.Require().NotNil(got.ProfilePicture)
	s.Equal(picture, *got.ProfilePicture)
	s.Require().NotNil(got.TokenExpiresAt)
	s.WithinDuration(time.Now().Add(time.Hour), *got.TokenExpiresAt, 10*time.Second)
}

func (s *PostgresStoreSuite) TestUpdateCredentialsMissingUser() {
	ctx := context.Background()
	u := makeUser(700)

	err := s.store.UpdateCredentials(ctx, u)
	s.ErrorIs(err, sentinel.ErrNotFound)
}
