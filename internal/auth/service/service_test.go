package service

import (
	"context"
	"log/slog"
	"net/url"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"peryon/internal/auth/models"
	"peryon/internal/platform/metrics"
	usermodels "peryon/internal/user/models"
	"peryon/internal/user/store"
	"peryon/pkg/audit"
	dErrors "peryon/pkg/domain-errors"
	"peryon/pkg/platform/sentinel"
)

// fakeExchanger scripts provider responses.
type fakeExchanger struct {
	exchangeBundle *models.CredentialBundle
	exchangeErr    error
	refreshBundle  *models.CredentialBundle
	refreshErr     error

	gotCode         string
	gotRedirectURI  string
	gotRefreshToken string
}

func (f *fakeExchanger) ExchangeCode(_ context.Context, code, redirectURI string) (*models.CredentialBundle, error) {
	f.gotCode = code
	f.gotRedirectURI = redirectURI
	return f.exchangeBundle, f.exchangeErr
}

func (f *fakeExchanger) RefreshCredential(_ context.Context, refreshToken string) (*models.CredentialBundle, error) {
	f.gotRefreshToken = refreshToken
	return f.refreshBundle, f.refreshErr
}

// capturingPublisher records audit events in order.
type capturingPublisher struct {
	events []audit.Event
}

func (p *capturingPublisher) Publish(_ context.Context, e audit.Event) {
	p.events = append(p.events, e)
}

func (p *capturingPublisher) actions() []audit.Action {
	out := make([]audit.Action, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Action)
	}
	return out
}

type ServiceSuite struct {
	suite.Suite
	users     *store.InMemory
	sessions  *fakeHandoff
	exchanger *fakeExchanger
	published *capturingPublisher
	svc       *Service
	now       time.Time
}

// fakeHandoff is a scriptable handoff store; the happy path mints a fixed
// token and redeems it once.
type fakeHandoff struct {
	mintToken string
	mintErr   error
	entries   map[string]uuid.UUID
	redeemErr error
}

func (f *fakeHandoff) Mint(_ context.Context, userID uuid.UUID) (string, error) {
	if f.mintErr != nil {
		return "", f.mintErr
	}
	f.entries[f.mintToken] = userID
	return f.mintToken, nil
}

func (f *fakeHandoff) RedeemAndInvalidate(_ context.Context, token string) (uuid.UUID, error) {
	if f.redeemErr != nil {
		return uuid.Nil, f.redeemErr
	}
	id, ok := f.entries[token]
	if !ok {
		return uuid.Nil, sentinel.ErrNotFound
	}
	delete(f.entries, token)
	return id, nil
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	s.users = store.NewInMemory()
	s.sessions = &fakeHandoff{mintToken: "tok-1", entries: map[string]uuid.UUID{}}
	s.exchanger = &fakeExchanger{}
	s.published = &capturingPublisher{}
	s.svc = New(
		s.users,
		s.sessions,
		s.exchanger,
		slog.New(slog.DiscardHandler),
		metrics.NewForTest(),
		"peryon",
		WithClock(func() time.Time { return s.now }),
		WithAuditPublisher(s.published),
	)
}

func (s *ServiceSuite) bundle() *models.CredentialBundle {
	return &models.CredentialBundle{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		ExpiresIn:    21600,
		AthleteID:    4242,
		FirstName:    "Mara",
		LastName:     "Vels",
	}
}

func (s *ServiceSuite) TestCallbackCreatesUserAndMintsSession() {
	s.exchanger.exchangeBundle = s.bundle()

	res, err := s.svc.HandleCallback(s.T().Context(), models.CallbackParams{
		Code:        "auth-code",
		RedirectURI: "https://api.example.com/auth/strava/mobile-callback",
	})
	s.Require().NoError(err)

	u, err := url.Parse(res.RedirectURL)
	s.Require().NoError(err)
	s.Equal("peryon", u.Scheme)
	s.Equal("auth", u.Host)
	s.Equal("/strava/callback", u.Path)
	s.Equal("tok-1", u.Query().Get("session_token"))

	s.Equal("auth-code", s.exchanger.gotCode)
	s.Equal("https://api.example.com/auth/strava/mobile-callback", s.exchanger.gotRedirectURI)

	created, err := s.users.FindByStravaID(s.T().Context(), 4242)
	s.Require().NoError(err)
	s.Equal("Mara", created.FirstName)
	s.Equal("athlete4242@strava.com", created.Email)
	s.Require().NotNil(created.AccessToken)
	s.Equal("access-1", *created.AccessToken)
	s.Require().NotNil(created.TokenExpiresAt)
	s.Equal(s.now.Add(21600*time.Second), *created.TokenExpiresAt)

	s.Equal([]audit.Action{audit.ActionUserCreated, audit.ActionLoginSucceeded}, s.published.actions())
}

func (s *ServiceSuite) TestCallbackUpdatesExistingUser() {
	existing := s.seedUser("stale-access", "stale-refresh")
	s.exchanger.exchangeBundle = s.bundle()

	_, err := s.svc.HandleCallback(s.T().Context(), models.CallbackParams{Code: "auth-code"})
	s.Require().NoError(err)

	updated, err := s.users.FindByID(s.T().Context(), existing.ID)
	s.Require().NoError(err)
	s.Equal("access-1", *updated.AccessToken)
	s.Equal("refresh-1", *updated.RefreshToken)

	s.Equal([]audit.Action{audit.ActionLoginSucceeded}, s.published.actions())
}

func (s *ServiceSuite) TestCallbackProviderErrorRedirectsWithError() {
	res, err := s.svc.HandleCallback(s.T().Context(), models.CallbackParams{
		Error:            "access_denied",
		ErrorDescription: "The user denied the request",
	})
	s.Require().NoError(err)

	u, err := url.Parse(res.RedirectURL)
	s.Require().NoError(err)
	s.Equal("access_denied", u.Query().Get("error"))
	s.Equal("The user denied the request", u.Query().Get("error_description"))
	s.Empty(u.Query().Get("session_token"))

	// No provider call happened.
	s.Empty(s.exchanger.gotCode)
	s.Equal([]audit.Action{audit.ActionLoginFailed}, s.published.actions())
}

func (s *ServiceSuite) TestCallbackMissingCodeFails() {
	_, err := s.svc.HandleCallback(s.T().Context(), models.CallbackParams{})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
}

func (s *ServiceSuite) TestCallbackExchangeFailureSurfaces() {
	s.exchanger.exchangeErr = dErrors.Upstream(400, "invalid code")

	_, err := s.svc.HandleCallback(s.T().Context(), models.CallbackParams{Code: "bad"})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeUpstream))
	s.Equal([]audit.Action{audit.ActionLoginFailed}, s.published.actions())
}

func (s *ServiceSuite) TestRedeemSessionReturnsGrant() {
	user := s.seedUser("access-1", "refresh-1")
	s.sessions.entries["tok-1"] = user.ID

	grant, err := s.svc.RedeemSession(s.T().Context(), "tok-1", "Chrome on Mac OS X")
	s.Require().NoError(err)
	s.Equal("access-1", grant.AccessToken)
	s.Equal("refresh-1", grant.RefreshToken)
	s.Equal(user.ID, grant.User.ID)
	s.Positive(grant.ExpiresIn)

	// The audit trail carries who redeemed and from what.
	s.Require().Len(s.published.events, 1)
	event := s.published.events[0]
	s.Equal(audit.ActionSessionRedeemed, event.Action)
	s.Equal(user.ID.String(), event.UserID)
	s.Equal("Chrome on Mac OS X", event.Device)

	// Single use.
	_, err = s.svc.RedeemSession(s.T().Context(), "tok-1", "Chrome on Mac OS X")
	s.True(dErrors.HasCode(err, dErrors.CodeSessionNotFound))
}

func (s *ServiceSuite) TestRedeemSessionUnknownToken() {
	_, err := s.svc.RedeemSession(s.T().Context(), "no-such-token", "Chrome on Mac OS X")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeSessionNotFound))
}

func (s *ServiceSuite) TestRedeemSessionEmptyToken() {
	_, err := s.svc.RedeemSession(s.T().Context(), "", "Chrome on Mac OS X")
	s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
}

func (s *ServiceSuite) TestRedeemSessionUserGone() {
	s.sessions.entries["tok-1"] = uuid.New()

	_, err := s.svc.RedeemSession(s.T().Context(), "tok-1", "Chrome on Mac OS X")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestRedeemSessionFloorsExpiredCredential() {
	user := s.seedUser("access-1", "refresh-1")
	past := s.now.Add(-time.Hour)
	user.TokenExpiresAt = &past
	s.Require().NoError(s.users.UpdateCredentials(s.T().Context(), user))
	s.sessions.entries["tok-1"] = user.ID

	grant, err := s.svc.RedeemSession(s.T().Context(), "tok-1", "Chrome on Mac OS X")
	s.Require().NoError(err)
	s.Zero(grant.ExpiresIn)
}

func (s *ServiceSuite) TestRefreshRotatesCredentials() {
	user := s.seedUser("stale-access", "refresh-old")
	s.exchanger.refreshBundle = &models.CredentialBundle{
		AccessToken:  "access-new",
		RefreshToken: "refresh-new",
		ExpiresIn:    21600,
	}

	res, err := s.svc.Refresh(s.T().Context(), "refresh-old")
	s.Require().NoError(err)
	s.Equal("access-new", res.AccessToken)
	s.Equal("refresh-new", res.RefreshToken)
	s.Equal(21600, res.ExpiresIn)
	s.Equal("refresh-old", s.exchanger.gotRefreshToken)

	stored, err := s.users.FindByID(s.T().Context(), user.ID)
	s.Require().NoError(err)
	s.Equal("access-new", *stored.AccessToken)
	s.Equal("refresh-new", *stored.RefreshToken)

	// The old token no longer resolves a user.
	_, err = s.users.FindByRefreshToken(s.T().Context(), "refresh-old")
	s.Require().Error(err)

	s.Equal([]audit.Action{audit.ActionTokenRefreshed}, s.published.actions())
}

func (s *ServiceSuite) TestRefreshUnknownTokenUnauthorized() {
	_, err := s.svc.Refresh(s.T().Context(), "nobody-owns-this")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func (s *ServiceSuite) TestRefreshEmptyToken() {
	_, err := s.svc.Refresh(s.T().Context(), "")
	s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
}

func (s *ServiceSuite) TestRefreshUpstreamFailureKeepsStoredTokens() {
	user := s.seedUser("access-1", "refresh-old")
	s.exchanger.refreshErr = dErrors.Upstream(401, "token revoked")

	_, err := s.svc.Refresh(s.T().Context(), "refresh-old")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeUpstream))

	stored, err := s.users.FindByID(s.T().Context(), user.ID)
	s.Require().NoError(err)
	s.Equal("refresh-old", *stored.RefreshToken)
}

func (s *ServiceSuite) seedUser(accessToken, refreshToken string) *usermodels.User {
	user := &usermodels.User{
		ID:        uuid.New(),
		FirstName: "Mara",
		LastName:  "Vels",
		Email:     "athlete4242@strava.com",
		StravaID:  4242,
		CreatedAt: s.now.Add(-24 * time.Hour),
	}
	user.SetCredentials(accessToken, refreshToken, 3600, s.now)
	s.Require().NoError(s.users.Create(s.T().Context(), user))
	return user
}
