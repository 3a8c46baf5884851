// Package service orchestrates the mobile login flow: callback handling,
// handoff session redemption, and token refresh. Each operation produces
// exactly one user-visible outcome; nothing is swallowed, nothing retried.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/google/uuid"

	"peryon/internal/auth/exchange"
	"peryon/internal/auth/models"
	"peryon/internal/auth/store/handoff"
	"peryon/internal/platform/metrics"
	"peryon/internal/platform/middleware"
	usermodels "peryon/internal/user/models"
	userstore "peryon/internal/user/store"
	"peryon/pkg/audit"
	dErrors "peryon/pkg/domain-errors"
	"peryon/pkg/platform/sentinel"
)

// Exchanger is the identity-exchange collaborator.
type Exchanger interface {
	ExchangeCode(ctx context.Context, code, redirectURI string) (*models.CredentialBundle, error)
	RefreshCredential(ctx context.Context, refreshToken string) (*models.CredentialBundle, error)
}

// Service ties the exchange client, the handoff store, and the user store
// into the login state machine.
type Service struct {
	users     userstore.Store
	sessions  handoff.Store
	exchanger Exchanger
	logger    *slog.Logger
	metrics   *metrics.Metrics
	audit     audit.Publisher
	appScheme string
	now       func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock injects the clock for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithAuditPublisher wires the audit pipeline. Defaults to a nop.
func WithAuditPublisher(p audit.Publisher) Option {
	return func(s *Service) { s.audit = p }
}

// New constructs the auth service.
func New(users userstore.Store, sessions handoff.Store, exchanger Exchanger,
	logger *slog.Logger, m *metrics.Metrics, appScheme string, opts ...Option) *Service {
	s := &Service{
		users:     users,
		sessions:  sessions,
		exchanger: exchanger,
		logger:    logger,
		metrics:   m,
		audit:     audit.NopPublisher{},
		appScheme: appScheme,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// deepLink builds the mobile redirect target, e.g.
// peryon://auth/strava/callback?session_token=<tok>.
func (s *Service) deepLink(query url.Values) string {
	return s.appScheme + "://auth/strava/callback?" + query.Encode()
}

// HandleCallback drives a login attempt from the provider redirect to the
// minted handoff session. The returned CallbackResult is always a redirect
// back into the app; errors mean no redirect is safe and the handler must
// answer the browser directly.
func (s *Service) HandleCallback(ctx context.Context, p models.CallbackParams) (*models.CallbackResult, error) {
	requestID := middleware.GetRequestID(ctx)

	// Provider-reported error: no further provider calls, straight back to
	// the app with the error echoed.
	if p.Error != "" {
		s.logger.WarnContext(ctx, "strava oauth error",
			"error", p.Error,
			"error_description", p.ErrorDescription,
			"request_id", requestID,
		)
		s.metrics.LoginsFailed.Inc()
		s.audit.Publish(ctx, audit.Event{
			Action:    audit.ActionLoginFailed,
			Timestamp: s.now(),
			Reason:    p.Error,
			RequestID: requestID,
		})
		q := url.Values{}
		q.Set("error", p.Error)
		q.Set("error_description", p.ErrorDescription)
		return &models.CallbackResult{RedirectURL: s.deepLink(q)}, nil
	}

	if p.Code == "" {
		s.logger.WarnContext(ctx, "no authorization code received from strava", "request_id", requestID)
		return nil, dErrors.New(dErrors.CodeBadRequest, "no authorization code received")
	}

	s.metrics.LoginsStarted.Inc()

	bundle, err := s.exchanger.ExchangeCode(ctx, p.Code, p.RedirectURI)
	if err != nil {
		// The handoff token was never minted, so a mobile redirect is not
		// safe; surface the failure to the browser instead.
		s.metrics.LoginsFailed.Inc()
		s.audit.Publish(ctx, audit.Event{
			Action:    audit.ActionLoginFailed,
			Timestamp: s.now(),
			Reason:    "code exchange failed",
			RequestID: requestID,
		})
		return nil, fmt.Errorf("exchange authorization code: %w", err)
	}

	user, err := s.resolveUser(ctx, bundle, requestID)
	if err != nil {
		s.metrics.LoginsFailed.Inc()
		return nil, err
	}

	token, err := s.sessions.Mint(ctx, user.ID)
	if err != nil {
		s.metrics.LoginsFailed.Inc()
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create session")
	}
	s.metrics.SessionsMinted.Inc()
	s.metrics.LoginsSucceeded.Inc()
	s.audit.Publish(ctx, audit.Event{
		Action:    audit.ActionLoginSucceeded,
		Timestamp: s.now(),
		UserID:    user.ID.String(),
		StravaID:  user.StravaID,
		RequestID: requestID,
	})
	s.logger.InfoContext(ctx, "authentication successful, redirecting to mobile app",
		"user_id", user.ID,
		"request_id", requestID,
	)

	q := url.Values{}
	q.Set("session_token", token)
	return &models.CallbackResult{RedirectURL: s.deepLink(q)}, nil
}

// resolveUser upserts the local user for the exchanged bundle: existing
// athletes get their credential bundle replaced, new athletes get a record.
func (s *Service) resolveUser(ctx context.Context, bundle *models.CredentialBundle, requestID string) (*usermodels.User, error) {
	now := s.now()

	user, err := s.users.FindByStravaID(ctx, bundle.AthleteID)
	switch {
	case err == nil:
		s.logger.InfoContext(ctx, "updating existing user",
			"strava_id", bundle.AthleteID,
			"request_id", requestID,
		)
		user.SetCredentials(bundle.AccessToken, bundle.RefreshToken, bundle.ExpiresIn, now)
		user.ProfilePicture = bundle.ProfilePicture
		if err := s.users.UpdateCredentials(ctx, user); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist user")
		}
		return user, nil

	case errors.Is(err, sentinel.ErrNotFound):
		s.logger.InfoContext(ctx, "creating new user",
			"strava_id", bundle.AthleteID,
			"request_id", requestID,
		)
		user = &usermodels.User{
			ID:             uuid.New(),
			FirstName:      bundle.FirstName,
			LastName:       bundle.LastName,
			Email:          exchange.ResolveEmail(bundle),
			StravaID:       bundle.AthleteID,
			ProfilePicture: bundle.ProfilePicture,
			CreatedAt:      now,
		}
		user.SetCredentials(bundle.AccessToken, bundle.RefreshToken, bundle.ExpiresIn, now)
		if err := s.users.Create(ctx, user); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist user")
		}
		s.metrics.UsersCreated.Inc()
		s.audit.Publish(ctx, audit.Event{
			Action:    audit.ActionUserCreated,
			Timestamp: now,
			UserID:    user.ID.String(),
			StravaID:  user.StravaID,
			RequestID: requestID,
		})
		return user, nil

	default:
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up user")
	}
}

// RedeemSession exchanges a handoff token for the user's current credential
// bundle. Single use: the entry is gone after this call either way. The
// device label describes the redeeming client for the audit trail.
func (s *Service) RedeemSession(ctx context.Context, token, device string) (*models.SessionGrant, error) {
	requestID := middleware.GetRequestID(ctx)

	if token == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "session token is required")
	}

	userID, err := s.sessions.RedeemAndInvalidate(ctx, token)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.logger.WarnContext(ctx, "invalid or expired session token", "request_id", requestID)
			s.metrics.SessionsRejected.Inc()
			return nil, dErrors.New(dErrors.CodeSessionNotFound, "invalid or expired session token")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to redeem session")
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.logger.WarnContext(ctx, "user missing for redeemed session",
				"user_id", userID,
				"request_id", requestID,
			)
			return nil, dErrors.New(dErrors.CodeNotFound, "user not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user")
	}

	if user.AccessToken == nil || user.RefreshToken == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "user has no stored credentials")
	}

	s.metrics.SessionsRedeemed.Inc()
	s.audit.Publish(ctx, audit.Event{
		Action:    audit.ActionSessionRedeemed,
		Timestamp: s.now(),
		UserID:    user.ID.String(),
		StravaID:  user.StravaID,
		Device:    device,
		RequestID: requestID,
	})
	s.logger.InfoContext(ctx, "session token exchange successful",
		"user_id", user.ID,
		"device", device,
		"request_id", requestID,
	)

	return &models.SessionGrant{
		AccessToken:  *user.AccessToken,
		RefreshToken: *user.RefreshToken,
		ExpiresIn:    user.ExpiresIn(s.now()),
		User:         user,
	}, nil
}

// Refresh replaces the credential bundle of whichever user owns the
// presented refresh token. Does not involve the handoff store.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*models.RefreshResponse, error) {
	requestID := middleware.GetRequestID(ctx)

	if refreshToken == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "refresh_token is required")
	}

	user, err := s.users.FindByRefreshToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "unknown refresh token")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up user")
	}

	bundle, err := s.exchanger.RefreshCredential(ctx, refreshToken)
	if err != nil {
		return nil, fmt.Errorf("refresh credential: %w", err)
	}

	user.SetCredentials(bundle.AccessToken, bundle.RefreshToken, bundle.ExpiresIn, s.now())
	if err := s.users.UpdateCredentials(ctx, user); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist user")
	}

	s.metrics.TokensRefreshed.Inc()
	s.audit.Publish(ctx, audit.Event{
		Action:    audit.ActionTokenRefreshed,
		Timestamp: s.now(),
		UserID:    user.ID.String(),
		StravaID:  user.StravaID,
		RequestID: requestID,
	})

	return &models.RefreshResponse{
		AccessToken:  bundle.AccessToken,
		RefreshToken: bundle.RefreshToken,
		ExpiresIn:    bundle.ExpiresIn,
	}, nil
}
