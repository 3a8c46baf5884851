// Package exchange talks to the Strava token endpoint: it turns an
// authorization code or a refresh token into a fresh credential bundle.
// Pure request/response; no local state, no retries.
package exchange

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"peryon/internal/auth/models"
	"peryon/internal/platform/config"
	dErrors "peryon/pkg/domain-errors"
)

// TokenEndpoint is Strava's OAuth token endpoint.
const TokenEndpoint = "https://www.strava.com/oauth/token"

const (
	grantAuthorizationCode = "authorization_code"
	grantRefreshToken      = "refresh_token"
)

// Client exchanges codes and refresh tokens against the provider.
type Client struct {
	httpClient *http.Client
	endpoint   string
	clientID   string
	secret     string
	logger     *slog.Logger
	tracer     trace.Tracer
}

// Option configures a Client.
type Option func(*Client)

// WithEndpoint overrides the token endpoint. Tests point it at a fake server.
func WithEndpoint(endpoint string) Option {
	return func(c *Client) { c.endpoint = endpoint }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New builds a Client from configuration. Missing client credentials fail
// here, at startup, never per-request.
func New(cfg config.StravaConfig, logger *slog.Logger, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		endpoint:   TokenEndpoint,
		clientID:   cfg.ClientID,
		secret:     cfg.ClientSecret,
		logger:     logger,
		tracer:     otel.Tracer("peryon/auth/exchange"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// tokenRequest is the JSON body Strava's token endpoint expects.
type tokenRequest struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	Code         string `json:"code,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	GrantType    string `json:"grant_type"`
}

// tokenResponse mirrors Strava's token endpoint response shape.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	Athlete      struct {
		ID             int64   `json:"id"`
		FirstName      string  `json:"firstname"`
		LastName       string  `json:"lastname"`
		ProfilePicture *string `json:"profile_medium"`
		Email          *string `json:"email"`
	} `json:"athlete"`
}

// ExchangeCode converts an authorization code into a credential bundle.
// The redirect URI must exactly match the one the authorization request used.
func (c *Client) ExchangeCode(ctx context.Context, code, redirectURI string) (*models.CredentialBundle, error) {
	c.logger.InfoContext(ctx, "exchanging authorization code for access token")
	_ = redirectURI // Strava's token endpoint validates the code against the registered URI.
	return c.doTokenRequest(ctx, "exchange_code", tokenRequest{
		ClientID:     c.clientID,
		ClientSecret: c.secret,
		Code:         code,
		GrantType:    grantAuthorizationCode,
	})
}

// RefreshCredential converts a refresh token into a fresh credential bundle.
func (c *Client) RefreshCredential(ctx context.Context, refreshToken string) (*models.CredentialBundle, error) {
	c.logger.InfoContext(ctx, "refreshing strava access token")
	return c.doTokenRequest(ctx, "refresh_token", tokenRequest{
		ClientID:     c.clientID,
		ClientSecret: c.secret,
		RefreshToken: refreshToken,
		GrantType:    grantRefreshToken,
	})
}

func (c *Client) doTokenRequest(ctx context.Context, op string, reqBody tokenRequest) (*models.CredentialBundle, error) {
	ctx, span := c.tracer.Start(ctx, "strava.token."+op,
		trace.WithAttributes(attribute.String("oauth.grant_type", reqBody.GrantType)))
	defer span.End()

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode token request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to build token request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Timeouts and refused connections count as provider non-response.
		return nil, dErrors.Wrap(err, dErrors.CodeUpstream, "strava token endpoint unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.logger.ErrorContext(ctx, "strava api error",
			"status", resp.StatusCode,
			"body", string(body),
		)
		span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
		return nil, dErrors.Upstream(resp.StatusCode, fmt.Sprintf("strava api error: %d", resp.StatusCode))
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeProtocol, "failed to decode strava token response")
	}
	if tr.AccessToken == "" || tr.RefreshToken == "" {
		return nil, dErrors.New(dErrors.CodeProtocol, "strava token response missing tokens")
	}

	return &models.CredentialBundle{
		AccessToken:    tr.AccessToken,
		RefreshToken:   tr.RefreshToken,
		ExpiresIn:      tr.ExpiresIn,
		AthleteID:      tr.Athlete.ID,
		FirstName:      tr.Athlete.FirstName,
		LastName:       tr.Athlete.LastName,
		Email:          tr.Athlete.Email,
		ProfilePicture: tr.Athlete.ProfilePicture,
	}, nil
}

// SyntheticEmail builds a deterministic placeholder email for athletes whose
// profile omits one, so the unique-email column never sees NULL.
func SyntheticEmail(athleteID int64) string {
	return fmt.Sprintf("athlete%d@strava.com", athleteID)
}

// ResolveEmail picks the provider email when present, falling back to the
// synthesized one.
func ResolveEmail(bundle *models.CredentialBundle) string {
	if bundle.Email != nil && *bundle.Email != "" {
		return *bundle.Email
	}
	return SyntheticEmail(bundle.AthleteID)
}
