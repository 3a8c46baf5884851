package models

import (
	usermodels "peryon/internal/user/models"
)

// CredentialBundle is what the identity provider returns for a code exchange
// or a token refresh: fresh tokens plus basic profile fields.
type CredentialBundle struct {
	AccessToken    string
	RefreshToken   string
	ExpiresIn      int
	AthleteID      int64
	FirstName      string
	LastName       string
	Email          *string
	ProfilePicture *string
}

// CallbackParams carries the query parameters of the provider's redirect to
// our mobile callback endpoint.
type CallbackParams struct {
	Code             string
	State            string
	Scope            string
	Error            string
	ErrorDescription string
	// RedirectURI is the callback's own URL, echoed to the token endpoint.
	// OAuth requires it to match the URI the authorization request used.
	RedirectURI string
}

// CallbackResult is the single user-visible outcome of a callback: a deep
// link back into the mobile app, carrying either a session token or the
// provider's error.
type CallbackResult struct {
	RedirectURL string
}

// SessionGrant is the payload handed to the mobile app when it redeems a
// handoff session token.
type SessionGrant struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int
	User         *usermodels.User
}

// SessionRequest is the redeem-session request body. The field name is
// camelCase to match the mobile client.
type SessionRequest struct {
	SessionToken string `json:"sessionToken"`
}

// RefreshRequest is the token refresh request body.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// SessionUserResponse is the public profile shape inside a session response.
type SessionUserResponse struct {
	ID             string  `json:"id"`
	FirstName      string  `json:"firstName"`
	LastName       string  `json:"lastName"`
	Email          string  `json:"email"`
	StravaID       string  `json:"stravaId"`
	ProfilePicture *string `json:"profilePicture,omitempty"`
}

// SessionResponse is returned from the redeem-session endpoint.
type SessionResponse struct {
	AccessToken  string              `json:"access_token"`
	RefreshToken string              `json:"refresh_token"`
	ExpiresIn    int                 `json:"expires_in"`
	User         SessionUserResponse `json:"user"`
}

// RefreshResponse is returned from the refresh endpoint.
type RefreshResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}
