package models

import (
	"time"

	"github.com/google/uuid"
)

// CredentialExpirySkew treats an access token as expired slightly early so
// in-flight requests never race a real expiry.
const CredentialExpirySkew = 5 * time.Minute

// User is the local account backing a Strava athlete. Provider credentials
// are nullable: a seeded or partially-migrated user may not have logged in
// through OAuth yet.
type User struct {
	ID             uuid.UUID
	FirstName      string
	LastName       string
	Email          string
	StravaID       int64
	ProfilePicture *string
	AccessToken    *string
	RefreshToken   *string
	TokenExpiresAt *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// FullName renders the display name the way the mobile client shows it.
func (u *User) FullName() string {
	return u.FirstName + " " + u.LastName
}

// IsCredentialExpired reports whether the access token needs refreshing:
// expiry unset, or within CredentialExpirySkew of now.
func (u *User) IsCredentialExpired(now time.Time) bool {
	if u.TokenExpiresAt == nil {
		return true
	}
	return !u.TokenExpiresAt.After(now.Add(CredentialExpirySkew))
}

// SetCredentials replaces the provider credential fields together. They are
// never updated piecemeal: every exchange or refresh yields a full bundle.
func (u *User) SetCredentials(accessToken, refreshToken string, expiresIn int, now time.Time) {
	expiresAt := now.Add(time.Duration(expiresIn) * time.Second)
	u.AccessToken = &accessToken
	u.RefreshToken = &refreshToken
	u.TokenExpiresAt = &expiresAt
	u.UpdatedAt = now
}

// ExpiresIn returns whole seconds until credential expiry, floored at zero.
func (u *User) ExpiresIn(now time.Time) int {
	if u.TokenExpiresAt == nil {
		return 0
	}
	secs := int(u.TokenExpiresAt.Sub(now).Seconds())
	if secs < 0 {
		return 0
	}
	return secs
}
