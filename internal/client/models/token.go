package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenPair is the bearer credential pair issued by the identity service.
// Both values are treated as opaque strings.
type TokenPair struct {
	AccessToken  string `json:"access"`
	RefreshToken string `json:"refresh"`
}

// IsZero reports whether the pair carries no access token.
func (p TokenPair) IsZero() bool {
	return p.AccessToken == ""
}

// AccessExpiresAt returns the exp claim of the access token when it is a JWT.
func (p TokenPair) AccessExpiresAt() (time.Time, bool) {
	return tokenExpiry(p.AccessToken)
}

// RefreshExpiresAt returns the exp claim of the refresh token when it is a JWT.
func (p TokenPair) RefreshExpiresAt() (time.Time, bool) {
	return tokenExpiry(p.RefreshToken)
}

// RefreshExpired reports whether the refresh token is known to be expired at now.
// Tokens without a readable exp claim are never reported as expired; the
// identity service remains the authority on validity.
func (p TokenPair) RefreshExpired(now time.Time) bool {
	exp, ok := p.RefreshExpiresAt()
	return ok && !now.Before(exp)
}

// tokenExpiry reads the exp claim without verifying the signature. The client
// does not hold the signing key; the value is only used as a hint.
func tokenExpiry(token string) (time.Time, bool) {
	if token == "" {
		return time.Time{}, false
	}
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}
