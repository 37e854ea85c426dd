package client

import (
	"context"

	"github.com/dmitrijs2005/primeauth/internal/client/models"
)

// Client is the identity service surface used by the session.
//
// Calls that need a bearer token take it explicitly; wrap them with an
// Interceptor to get transparent refresh.
type Client interface {
	Login(ctx context.Context, email, password string) (*models.TokenPair, error)
	Register(ctx context.Context, r models.Registration) error
	// VerifyOTP returns a nil pair when the service verified the account
	// without issuing tokens.
	VerifyOTP(ctx context.Context, email, otp string) (*models.TokenPair, error)
	ResendOTP(ctx context.Context, email string) error
	RequestPasswordReset(ctx context.Context, email string) (string, error)
	VerifyResetOTP(ctx context.Context, email, otp string) error
	ConfirmPasswordReset(ctx context.Context, email, code, newPassword string) (string, error)
	Refresher
	Profile(ctx context.Context, accessToken string) (*models.User, error)
	UpdateProfile(ctx context.Context, accessToken string, p models.Profile) (*models.Profile, error)
	Logout(ctx context.Context, refreshToken string) error
}

// Refresher exchanges a refresh token for a new pair. The returned
// RefreshToken is empty when the service does not rotate refresh tokens.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*models.TokenPair, error)
}
