// Package refreshtokens tracks refresh tokens revoked by logout.
package refreshtokens

import (
	"context"
	"time"
)

// Repository is a blacklist keyed by the token's jti. Entries are only
// needed until the token would have expired anyway.
type Repository interface {
	Revoke(ctx context.Context, jti string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}
