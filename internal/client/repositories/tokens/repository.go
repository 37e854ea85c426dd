// Package tokens stores the session's credential TokenPair.
//
// Implementations hold no business logic and never expose a partially
// written pair: readers observe either the previous pair, the new pair, or
// nothing.
package tokens

import (
	"context"

	"github.com/dmitrijs2005/primeauth/internal/client/models"
)

// Repository is the Token Store contract.
type Repository interface {
	// Get returns the current pair or (nil, nil) when none is stored.
	Get(ctx context.Context) (*models.TokenPair, error)
	// Set atomically replaces the stored pair.
	Set(ctx context.Context, pair models.TokenPair) error
	// Clear atomically removes the stored pair. Clearing an empty store is a no-op.
	Clear(ctx context.Context) error
}
