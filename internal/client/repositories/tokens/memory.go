package tokens

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/dmitrijs2005/primeauth/internal/client/models"
)

var ErrEmptyAccessToken = errors.New("token pair has no access token")

// MemoryRepository keeps the pair for the lifetime of the process.
type MemoryRepository struct {
	pair atomic.Pointer[models.TokenPair]
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

func (r *MemoryRepository) Get(_ context.Context) (*models.TokenPair, error) {
	p := r.pair.Load()
	if p == nil {
		return nil, nil
	}
	c := *p
	return &c, nil
}

func (r *MemoryRepository) Set(_ context.Context, pair models.TokenPair) error {
	if pair.IsZero() {
		return ErrEmptyAccessToken
	}
	r.pair.Store(&pair)
	return nil
}

func (r *MemoryRepository) Clear(_ context.Context) error {
	r.pair.Store(nil)
	return nil
}
