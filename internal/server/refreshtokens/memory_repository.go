package refreshtokens

import (
	"context"
	"sync"
	"time"
)

type MemoryRepository struct {
	mu      sync.Mutex
	revoked map[string]time.Time
	now     func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{revoked: make(map[string]time.Time), now: time.Now}
}

func (r *MemoryRepository) Revoke(_ context.Context, jti string, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.purge()
	r.revoked[jti] = expiresAt
	return nil
}

func (r *MemoryRepository) IsRevoked(_ context.Context, jti string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.revoked[jti]
	return ok, nil
}

// purge drops entries of tokens that have expired on their own.
func (r *MemoryRepository) purge() {
	now := r.now()
	for jti, exp := range r.revoked {
		if now.After(exp) {
			delete(r.revoked, jti)
		}
	}
}
