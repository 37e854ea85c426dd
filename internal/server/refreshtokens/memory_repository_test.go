package refreshtokens

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRepository_Revoke(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepository()

	revoked, err := r.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, r.Revoke(ctx, "jti-1", time.Now().Add(time.Hour)))
	revoked, err = r.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)
}

func TestMemoryRepository_PurgesExpired(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r := NewMemoryRepository()
	r.now = func() time.Time { return now }

	require.NoError(t, r.Revoke(ctx, "old", now.Add(time.Minute)))
	now = now.Add(2 * time.Minute)
	require.NoError(t, r.Revoke(ctx, "new", now.Add(time.Minute)))

	assert.NotContains(t, r.revoked, "old")
	assert.Contains(t, r.revoked, "new")
}
