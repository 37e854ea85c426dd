// Package metadata is the client's local key-value table. Session data such
// as the persisted token pair lives here under a key prefix.
package metadata

import (
	"context"
)

type Repository interface {
	Set(ctx context.Context, key string, value []byte) error
	// List returns every key starting with prefix; an empty prefix lists all.
	List(ctx context.Context, prefix string) (map[string][]byte, error)
	// DeletePrefix removes every key starting with prefix in one statement.
	DeletePrefix(ctx context.Context, prefix string) error
}
