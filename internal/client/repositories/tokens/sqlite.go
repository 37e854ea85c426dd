package tokens

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/primeauth/internal/client/models"
	"github.com/dmitrijs2005/primeauth/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/primeauth/internal/dbx"
)

const (
	keyPrefix  = "session.token."
	accessKey  = keyPrefix + "access"
	refreshKey = keyPrefix + "refresh"
)

// SQLiteRepository persists the pair in the metadata table so a restarted
// client can resume the session.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Get reads both keys with a single statement. A half-present pair (which
// only a manual edit of the database can produce) is reported as empty.
func (r *SQLiteRepository) Get(ctx context.Context) (*models.TokenPair, error) {
	values, err := metadata.NewSQLiteRepository(r.db).List(ctx, keyPrefix)
	if err != nil {
		return nil, fmt.Errorf("load token pair: %w", err)
	}
	access, refresh := values[accessKey], values[refreshKey]
	if len(access) == 0 || len(refresh) == 0 {
		return nil, nil
	}
	return &models.TokenPair{AccessToken: string(access), RefreshToken: string(refresh)}, nil
}

func (r *SQLiteRepository) Set(ctx context.Context, pair models.TokenPair) error {
	if pair.IsZero() {
		return ErrEmptyAccessToken
	}
	err := dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := metadata.NewSQLiteRepository(tx)
		if err := repo.Set(ctx, accessKey, []byte(pair.AccessToken)); err != nil {
			return err
		}
		return repo.Set(ctx, refreshKey, []byte(pair.RefreshToken))
	})
	if err != nil {
		return fmt.Errorf("store token pair: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Clear(ctx context.Context) error {
	if err := metadata.NewSQLiteRepository(r.db).DeletePrefix(ctx, keyPrefix); err != nil {
		return fmt.Errorf("clear token pair: %w", err)
	}
	return nil
}
