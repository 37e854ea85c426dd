// Package repositories opens the client's local SQLite database and exposes
// the repositories built on top of it.
package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/primeauth/internal/client/migrations"
	"github.com/dmitrijs2005/primeauth/internal/client/repositories/tokens"
	"github.com/dmitrijs2005/primeauth/internal/filex"

	_ "modernc.org/sqlite"
)

type Repositories struct {
	Tokens tokens.Repository
}

// InitDatabase opens the SQLite file at dsn and applies pending migrations.
// The directory of a plain file path is created when missing.
func InitDatabase(ctx context.Context, dsn string) (*sql.DB, error) {
	if dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
		path, err := filex.EnsureParentDir(dsn)
		if err != nil {
			return nil, fmt.Errorf("prepare database directory: %w", err)
		}
		dsn = path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := migrations.Up(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	// a single writer keeps SQLite free of SQLITE_BUSY between the token
	// store's transaction and concurrent reads
	db.SetMaxOpenConns(1)
	return db, nil
}

// New builds the repository set over db.
func New(db *sql.DB) *Repositories {
	return &Repositories{
		Tokens: tokens.NewSQLiteRepository(db),
	}
}
