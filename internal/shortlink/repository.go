// Package shortlink maps short codes to destination URLs.
package shortlink

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// querier is the part of *pgxpool.Pool the repository needs.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Repository handles link persistence in Postgres.
type Repository struct {
	db querier
}

// NewRepository creates a new Repository over db (usually a *pgxpool.Pool).
func NewRepository(db querier) *Repository {
	return &Repository{db: db}
}

// Get returns the URL stored for code.
func (r *Repository) Get(ctx context.Context, code string) (string, error) {
	var url string
	err := r.db.QueryRow(ctx, `SELECT url FROM links WHERE code = $1`, code).Scan(&url)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get link: %w", err)
	}
	return url, nil
}

// Put stores url under code, replacing any existing target.
func (r *Repository) Put(ctx context.Context, code, url string) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO links (code, url)
		 VALUES ($1, $2)
		 ON CONFLICT (code) DO UPDATE SET url = EXCLUDED.url, updated_at = now()`,
		code, url,
	)
	if err != nil {
		return fmt.Errorf("put link: %w", err)
	}
	return nil
}
