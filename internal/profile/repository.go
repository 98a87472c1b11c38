// Package profile reads per-user storage usage from the profiles table.
package profile

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/nicevod/service/internal/admission"
)

// ErrNotFound is returned when no profile row exists for a user.
var ErrNotFound = errors.New("profile not found")

// querier is the part of *pgxpool.Pool the repository needs.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository handles profile database reads.
type Repository struct {
	db querier
}

// NewRepository creates a new Repository over db (usually a *pgxpool.Pool).
func NewRepository(db querier) *Repository {
	return &Repository{db: db}
}

// ReadUsage returns how many bytes userID currently has stored.
func (r *Repository) ReadUsage(ctx context.Context, userID string) (admission.QuotaState, error) {
	var used int64
	err := r.db.QueryRow(ctx,
		`SELECT storage_used FROM profiles WHERE id = $1`,
		userID,
	).Scan(&used)
	if errors.Is(err, pgx.ErrNoRows) {
		return admission.QuotaState{}, ErrNotFound
	}
	if err != nil {
		return admission.QuotaState{}, fmt.Errorf("read storage usage: %w", err)
	}
	return admission.QuotaState{UserID: userID, BytesUsed: used}, nil
}

// IsNotFound returns true when the error indicates a profile was not found.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
