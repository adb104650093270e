// Package store persists users, channel subscriptions and admins.
// Queries use ? placeholders rebound for the active driver and ON CONFLICT
// clauses understood by both PostgreSQL and SQLite.
package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Store is the sqlx-backed repository shared by the bot services.
type Store struct {
	db *sqlx.DB
}

// New wraps an open database handle.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying handle for readiness probes.
func (s *Store) DB() *sqlx.DB { return s.db }

func (s *Store) exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

func (s *Store) ids(ctx context.Context, query string, args ...any) ([]int64, error) {
	var out []int64
	if err := s.db.SelectContext(ctx, &out, s.db.Rebind(query), args...); err != nil {
		return nil, err
	}
	return out, nil
}
