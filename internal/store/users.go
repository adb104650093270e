package store

import (
	"context"
	"fmt"

	"github.com/m3rciful/communitybot/internal/domain"
)

// UpsertUser creates the user or replaces its profile fields.
func (s *Store) UpsertUser(ctx context.Context, u domain.User) error {
	const q = `
INSERT INTO users (user_id, username, first_name)
VALUES (?, ?, ?)
ON CONFLICT (user_id) DO UPDATE
SET username = excluded.username,
    first_name = excluded.first_name,
    updated_at = CURRENT_TIMESTAMP`
	if _, err := s.exec(ctx, q, u.ID, u.Username, u.FirstName); err != nil {
		return fmt.Errorf("store: upsert user %d: %w", u.ID, err)
	}
	return nil
}

// User loads one registered user.
func (s *Store) User(ctx context.Context, id int64) (domain.User, error) {
	const q = `SELECT user_id, COALESCE(username, '') AS username, COALESCE(first_name, '') AS first_name FROM users WHERE user_id = ?`
	var users []domain.User
	if err := s.db.SelectContext(ctx, &users, s.db.Rebind(q), id); err != nil {
		return domain.User{}, fmt.Errorf("store: get user %d: %w", id, err)
	}
	if len(users) == 0 {
		return domain.User{}, domain.NotFoundError(fmt.Sprintf("user %d not found", id))
	}
	return users[0], nil
}

// UserIDs lists every registered user in registration order.
func (s *Store) UserIDs(ctx context.Context) ([]int64, error) {
	ids, err := s.ids(ctx, `SELECT user_id FROM users ORDER BY created_at, user_id`)
	if err != nil {
		return nil, fmt.Errorf("store: list users: %w", err)
	}
	return ids, nil
}

// CountUsers returns the number of registered users.
func (s *Store) CountUsers(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM users`); err != nil {
		return 0, fmt.Errorf("store: count users: %w", err)
	}
	return n, nil
}
