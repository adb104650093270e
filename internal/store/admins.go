package store

import (
	"context"
	"fmt"

	"github.com/m3rciful/communitybot/internal/domain"
)

// AddAdmin inserts id into the admin list. A duplicate is rejected with domain.ErrAlreadyExists.
func (s *Store) AddAdmin(ctx context.Context, id int64) error {
	const q = `INSERT INTO admins (user_id) VALUES (?) ON CONFLICT (user_id) DO NOTHING`
	n, err := s.exec(ctx, q, id)
	if err != nil {
		return fmt.Errorf("store: add admin %d: %w", id, err)
	}
	if n == 0 {
		return domain.AlreadyExistsError(fmt.Sprintf("user %d is already an admin", id))
	}
	return nil
}

// RemoveAdmin deletes id. domain.ErrNotFound is returned when no row matched.
func (s *Store) RemoveAdmin(ctx context.Context, id int64) error {
	n, err := s.exec(ctx, `DELETE FROM admins WHERE user_id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: remove admin %d: %w", id, err)
	}
	if n == 0 {
		return domain.NotFoundError(fmt.Sprintf("admin %d not found", id))
	}
	return nil
}

// AdminIDs lists the stored admins.
func (s *Store) AdminIDs(ctx context.Context) ([]int64, error) {
	ids, err := s.ids(ctx, `SELECT user_id FROM admins ORDER BY added_at, user_id`)
	if err != nil {
		return nil, fmt.Errorf("store: list admins: %w", err)
	}
	return ids, nil
}

// IsAdmin reports whether id is in the admin table.
func (s *Store) IsAdmin(ctx context.Context, id int64) (bool, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, s.db.Rebind(`SELECT COUNT(*) FROM admins WHERE user_id = ?`), id); err != nil {
		return false, fmt.Errorf("store: check admin %d: %w", id, err)
	}
	return n > 0, nil
}
