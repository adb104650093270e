package store

import (
	"context"
	"fmt"
)

// AddSubscription records that userID is a member of channelID. Repeats are ignored.
func (s *Store) AddSubscription(ctx context.Context, userID, channelID int64) error {
	const q = `INSERT INTO subscriptions (user_id, channel_id) VALUES (?, ?) ON CONFLICT (user_id, channel_id) DO NOTHING`
	if _, err := s.exec(ctx, q, userID, channelID); err != nil {
		return fmt.Errorf("store: add subscription %d/%d: %w", userID, channelID, err)
	}
	return nil
}

// RemoveSubscription deletes the pair if present.
func (s *Store) RemoveSubscription(ctx context.Context, userID, channelID int64) error {
	const q = `DELETE FROM subscriptions WHERE user_id = ? AND channel_id = ?`
	if _, err := s.exec(ctx, q, userID, channelID); err != nil {
		return fmt.Errorf("store: remove subscription %d/%d: %w", userID, channelID, err)
	}
	return nil
}

// SubscriberIDs lists the users subscribed to channelID.
func (s *Store) SubscriberIDs(ctx context.Context, channelID int64) ([]int64, error) {
	ids, err := s.ids(ctx, `SELECT user_id FROM subscriptions WHERE channel_id = ? ORDER BY user_id`, channelID)
	if err != nil {
		return nil, fmt.Errorf("store: list subscribers of %d: %w", channelID, err)
	}
	return ids, nil
}

// SubscriberCounts returns the number of subscribers per channel.
func (s *Store) SubscriberCounts(ctx context.Context) (map[int64]int, error) {
	var rows []struct {
		ChannelID int64 `db:"channel_id"`
		Count     int   `db:"n"`
	}
	const q = `SELECT channel_id, COUNT(*) AS n FROM subscriptions GROUP BY channel_id`
	if err := s.db.SelectContext(ctx, &rows, q); err != nil {
		return nil, fmt.Errorf("store: count subscribers: %w", err)
	}
	out := make(map[int64]int, len(rows))
	for _, r := range rows {
		out[r.ChannelID] = r.Count
	}
	return out, nil
}

// ReplaceSubscribers makes userIDs the exact subscriber set of channelID.
func (s *Store) ReplaceSubscribers(ctx context.Context, channelID int64, userIDs []int64) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin resync %d: %w", channelID, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, tx.Rebind(`DELETE FROM subscriptions WHERE channel_id = ?`), channelID); err != nil {
		return fmt.Errorf("store: clear subscribers of %d: %w", channelID, err)
	}
	insert := tx.Rebind(`INSERT INTO subscriptions (user_id, channel_id) VALUES (?, ?) ON CONFLICT (user_id, channel_id) DO NOTHING`)
	for _, id := range userIDs {
		if _, err = tx.ExecContext(ctx, insert, id, channelID); err != nil {
			return fmt.Errorf("store: insert subscriber %d/%d: %w", id, channelID, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("store: commit resync %d: %w", channelID, err)
	}
	return nil
}
