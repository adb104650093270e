package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// RedisStore keeps sessions as JSON values with a sliding TTL.
type RedisStore[T any] struct {
	client *goredis.Client
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

// NewRedisStore builds a store under keys "<prefix>session:<name>:<chat_id>".
func NewRedisStore[T any](client *goredis.Client, prefix, name string, ttl time.Duration) *RedisStore[T] {
	return &RedisStore[T]{
		client: client,
		prefix: prefix + "session:" + name + ":",
		ttl:    ttl,
		now:    time.Now,
	}
}

func (r *RedisStore[T]) key(chatID int64) string {
	return r.prefix + strconv.FormatInt(chatID, 10)
}

// Get loads the session; missing or expired keys report ok=false.
func (r *RedisStore[T]) Get(ctx context.Context, chatID int64) (Session[T], bool, error) {
	if r.client == nil {
		return Session[T]{}, false, fmt.Errorf("redis client is nil")
	}
	raw, err := r.client.Get(ctx, r.key(chatID)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return Session[T]{}, false, nil
	}
	if err != nil {
		return Session[T]{}, false, fmt.Errorf("session get: %w", err)
	}
	var s Session[T]
	if err := json.Unmarshal(raw, &s); err != nil {
		return Session[T]{}, false, fmt.Errorf("session decode: %w", err)
	}
	return s, true, nil
}

// Put stores the session and resets its TTL.
func (r *RedisStore[T]) Put(ctx context.Context, chatID int64, s Session[T]) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	s.UpdatedAt = r.now()
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("session encode: %w", err)
	}
	ttl := r.ttl
	if ttl < 0 {
		ttl = 0
	}
	if err := r.client.Set(ctx, r.key(chatID), raw, ttl).Err(); err != nil {
		return fmt.Errorf("session put: %w", err)
	}
	return nil
}

// Delete removes the session of a chat.
func (r *RedisStore[T]) Delete(ctx context.Context, chatID int64) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if err := r.client.Del(ctx, r.key(chatID)).Err(); err != nil {
		return fmt.Errorf("session delete: %w", err)
	}
	return nil
}
