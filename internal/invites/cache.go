package invites

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	goredis "github.com/redis/go-redis/v9"
)

// Cache keeps the unlimited invite link of each channel.
type Cache interface {
	Get(ctx context.Context, channelID int64) (string, bool, error)
	Set(ctx context.Context, channelID int64, link string) error
}

// MemoryCache is a process-local Cache.
type MemoryCache struct {
	mu    sync.RWMutex
	links map[int64]string
}

// NewMemoryCache returns an empty cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{links: make(map[int64]string)}
}

func (m *MemoryCache) Get(_ context.Context, channelID int64) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	link, ok := m.links[channelID]
	return link, ok, nil
}

func (m *MemoryCache) Set(_ context.Context, channelID int64, link string) error {
	m.mu.Lock()
	m.links[channelID] = link
	m.mu.Unlock()
	return nil
}

// RedisCache shares links between restarts and replicas under "<prefix>invite:<channel_id>".
type RedisCache struct {
	client *goredis.Client
	prefix string
}

// NewRedisCache builds a cache on client.
func NewRedisCache(client *goredis.Client, prefix string) *RedisCache {
	return &RedisCache{client: client, prefix: prefix + "invite:"}
}

func (r *RedisCache) key(channelID int64) string {
	return r.prefix + strconv.FormatInt(channelID, 10)
}

func (r *RedisCache) Get(ctx context.Context, channelID int64) (string, bool, error) {
	link, err := r.client.Get(ctx, r.key(channelID)).Result()
	if errors.Is(err, goredis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("invite cache get: %w", err)
	}
	return link, true, nil
}

func (r *RedisCache) Set(ctx context.Context, channelID int64, link string) error {
	if err := r.client.Set(ctx, r.key(channelID), link, 0).Err(); err != nil {
		return fmt.Errorf("invite cache set: %w", err)
	}
	return nil
}
