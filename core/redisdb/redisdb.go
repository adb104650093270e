// Package redisdb bootstraps the shared go-redis client.
package redisdb

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/m3rciful/communitybot/core/logger"
)

// Config holds Redis connection settings. An empty Addr disables Redis.
type Config struct {
	Addr      string `yaml:"addr" envconfig:"REDIS_ADDR"`
	Password  string `yaml:"password" envconfig:"REDIS_PASSWORD"`
	DB        int    `yaml:"db" envconfig:"REDIS_DB"`
	KeyPrefix string `yaml:"key_prefix" envconfig:"REDIS_KEY_PREFIX"`
}

// Enabled reports whether a Redis address was configured.
func (c Config) Enabled() bool {
	return strings.TrimSpace(c.Addr) != ""
}

// Prefix returns the key namespace, defaulting to "communitybot:".
func (c Config) Prefix() string {
	p := strings.TrimSpace(c.KeyPrefix)
	if p == "" {
		return "communitybot:"
	}
	if !strings.HasSuffix(p, ":") {
		p += ":"
	}
	return p
}

// Connect creates the client and verifies it with a PING.
// It returns (nil, nil) when Redis is disabled.
func Connect(ctx context.Context, cfg Config) (*goredis.Client, error) {
	if !cfg.Enabled() {
		logger.RDS.Info("redis disabled",
			slog.String("event", "redis.connect"),
			slog.String("status", "skip"),
		)
		return nil, nil
	}

	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	start := time.Now()
	err := client.Ping(pingCtx).Err()
	took := time.Since(start)
	if err != nil {
		logger.RDS.Error("redis ping failed",
			slog.String("event", "redis.connect"),
			slog.String("host", cfg.Addr),
			slog.Int("db", cfg.DB),
			slog.Duration("duration", logger.RoundMS(took)),
			slog.String("err", err.Error()),
		)
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	logger.RDS.Info("redis connected",
		slog.String("event", "redis.connect"),
		slog.String("host", cfg.Addr),
		slog.Int("db", cfg.DB),
		slog.Duration("duration", logger.RoundMS(took)),
	)
	return client, nil
}

// Ping reports Redis reachability for readiness probes.
func Ping(ctx context.Context, client *goredis.Client) error {
	if client == nil {
		return fmt.Errorf("redis: not connected")
	}
	return client.Ping(ctx).Err()
}
