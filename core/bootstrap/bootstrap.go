// Package bootstrap brings up the infrastructure a bot needs before it can serve
// updates: logger, database and schema, Redis, then the seeders.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	goredis "github.com/redis/go-redis/v9"

	coreconfig "github.com/m3rciful/communitybot/core/config"
	coredatabase "github.com/m3rciful/communitybot/core/database"
	"github.com/m3rciful/communitybot/core/logger"
	"github.com/m3rciful/communitybot/core/redisdb"
)

// Options configure Run. The function fields replace the real implementations in tests.
type Options struct {
	Config     *coreconfig.Config
	Database   coredatabase.Config
	Redis      redisdb.Config
	Migrations fs.FS
	Seeders    []NamedSeeder

	LoggerInit   func(*coreconfig.Config) error
	Connect      func(context.Context, coredatabase.Config) (*sqlx.DB, error)
	Migrate      func(context.Context, *sqlx.DB, coredatabase.Config, fs.FS) error
	ConnectRedis func(context.Context, redisdb.Config) (*goredis.Client, error)
}

func (o *Options) withDefaults() {
	if o.LoggerInit == nil {
		o.LoggerInit = logger.InitLogger
	}
	if o.Connect == nil {
		o.Connect = coredatabase.Connect
	}
	if o.Migrate == nil {
		o.Migrate = coredatabase.Migrate
	}
	if o.ConnectRedis == nil {
		o.ConnectRedis = redisdb.Connect
	}
}

// Result is the infrastructure Run brought up. Redis is nil when not configured.
type Result struct {
	DB    *sqlx.DB
	Redis *goredis.Client
}

// Close releases Redis then the database.
func (r *Result) Close() error {
	if r == nil {
		return nil
	}
	var errs []error
	if r.Redis != nil {
		errs = append(errs, r.Redis.Close())
	}
	if r.DB != nil {
		errs = append(errs, r.DB.Close())
	}
	return errors.Join(errs...)
}

// Run executes the pipeline in order. On failure everything opened so far is closed.
func Run(ctx context.Context, opts Options) (*Result, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("bootstrap: nil config provided")
	}
	opts.withDefaults()
	if err := opts.LoggerInit(opts.Config); err != nil {
		return nil, fmt.Errorf("bootstrap: logger: %w", err)
	}

	res := &Result{}
	if err := res.open(ctx, opts); err != nil {
		_ = res.Close()
		return nil, err
	}
	if err := res.seed(ctx, opts.Seeders); err != nil {
		_ = res.Close()
		return nil, err
	}
	return res, nil
}

func (r *Result) open(ctx context.Context, opts Options) error {
	db, err := opts.Connect(ctx, opts.Database)
	if err != nil {
		return fmt.Errorf("bootstrap: database: %w", err)
	}
	r.DB = db
	if err := opts.Migrate(ctx, db, opts.Database, opts.Migrations); err != nil {
		return fmt.Errorf("bootstrap: migrations: %w", err)
	}
	rdb, err := opts.ConnectRedis(ctx, opts.Redis)
	if err != nil {
		return fmt.Errorf("bootstrap: redis: %w", err)
	}
	r.Redis = rdb
	return nil
}

func (r *Result) seed(ctx context.Context, seeders []NamedSeeder) error {
	for _, s := range seeders {
		start := time.Now()
		if err := s.Seed(ctx, r); err != nil {
			return fmt.Errorf("bootstrap: seeder %s: %w", s.Name, err)
		}
		logger.Info(ctx, "db", "db.seed",
			slog.String("handler", s.Name),
			slog.Duration("duration", logger.RoundMS(time.Since(start))),
		)
	}
	return nil
}
