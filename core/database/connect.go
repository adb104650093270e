package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/m3rciful/communitybot/core/logger"
)

const (
	connectTimeout = 5 * time.Second
	connLifetime   = 30 * time.Minute
)

// Connect opens the pool described by cfg and pings it. SQLite is limited to one
// connection: writers serialize anyway and ":memory:" lives on a single handle.
func Connect(ctx context.Context, cfg Config) (*sqlx.DB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	driver := cfg.DriverName()
	attrs := []slog.Attr{
		slog.String("driver", driver),
		slog.String("db", dbLabel(cfg)),
	}
	if driver == DriverPostgres {
		attrs = append(attrs, slog.String("host", cfg.Host), slog.String("port", cfg.Port))
	}

	cctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	start := time.Now()
	db, err := sqlx.ConnectContext(cctx, driver, cfg.DSN())
	attrs = append(attrs, slog.Duration("duration", logger.RoundMS(time.Since(start))))
	if err != nil {
		logger.Error(ctx, "db", "db.connect", append(attrs,
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)...)
		return nil, fmt.Errorf("db connect: %w", err)
	}

	pool := cfg.MaxConnections
	if driver == DriverSQLite {
		pool = 1
	}
	if pool > 0 {
		db.SetMaxOpenConns(pool)
		db.SetMaxIdleConns(pool)
	}
	if driver == DriverPostgres {
		db.SetConnMaxLifetime(connLifetime)
	}
	logger.Info(ctx, "db", "db.connect", append(attrs,
		slog.String("status", "ok"),
		slog.Int("pool_open", pool),
	)...)
	return db, nil
}

// Ping reports database reachability for readiness probes.
func Ping(ctx context.Context, db *sqlx.DB) error {
	if db == nil {
		return fmt.Errorf("db: not connected")
	}
	return db.PingContext(ctx)
}

func dbLabel(cfg Config) string {
	if cfg.DriverName() == DriverSQLite {
		return cfg.Path
	}
	return cfg.Name
}

// waitReady polls the postgres server behind dsn until it answers, ctx is done or
// timeout passes. Containers often start the bot before the database accepts connections.
func waitReady(ctx context.Context, dsn string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	delay := 250 * time.Millisecond
	for attempt := 1; ; attempt++ {
		db, err := sqlx.ConnectContext(ctx, DriverPostgres, dsn)
		if err == nil {
			return db.Close()
		}
		logger.Debug(ctx, "db", "db.wait",
			slog.Int("attempt", attempt),
			slog.String("err", err.Error()),
		)
		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return fmt.Errorf("database not ready after %s: %w", timeout, err)
		case <-t.C:
		}
		delay = min(2*delay, 2*time.Second)
	}
}
