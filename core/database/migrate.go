package database

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/communitybot/core/logger"
)

const (
	previewFiles = 6
	readyTimeout = 30 * time.Second
)

// Migrate applies every pending up migration in source. SQLite reuses the open
// handle so an in-memory database sees the schema; postgres gets its own connection
// once the server answers.
func Migrate(ctx context.Context, db *sqlx.DB, cfg Config, source fs.FS) error {
	if source == nil {
		return fmt.Errorf("migrations: nil source")
	}
	files := upFiles(source)
	logFiles(ctx, "db.migrate.resolve", files)

	m, release, err := migrator(ctx, db, cfg, source)
	if err != nil {
		logger.Error(ctx, "db.migrate", "db.migrate.init", slog.String("err", err.Error()))
		return fmt.Errorf("migrations: init: %w", err)
	}
	defer release()

	// GracefulStop is honoured between files.
	stop := context.AfterFunc(ctx, func() {
		select {
		case m.GracefulStop <- true:
		default:
		}
	})
	defer stop()

	from := version(m)
	start := time.Now()
	upErr := m.Up()
	took := logger.RoundMS(time.Since(start))
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		logger.Error(ctx, "db.migrate", "db.migrate.apply",
			slog.Uint64("from_ver", from),
			slog.Duration("duration", took),
			slog.String("err", upErr.Error()),
		)
		return fmt.Errorf("migrations: apply: %w", upErr)
	}

	to := version(m)
	applied := between(files, from, to)
	if len(applied) > 0 {
		logFiles(ctx, "db.migrate.applied", applied)
	}
	logger.Info(ctx, "db.migrate", "db.migrate.summary",
		slog.Uint64("from_ver", from),
		slog.Uint64("to_ver", to),
		slog.Int("files", len(applied)),
		slog.Duration("duration", took),
	)
	return nil
}

func migrator(ctx context.Context, db *sqlx.DB, cfg Config, source fs.FS) (*migrate.Migrate, func(), error) {
	src, err := iofs.New(source, ".")
	if err != nil {
		return nil, nil, fmt.Errorf("open source: %w", err)
	}
	if cfg.DriverName() == DriverSQLite {
		if db == nil {
			_ = src.Close()
			return nil, nil, fmt.Errorf("sqlite3 needs an open database")
		}
		driver, err := migratesqlite.WithInstance(db.DB, &migratesqlite.Config{})
		if err != nil {
			_ = src.Close()
			return nil, nil, fmt.Errorf("sqlite3 driver: %w", err)
		}
		m, err := migrate.NewWithInstance("iofs", src, DriverSQLite, driver)
		if err != nil {
			_ = src.Close()
			return nil, nil, err
		}
		// m.Close would close the shared handle too.
		return m, func() { _ = src.Close() }, nil
	}

	url := cfg.MigrateURL()
	if err := waitReady(ctx, cfg.DSN(), readyTimeout); err != nil {
		_ = src.Close()
		return nil, nil, err
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, url)
	if err != nil {
		_ = src.Close()
		return nil, nil, err
	}
	return m, func() { _, _ = m.Close() }, nil
}

// version is 0 before the first migration.
func version(m *migrate.Migrate) uint64 {
	v, _, err := m.Version()
	if err != nil {
		return 0
	}
	return uint64(v)
}

func logFiles(ctx context.Context, event string, files []string) {
	preview, truncated := logger.SummarizeStrings(files, previewFiles)
	attrs := []slog.Attr{slog.Int("files_total", len(files))}
	if preview != "" {
		attrs = append(attrs, slog.String("files_preview", preview))
	}
	if truncated {
		attrs = append(attrs, slog.Bool("files_truncated", true))
	}
	logger.Debug(ctx, "db.migrate", event, attrs...)
}

// upFiles lists the "*.up.sql" files at the root of source, sorted.
func upFiles(source fs.FS) []string {
	matches, err := fs.Glob(source, "*.up.sql")
	if err != nil {
		return nil
	}
	slices.Sort(matches)
	return matches
}

// fileVersion reads the numeric prefix of "0003_name.up.sql".
func fileVersion(name string) uint64 {
	prefix, _, _ := strings.Cut(path.Base(name), "_")
	v, err := strconv.ParseUint(prefix, 10, 64)
	if err != nil {
		return 0
	}
	return v
}

// between returns the files with a version in (from, to].
func between(files []string, from, to uint64) []string {
	var out []string
	for _, f := range files {
		if v := fileVersion(f); v > from && v <= to {
			out = append(out, f)
		}
	}
	return out
}
