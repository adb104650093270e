// Package storetest opens a migrated in-memory SQLite store for tests.
package storetest

import (
	"context"
	"testing"

	coredatabase "github.com/m3rciful/communitybot/core/database"
	"github.com/m3rciful/communitybot/internal/store"
	"github.com/m3rciful/communitybot/migrations"
)

// New returns a store over a fresh in-memory database closed with the test.
func New(t testing.TB) *store.Store {
	t.Helper()
	cfg := coredatabase.Config{Driver: coredatabase.DriverSQLite, Path: ":memory:"}
	db, err := coredatabase.Connect(context.Background(), cfg)
	if err != nil {
		t.Fatalf("storetest: connect: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := coredatabase.Migrate(context.Background(), db, cfg, migrations.FS); err != nil {
		t.Fatalf("storetest: migrate: %v", err)
	}
	return store.New(db)
}
