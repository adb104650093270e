package bootstrap

import (
	"context"
	"errors"
	"io/fs"
	"testing"

	"github.com/jmoiron/sqlx"
	goredis "github.com/redis/go-redis/v9"

	coreconfig "github.com/m3rciful/communitybot/core/config"
	coredatabase "github.com/m3rciful/communitybot/core/database"
	"github.com/m3rciful/communitybot/core/redisdb"
	"github.com/m3rciful/communitybot/migrations"
)

func sqliteOptions(t *testing.T) Options {
	t.Helper()
	return Options{
		Config:     &coreconfig.Config{},
		Database:   coredatabase.Config{Driver: coredatabase.DriverSQLite, Path: ":memory:"},
		Migrations: migrations.FS,
		LoggerInit: func(*coreconfig.Config) error { return nil },
		ConnectRedis: func(context.Context, redisdb.Config) (*goredis.Client, error) {
			return nil, nil
		},
	}
}

func TestRunAppliesMigrationsAndSeeders(t *testing.T) {
	opts := sqliteOptions(t)
	var order []string
	opts.Seeders = []NamedSeeder{
		{Name: "first", Seeder: SeederFunc(func(ctx context.Context, infra *Result) error {
			order = append(order, "first")
			_, err := infra.DB.ExecContext(ctx, "INSERT INTO admins (user_id) VALUES (1)")
			return err
		})},
		{Name: "second", Seeder: SeederFunc(func(ctx context.Context, infra *Result) error {
			order = append(order, "second")
			return nil
		})},
	}

	res, err := Run(context.Background(), opts)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	defer res.Close()

	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Fatalf("seeders order = %v", order)
	}
	var n int
	if err := res.DB.Get(&n, "SELECT COUNT(*) FROM admins"); err != nil || n != 1 {
		t.Fatalf("admins count = %d, err = %v", n, err)
	}
	if res.Redis != nil {
		t.Fatalf("redis should be nil when disabled")
	}
}

func TestRunStopsOnMigrationError(t *testing.T) {
	opts := sqliteOptions(t)
	boom := errors.New("boom")
	opts.Migrate = func(context.Context, *sqlx.DB, coredatabase.Config, fs.FS) error { return boom }
	seeded := false
	opts.Seeders = []NamedSeeder{{Name: "never", Seeder: SeederFunc(func(context.Context, *Result) error {
		seeded = true
		return nil
	})}}

	if _, err := Run(context.Background(), opts); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped boom", err)
	}
	if seeded {
		t.Fatalf("seeder ran after failed migration")
	}
}

func TestRunRejectsNilConfig(t *testing.T) {
	if _, err := Run(context.Background(), Options{}); err == nil {
		t.Fatalf("expected error for nil config")
	}
}
