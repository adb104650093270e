package database

import (
	"errors"
	"fmt"

	coreconfig "github.com/m3rciful/communitybot/core/config"
)

// Supported drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

// Config holds database connection settings shared across bots.
type Config struct {
	Driver         string `yaml:"driver" envconfig:"DB_DRIVER"`
	Host           string `yaml:"host" envconfig:"DB_HOST"`
	Port           string `yaml:"port" envconfig:"DB_PORT"`
	User           string `yaml:"user" envconfig:"DB_USER"`
	Password       string `yaml:"password" envconfig:"DB_PASSWORD"`
	Name           string `yaml:"name" envconfig:"DB_NAME"`
	SSLMode        string `yaml:"sslmode" envconfig:"DB_SSLMODE"`
	MaxConnections int    `yaml:"max_connections" envconfig:"DB_MAX_CONNECTIONS"`
	// Path is the sqlite3 database file; ":memory:" keeps everything in process.
	Path string `yaml:"path" envconfig:"DB_PATH"`
}

// DriverName resolves the configured driver, defaulting to postgres.
func (c Config) DriverName() string {
	if c.Driver == "" {
		return DriverPostgres
	}
	return c.Driver
}

// Validate checks the driver specific settings. Every problem is reported; each
// wraps config.ErrInvalid.
func (c Config) Validate() error {
	var errs []error
	switch c.DriverName() {
	case DriverPostgres:
		if c.Host == "" {
			errs = append(errs, coreconfig.Invalidf("database.host is required for postgres"))
		}
		if c.Name == "" {
			errs = append(errs, coreconfig.Invalidf("database.name is required for postgres"))
		}
	case DriverSQLite:
		if c.Path == "" {
			errs = append(errs, coreconfig.Invalidf("database.path is required for sqlite3"))
		}
	default:
		errs = append(errs, coreconfig.Invalidf("database.driver %q; allowed: postgres, sqlite3", c.Driver))
	}
	if c.MaxConnections < 0 {
		errs = append(errs, coreconfig.Invalidf("database.max_connections must be >= 0"))
	}
	return errors.Join(errs...)
}

func (c Config) sslMode() string {
	if c.SSLMode == "" {
		return "disable"
	}
	return c.SSLMode
}

// DSN builds the driver specific data source name used by sqlx.
func (c Config) DSN() string {
	if c.DriverName() == DriverSQLite {
		if c.Path == ":memory:" {
			return "file::memory:?_foreign_keys=on"
		}
		return "file:" + c.Path + "?_foreign_keys=on&_busy_timeout=5000"
	}
	return fmt.Sprintf(
		"user=%s password=%s host=%s port=%s dbname=%s sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.sslMode(),
	)
}

// MigrateURL builds the postgres URL consumed by golang-migrate.
func (c Config) MigrateURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.sslMode(),
	)
}
