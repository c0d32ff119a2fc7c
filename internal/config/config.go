// internal/config/config.go

// Package config loads process configuration from the environment.
package config

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"carmarket/internal/store"
	"carmarket/internal/store/postgres"
	"carmarket/internal/store/sqlite"

	"github.com/caarlos0/env/v11"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config is shared by every carmarket binary.
type Config struct {
	DBDriver    string `env:"CARMARKET_DB_DRIVER" envDefault:"sqlite"`
	DatabaseURL string `env:"DATABASE_URL"`
	SQLitePath  string `env:"CARMARKET_SQLITE_PATH" envDefault:"carmarket.db"`
	Port        int    `env:"PORT" envDefault:"8080"`

	SweepInterval      time.Duration `env:"CARMARKET_SWEEP_INTERVAL" envDefault:"15s"`
	MinAuctionDuration time.Duration `env:"CARMARKET_MIN_AUCTION_DURATION" envDefault:"5m"`

	// BidRate is sustained bids per second allowed per user, BidBurst the
	// bucket size.
	BidRate  float64 `env:"CARMARKET_BID_RATE" envDefault:"2"`
	BidBurst int     `env:"CARMARKET_BID_BURST" envDefault:"5"`

	LogLevel     string `env:"CARMARKET_LOG_LEVEL" envDefault:"info"`
	OTelEndpoint string `env:"CARMARKET_OTEL_ENDPOINT"`
}

// Load parses the environment and validates the result.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects combinations the binaries cannot start with.
func (c Config) Validate() error {
	switch c.DBDriver {
	case DriverSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("CARMARKET_SQLITE_PATH must be set for the sqlite driver")
		}
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL must be set for the postgres driver")
		}
	default:
		return fmt.Errorf("unsupported CARMARKET_DB_DRIVER %q", c.DBDriver)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid PORT %d", c.Port)
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("CARMARKET_SWEEP_INTERVAL must be positive")
	}
	if c.MinAuctionDuration < 0 {
		return fmt.Errorf("CARMARKET_MIN_AUCTION_DURATION must not be negative")
	}
	if c.BidRate <= 0 || c.BidBurst <= 0 {
		return fmt.Errorf("CARMARKET_BID_RATE and CARMARKET_BID_BURST must be positive")
	}
	return nil
}

// Addr is the HTTP listen address.
func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Database is a store that also exposes its connection pool.
type Database interface {
	store.Store
	DB() *sql.DB
}

// OpenStore opens and migrates the configured database.
func (c Config) OpenStore(ctx context.Context) (Database, error) {
	switch c.DBDriver {
	case DriverPostgres:
		st, err := postgres.Open(ctx, c.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		return st, nil
	case DriverSQLite:
		st, err := sqlite.Open(c.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite %s: %w", c.SQLitePath, err)
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unsupported CARMARKET_DB_DRIVER %q", c.DBDriver)
	}
}
