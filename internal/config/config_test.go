package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"CARMARKET_DB_DRIVER", "DATABASE_URL", "CARMARKET_SQLITE_PATH", "PORT",
		"CARMARKET_SWEEP_INTERVAL", "CARMARKET_MIN_AUCTION_DURATION",
		"CARMARKET_BID_RATE", "CARMARKET_BID_BURST", "CARMARKET_LOG_LEVEL", "CARMARKET_OTEL_ENDPOINT",
	} {
		// Setenv restores the original value at cleanup.
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DriverSQLite, cfg.DBDriver)
	assert.Equal(t, "carmarket.db", cfg.SQLitePath)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, ":8080", cfg.Addr())
	assert.Equal(t, 15*time.Second, cfg.SweepInterval)
	assert.Equal(t, 5*time.Minute, cfg.MinAuctionDuration)
	assert.Equal(t, 2.0, cfg.BidRate)
	assert.Equal(t, 5, cfg.BidBurst)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Empty(t, cfg.OTelEndpoint)
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("CARMARKET_DB_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "postgres://carmarket@localhost/carmarket?sslmode=disable")
	t.Setenv("PORT", "9090")
	t.Setenv("CARMARKET_SWEEP_INTERVAL", "2s")
	t.Setenv("CARMARKET_MIN_AUCTION_DURATION", "0s")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DriverPostgres, cfg.DBDriver)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, 2*time.Second, cfg.SweepInterval)
	assert.Zero(t, cfg.MinAuctionDuration)
}

func TestLoadErrors(t *testing.T) {
	cases := map[string]map[string]string{
		"malformed duration":   {"CARMARKET_SWEEP_INTERVAL": "soon"},
		"unknown driver":       {"CARMARKET_DB_DRIVER": "mysql"},
		"postgres without url": {"CARMARKET_DB_DRIVER": "postgres"},
		"zero sweep interval":  {"CARMARKET_SWEEP_INTERVAL": "0s"},
		"negative bid rate":    {"CARMARKET_BID_RATE": "-1"},
		"port out of range":    {"PORT": "70000"},
	}
	for name, vars := range cases {
		t.Run(name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range vars {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestOpenStoreSQLite(t *testing.T) {
	clearEnv(t)
	t.Setenv("CARMARKET_SQLITE_PATH", filepath.Join(t.TempDir(), "carmarket.db"))
	cfg, err := Load()
	require.NoError(t, err)

	st, err := cfg.OpenStore(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	var n int
	require.NoError(t, st.DB().QueryRow(`SELECT COUNT(*) FROM users`).Scan(&n))
	assert.Zero(t, n)
}
