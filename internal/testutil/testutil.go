// AngelaMos | 2026
// testutil.go

// Package testutil builds the real storage stack on a throwaway SQLite file so
// tests exercise the same migrations and queries as production.
package testutil

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/sessionguard/internal/config"
	"github.com/carterperez-dev/sessionguard/internal/core"
)

// Epoch is the fixed start time handed to manual clocks in tests.
var Epoch = time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)

func DatabaseConfig(t testing.TB) config.DatabaseConfig {
	t.Helper()

	return config.DatabaseConfig{
		Driver: core.DriverSQLite,
		URL:    filepath.Join(t.TempDir(), "sessionguard.db"),
	}
}

// NewDB returns a migrated database that is closed when the test ends.
func NewDB(t testing.TB) *sqlx.DB {
	t.Helper()

	cfg := DatabaseConfig(t)
	ctx := context.Background()

	require.NoError(t, core.Migrate(ctx, cfg))

	db, err := core.NewDatabase(ctx, cfg)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = db.Close() //nolint:errcheck // test teardown
	})

	return db.DB
}

// NewHasher returns an argon2id hasher with parameters small enough for
// tests.
func NewHasher(t testing.TB) *core.Hasher {
	t.Helper()

	h, err := core.NewHasher(FastHashParams())
	require.NoError(t, err)
	return h
}

func FastHashParams() core.HashParams {
	return core.HashParams{
		Memory:  8 * 1024,
		Time:    1,
		Threads: 1,
		KeyLen:  32,
	}
}

func NewClock() *core.ManualClock {
	return core.NewManualClock(Epoch)
}
