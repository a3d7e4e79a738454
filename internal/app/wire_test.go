package app

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/flashlend/internal/config"
)

func testConfig() config.Config {
	cfg := config.Defaults()
	cfg.Mode = "paper"
	cfg.Pool.Authority = "0x1111111111111111111111111111111111111111111111111111111111111111"
	cfg.Pool.Account = "0x2222222222222222222222222222222222222222222222222222222222222222"
	cfg.Pool.Token = "0x3333333333333333333333333333333333333333333333333333333333333333"
	cfg.Pool.LendingPool = "0x4444444444444444444444444444444444444444444444444444444444444444"
	cfg.Venues = []config.VenueConfig{
		{ID: 1, Name: "alpha", FeeBp: 25, Feed: "0x5555555555555555555555555555555555555555555555555555555555555555"},
	}
	// No distributed extras in tests.
	cfg.Redis.Addr = ""
	return cfg
}

func TestWire(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("FundsPoolFromSeedBalance", func(t *testing.T) {
		cfg := testConfig()
		cfg.Pool.SeedBalance = 5_000_000
		require.NoError(t, cfg.Validate())

		deps, cleanup, err := Wire(context.Background(), &cfg, logger)
		require.NoError(t, err)
		defer cleanup()

		// The book is funded before any mode-specific wiring runs, so
		// serve and paper both start with a solvent pool account.
		account, err := parseID(cfg.Pool.Account)
		require.NoError(t, err)
		token, err := parseID(cfg.Pool.Token)
		require.NoError(t, err)
		assert.Equal(t, uint64(5_000_000), deps.Book.Balance(account, token))
		assert.Equal(t, uint64(5_000_000), deps.Engine.PoolBalance())
	})

	t.Run("RejectsAuthorityKeyMismatch", func(t *testing.T) {
		cfg := testConfig()
		// A real key whose derived address cannot match the configured
		// authority id.
		cfg.Keys.PrivateKey = "0101010101010101010101010101010101010101010101010101010101010101"

		_, _, err := Wire(context.Background(), &cfg, logger)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "authority")
	})
}
