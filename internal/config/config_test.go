package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	hexA = "0x1111111111111111111111111111111111111111111111111111111111111111"
	hexB = "0x2222222222222222222222222222222222222222222222222222222222222222"
	hexC = "0x3333333333333333333333333333333333333333333333333333333333333333"
	hexD = "0x4444444444444444444444444444444444444444444444444444444444444444"
	hexE = "0x5555555555555555555555555555555555555555555555555555555555555555"
)

// validConfig returns a paper-mode config that passes Validate.
func validConfig() Config {
	cfg := Defaults()
	cfg.Mode = "paper"
	cfg.Pool.Authority = hexA
	cfg.Pool.Account = hexB
	cfg.Pool.Token = hexC
	cfg.Pool.LendingPool = hexD
	cfg.Venues = []VenueConfig{
		{ID: 1, Name: "alpha", FeeBp: 25, Feed: hexE},
	}
	return cfg
}

func TestValidate(t *testing.T) {
	t.Run("AcceptsPaperConfig", func(t *testing.T) {
		cfg := validConfig()
		assert.NoError(t, cfg.Validate())
	})

	t.Run("RequiresPoolIdentifiers", func(t *testing.T) {
		cfg := validConfig()
		cfg.Pool.Account = ""
		cfg.Pool.Token = "not-hex"
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "pool.account is required")
		assert.Contains(t, err.Error(), "pool.token")
	})

	t.Run("ServeModeNeedsVenueURLs", func(t *testing.T) {
		cfg := validConfig()
		cfg.Mode = "serve"
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "base_url is required in serve mode")
		assert.Contains(t, err.Error(), "lending.primary_url")
		assert.Contains(t, err.Error(), "oracle.base_url")
	})

	t.Run("RequiresSeedBalance", func(t *testing.T) {
		cfg := validConfig()
		cfg.Pool.SeedBalance = 0
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "pool.seed_balance must be positive")
	})

	t.Run("RejectsDuplicateVenueIDs", func(t *testing.T) {
		cfg := validConfig()
		cfg.Venues = append(cfg.Venues, VenueConfig{ID: 1, Name: "beta", FeeBp: 30, Feed: hexE})
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "duplicate venue id 1")
	})

	t.Run("RejectsOutOfRangeBp", func(t *testing.T) {
		cfg := validConfig()
		cfg.Pool.MaxBorrowShareBp = 10_001
		cfg.Pool.LiqThresholdBp = 0
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "max_borrow_share_bp")
		assert.Contains(t, err.Error(), "liq_threshold_bp")
	})

	t.Run("RejectsUnknownMode", func(t *testing.T) {
		cfg := validConfig()
		cfg.Mode = "backtest"
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), `unknown mode "backtest"`)
	})

	t.Run("KeysPasswordRequiredWithEncryptedPath", func(t *testing.T) {
		cfg := validConfig()
		cfg.Keys.EncryptedKeyPath = "/tmp/key.json"
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "key_password is required")
	})

	t.Run("ArchiveNeedsBucketAndRetention", func(t *testing.T) {
		cfg := validConfig()
		cfg.Archive.Enabled = true
		cfg.Archive.RetentionDays = 0
		cfg.S3.Bucket = ""
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "retention_days")
		assert.Contains(t, err.Error(), "s3.bucket")
	})
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	data := strings.Join([]string{
		`mode = "paper"`,
		``,
		`[pool]`,
		`authority = "` + hexA + `"`,
		`account = "` + hexB + `"`,
		`token = "` + hexC + `"`,
		`lending_pool = "` + hexD + `"`,
		`repay_window = "120s"`,
		``,
		`[[venues]]`,
		`id = 7`,
		`name = "alpha"`,
		`fee_bp = 25`,
		`feed = "` + hexE + `"`,
	}, "\n")
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "paper", cfg.Mode)
	assert.Equal(t, hexA, cfg.Pool.Authority)
	assert.Equal(t, 120*time.Second, cfg.Pool.RepayWindow.Duration)
	require.Len(t, cfg.Venues, 1)
	assert.Equal(t, 7, cfg.Venues[0].ID)

	// Defaults survive a partial file.
	assert.Equal(t, 9_000, cfg.Pool.MaxBorrowShareBp)
	assert.Equal(t, 8_000, cfg.Pool.LiqThresholdBp)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("FLASHLEND_POOL_AUTHORITY", hexE)
	t.Setenv("FLASHLEND_SERVER_PORT", "9100")
	t.Setenv("FLASHLEND_REDIS_ADDR", "redis.internal:6379")

	cfg := Defaults()
	applyEnvOverrides(&cfg)

	assert.Equal(t, hexE, cfg.Pool.Authority)
	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, "redis.internal:6379", cfg.Redis.Addr)
}

func TestRedactedConfig(t *testing.T) {
	cfg := validConfig()
	cfg.Server.APIKey = "super-secret"
	cfg.Keys.PrivateKey = "deadbeef"
	cfg.Venues[0].APISecret = "venue-secret"

	red := RedactedConfig(&cfg)

	assert.Equal(t, "***", red.Server.APIKey)
	assert.Equal(t, "***", red.Keys.PrivateKey)
	assert.Equal(t, "***", red.Venues[0].APISecret)

	// Original must be untouched.
	assert.Equal(t, "super-secret", cfg.Server.APIKey)
	assert.Equal(t, "venue-secret", cfg.Venues[0].APISecret)
}
