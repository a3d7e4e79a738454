// Package config defines the top-level configuration for the flash loan
// service and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by FLASHLEND_* environment
// variables.
type Config struct {
	Pool     PoolConfig    `toml:"pool"`
	Venues   []VenueConfig `toml:"venues"`
	Lending  LendingConfig `toml:"lending"`
	Oracle   OracleConfig  `toml:"oracle"`
	Keys     KeysConfig    `toml:"keys"`
	Postgres PgConfig      `toml:"postgres"`
	Redis    RedisConfig   `toml:"redis"`
	S3       S3Config      `toml:"s3"`
	Archive  ArchiveConfig `toml:"archive"`
	Server   ServerConfig  `toml:"server"`
	Notify   NotifyConfig  `toml:"notify"`
	Mode     string        `toml:"mode"`
	LogLevel string        `toml:"log_level"`
}

// PoolConfig identifies the pool and sets its policy knobs. Identifier
// fields are 32-byte hex strings.
type PoolConfig struct {
	Authority   string `toml:"authority"`
	Account     string `toml:"account"`
	Token       string `toml:"token"`
	LendingPool string `toml:"lending_pool"`
	// CollateralFeeds maps a collateral token to its oracle feed.
	CollateralFeeds map[string]string `toml:"collateral_feeds"`

	MaxBorrowShareBp int      `toml:"max_borrow_share_bp"`
	RepayWindow      duration `toml:"repay_window"`
	LiqThresholdBp   int      `toml:"liq_threshold_bp"`
	LiqSlippageCapBp int      `toml:"liq_slippage_cap_bp"`
	LockTTL          duration `toml:"lock_ttl"`

	// SeedBalance funds the treasury pool account at startup. Paper mode
	// additionally sizes its simulated lenders from it.
	SeedBalance uint64 `toml:"seed_balance"`
}

// VenueConfig describes one swap venue.
type VenueConfig struct {
	ID        int    `toml:"id"`
	Name      string `toml:"name"`
	FeeBp     int    `toml:"fee_bp"`
	Feed      string `toml:"feed"`
	BaseURL   string `toml:"base_url"`
	APIKey    string `toml:"api_key"`
	APISecret string `toml:"api_secret"`
}

// LendingConfig holds the primary and optional fallback lending venues.
type LendingConfig struct {
	PrimaryName       string `toml:"primary_name"`
	PrimaryURL        string `toml:"primary_url"`
	PrimaryAPIKey     string `toml:"primary_api_key"`
	PrimaryAPISecret  string `toml:"primary_api_secret"`
	FallbackName      string `toml:"fallback_name"`
	FallbackURL       string `toml:"fallback_url"`
	FallbackAPIKey    string `toml:"fallback_api_key"`
	FallbackAPISecret string `toml:"fallback_api_secret"`
}

// OracleConfig holds the price feed provider parameters.
type OracleConfig struct {
	BaseURL   string `toml:"base_url"`
	APIKey    string `toml:"api_key"`
	APISecret string `toml:"api_secret"`
	// CacheMaxAge bounds how stale a cached quote may be before the oracle
	// is queried again. Zero disables the cache.
	CacheMaxAge duration `toml:"cache_max_age"`
}

// KeysConfig holds the authority key material. PrivateKey takes precedence
// when set; otherwise the key is decrypted from EncryptedKeyPath with
// KeyPassword. When either source is configured the pool authority ID is
// derived from the key and checked against pool.authority at startup.
type KeysConfig struct {
	PrivateKey       string `toml:"private_key"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
}

// PgConfig holds PostgreSQL connection parameters.
type PgConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters. An empty Addr disables the
// distributed lock, price cache, rate limiter, and event bus.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters for the loan event
// archive.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ArchiveConfig controls the loan event archival loop.
type ArchiveConfig struct {
	Enabled       bool     `toml:"enabled"`
	RetentionDays int      `toml:"retention_days"`
	Interval      duration `toml:"interval"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	APIKey      string   `toml:"api_key"`
	RateLimit   int      `toml:"rate_limit"`
	RateWindow  duration `toml:"rate_window"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration wraps time.Duration for TOML round-tripping.
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		Pool: PoolConfig{
			MaxBorrowShareBp: 9_000,
			RepayWindow:      duration{300 * time.Second},
			LiqThresholdBp:   8_000,
			LiqSlippageCapBp: 500,
			LockTTL:          duration{10 * time.Minute},
			SeedBalance:      10_000_000,
			CollateralFeeds:  map[string]string{},
		},
		Lending: LendingConfig{
			PrimaryName:  "primary",
			FallbackName: "fallback",
		},
		Oracle: OracleConfig{
			CacheMaxAge: duration{5 * time.Second},
		},
		Postgres: PgConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "flashlend",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "flashlend-archive",
			ForcePathStyle: true,
		},
		Archive: ArchiveConfig{
			Enabled:       false,
			RetentionDays: 90,
			Interval:      duration{24 * time.Hour},
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
			RateLimit:   10,
			RateWindow:  duration{time.Second},
		},
		Notify: NotifyConfig{
			Events: []string{"settled", "paused", "unpaused", "emergency_withdraw", "error"},
		},
		Mode:     "serve",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode: "serve" runs
// against real venue endpoints and PostgreSQL, "paper" runs fully in-process
// with simulated venues.
var validModes = map[string]bool{
	"serve": true,
	"paper": true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// isHexID reports whether s looks like a 32-byte hex identifier.
func isHexID(s string) bool {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	if len(s) != 64 {
		return false
	}
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'f', r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: serve, paper)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	for _, field := range []struct{ name, val string }{
		{"pool.authority", c.Pool.Authority},
		{"pool.account", c.Pool.Account},
		{"pool.token", c.Pool.Token},
		{"pool.lending_pool", c.Pool.LendingPool},
	} {
		if field.val == "" {
			errs = append(errs, field.name+" is required")
		} else if !isHexID(field.val) {
			errs = append(errs, fmt.Sprintf("%s: %q is not a 32-byte hex identifier", field.name, field.val))
		}
	}
	for token, feed := range c.Pool.CollateralFeeds {
		if !isHexID(token) || !isHexID(feed) {
			errs = append(errs, fmt.Sprintf("pool.collateral_feeds: %q -> %q must both be 32-byte hex identifiers", token, feed))
		}
	}

	if c.Pool.SeedBalance == 0 {
		errs = append(errs, "pool.seed_balance must be positive: the pool account starts empty without it")
	}

	if c.Pool.MaxBorrowShareBp <= 0 || c.Pool.MaxBorrowShareBp > 10_000 {
		errs = append(errs, fmt.Sprintf("pool.max_borrow_share_bp must be in (0, 10000], got %d", c.Pool.MaxBorrowShareBp))
	}
	if c.Pool.LiqThresholdBp <= 0 || c.Pool.LiqThresholdBp > 10_000 {
		errs = append(errs, fmt.Sprintf("pool.liq_threshold_bp must be in (0, 10000], got %d", c.Pool.LiqThresholdBp))
	}
	if c.Pool.LiqSlippageCapBp < 0 || c.Pool.LiqSlippageCapBp > 10_000 {
		errs = append(errs, fmt.Sprintf("pool.liq_slippage_cap_bp must be in [0, 10000], got %d", c.Pool.LiqSlippageCapBp))
	}
	if c.Pool.RepayWindow.Duration <= 0 {
		errs = append(errs, "pool.repay_window must be positive")
	}

	seen := map[int]bool{}
	for i, v := range c.Venues {
		prefix := fmt.Sprintf("venues[%d]", i)
		if v.ID < 0 || v.ID > 255 {
			errs = append(errs, fmt.Sprintf("%s: id must fit a byte, got %d", prefix, v.ID))
		}
		if seen[v.ID] {
			errs = append(errs, fmt.Sprintf("%s: duplicate venue id %d", prefix, v.ID))
		}
		seen[v.ID] = true
		if v.FeeBp < 0 || v.FeeBp > 10_000 {
			errs = append(errs, fmt.Sprintf("%s: fee_bp must be in [0, 10000], got %d", prefix, v.FeeBp))
		}
		if !isHexID(v.Feed) {
			errs = append(errs, fmt.Sprintf("%s: feed %q is not a 32-byte hex identifier", prefix, v.Feed))
		}
		if strings.ToLower(c.Mode) == "serve" && v.BaseURL == "" {
			errs = append(errs, prefix+": base_url is required in serve mode")
		}
	}
	if len(c.Venues) == 0 {
		errs = append(errs, "at least one venue must be configured")
	}

	if strings.ToLower(c.Mode) == "serve" {
		if c.Lending.PrimaryURL == "" {
			errs = append(errs, "lending.primary_url is required in serve mode")
		}
		if c.Oracle.BaseURL == "" {
			errs = append(errs, "oracle.base_url is required in serve mode")
		}
		if c.Postgres.DSN == "" && c.Postgres.Host == "" {
			errs = append(errs, "postgres: either dsn or host must be set in serve mode")
		}
	}

	if c.Keys.EncryptedKeyPath != "" && c.Keys.KeyPassword == "" {
		errs = append(errs, "keys: key_password is required when encrypted_key_path is set")
	}

	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server.port must be in (0, 65535], got %d", c.Server.Port))
		}
		if c.Server.RateLimit > 0 && c.Server.RateWindow.Duration <= 0 {
			errs = append(errs, "server.rate_window must be positive when rate_limit is set")
		}
	}

	if c.Archive.Enabled {
		if c.Archive.RetentionDays <= 0 {
			errs = append(errs, fmt.Sprintf("archive.retention_days must be positive, got %d", c.Archive.RetentionDays))
		}
		if c.Archive.Interval.Duration <= 0 {
			errs = append(errs, "archive.interval must be positive")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3.bucket is required when archive is enabled")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}
