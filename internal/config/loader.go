package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies FLASHLEND_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known FLASHLEND_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Pool ──
	setStr(&cfg.Pool.Authority, "FLASHLEND_POOL_AUTHORITY")
	setStr(&cfg.Pool.Account, "FLASHLEND_POOL_ACCOUNT")
	setStr(&cfg.Pool.Token, "FLASHLEND_POOL_TOKEN")
	setStr(&cfg.Pool.LendingPool, "FLASHLEND_POOL_LENDING_POOL")
	setInt(&cfg.Pool.MaxBorrowShareBp, "FLASHLEND_POOL_MAX_BORROW_SHARE_BP")
	setDuration(&cfg.Pool.RepayWindow, "FLASHLEND_POOL_REPAY_WINDOW")
	setInt(&cfg.Pool.LiqThresholdBp, "FLASHLEND_POOL_LIQ_THRESHOLD_BP")
	setInt(&cfg.Pool.LiqSlippageCapBp, "FLASHLEND_POOL_LIQ_SLIPPAGE_CAP_BP")
	setDuration(&cfg.Pool.LockTTL, "FLASHLEND_POOL_LOCK_TTL")
	setUint64(&cfg.Pool.SeedBalance, "FLASHLEND_POOL_SEED_BALANCE")

	// ── Lending ──
	setStr(&cfg.Lending.PrimaryName, "FLASHLEND_LENDING_PRIMARY_NAME")
	setStr(&cfg.Lending.PrimaryURL, "FLASHLEND_LENDING_PRIMARY_URL")
	setStr(&cfg.Lending.PrimaryAPIKey, "FLASHLEND_LENDING_PRIMARY_API_KEY")
	setStr(&cfg.Lending.PrimaryAPISecret, "FLASHLEND_LENDING_PRIMARY_API_SECRET")
	setStr(&cfg.Lending.FallbackName, "FLASHLEND_LENDING_FALLBACK_NAME")
	setStr(&cfg.Lending.FallbackURL, "FLASHLEND_LENDING_FALLBACK_URL")
	setStr(&cfg.Lending.FallbackAPIKey, "FLASHLEND_LENDING_FALLBACK_API_KEY")
	setStr(&cfg.Lending.FallbackAPISecret, "FLASHLEND_LENDING_FALLBACK_API_SECRET")

	// ── Oracle ──
	setStr(&cfg.Oracle.BaseURL, "FLASHLEND_ORACLE_BASE_URL")
	setStr(&cfg.Oracle.APIKey, "FLASHLEND_ORACLE_API_KEY")
	setStr(&cfg.Oracle.APISecret, "FLASHLEND_ORACLE_API_SECRET")
	setDuration(&cfg.Oracle.CacheMaxAge, "FLASHLEND_ORACLE_CACHE_MAX_AGE")

	// ── Keys ──
	setStr(&cfg.Keys.PrivateKey, "FLASHLEND_KEYS_PRIVATE_KEY")
	setStr(&cfg.Keys.EncryptedKeyPath, "FLASHLEND_KEYS_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Keys.KeyPassword, "FLASHLEND_KEYS_KEY_PASSWORD")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "FLASHLEND_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "FLASHLEND_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "FLASHLEND_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "FLASHLEND_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "FLASHLEND_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "FLASHLEND_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "FLASHLEND_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "FLASHLEND_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "FLASHLEND_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "FLASHLEND_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "FLASHLEND_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "FLASHLEND_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "FLASHLEND_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "FLASHLEND_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "FLASHLEND_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "FLASHLEND_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "FLASHLEND_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "FLASHLEND_S3_REGION")
	setStr(&cfg.S3.Bucket, "FLASHLEND_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "FLASHLEND_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "FLASHLEND_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "FLASHLEND_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "FLASHLEND_S3_FORCE_PATH_STYLE")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "FLASHLEND_ARCHIVE_ENABLED")
	setInt(&cfg.Archive.RetentionDays, "FLASHLEND_ARCHIVE_RETENTION_DAYS")
	setDuration(&cfg.Archive.Interval, "FLASHLEND_ARCHIVE_INTERVAL")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "FLASHLEND_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "FLASHLEND_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "FLASHLEND_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "FLASHLEND_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimit, "FLASHLEND_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateWindow, "FLASHLEND_SERVER_RATE_WINDOW")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "FLASHLEND_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "FLASHLEND_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "FLASHLEND_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "FLASHLEND_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "FLASHLEND_MODE")
	setStr(&cfg.LogLevel, "FLASHLEND_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setUint64(dst *uint64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
