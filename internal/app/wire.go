package app

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	s3blob "github.com/alanyoungcy/flashlend/internal/blob/s3"
	"github.com/alanyoungcy/flashlend/internal/cache/redis"
	"github.com/alanyoungcy/flashlend/internal/config"
	"github.com/alanyoungcy/flashlend/internal/crypto"
	"github.com/alanyoungcy/flashlend/internal/domain"
	"github.com/alanyoungcy/flashlend/internal/econ"
	"github.com/alanyoungcy/flashlend/internal/flash"
	"github.com/alanyoungcy/flashlend/internal/notify"
	"github.com/alanyoungcy/flashlend/internal/server/ws"
	"github.com/alanyoungcy/flashlend/internal/store/memory"
	"github.com/alanyoungcy/flashlend/internal/store/postgres"
	"github.com/alanyoungcy/flashlend/internal/treasury"
	"github.com/alanyoungcy/flashlend/internal/venue"
	"github.com/alanyoungcy/flashlend/internal/venue/sim"
)

// Dependencies bundles everything the application modes need to operate. It
// is constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	// Stores
	Ledgers domain.LedgerStore
	Loans   domain.LoanStore
	Units   domain.UnitStore
	Events  domain.LoanEventStore

	// Core
	Book   *treasury.Book
	Engine *flash.Engine
	Hub    *ws.Hub

	// Redis-backed extras; nil when Redis is not configured.
	RateLimiter domain.RateLimiter
	EventBus    domain.EventBus

	// Archival; nil unless archive.enabled.
	Archiver *s3blob.Archiver

	// Notifications
	Notifier *notify.Notifier

	// Authority key material; nil when no key source is configured.
	Authority *crypto.Authority
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that
// should be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}
	paper := strings.ToLower(cfg.Mode) == "paper"

	// --- Pool identity ---
	authority, err := parseID(cfg.Pool.Authority)
	if err != nil {
		return nil, nil, fmt.Errorf("wire: pool.authority: %w", err)
	}
	poolAccount, err := parseID(cfg.Pool.Account)
	if err != nil {
		return nil, nil, fmt.Errorf("wire: pool.account: %w", err)
	}
	poolToken, err := parseID(cfg.Pool.Token)
	if err != nil {
		return nil, nil, fmt.Errorf("wire: pool.token: %w", err)
	}
	lendingPool, err := parseID(cfg.Pool.LendingPool)
	if err != nil {
		return nil, nil, fmt.Errorf("wire: pool.lending_pool: %w", err)
	}

	collateralFeeds := make(map[domain.ID]domain.ID, len(cfg.Pool.CollateralFeeds))
	for tokenHex, feedHex := range cfg.Pool.CollateralFeeds {
		token, err := parseID(tokenHex)
		if err != nil {
			return nil, nil, fmt.Errorf("wire: collateral token %s: %w", tokenHex, err)
		}
		feed, err := parseID(feedHex)
		if err != nil {
			return nil, nil, fmt.Errorf("wire: collateral feed %s: %w", feedHex, err)
		}
		collateralFeeds[token] = feed
	}

	// --- Authority key (optional; cross-checks pool.authority) ---
	if cfg.Keys.PrivateKey != "" || cfg.Keys.EncryptedKeyPath != "" {
		keyHex, err := crypto.LoadKey(crypto.KeyConfig{
			RawPrivateKey:    cfg.Keys.PrivateKey,
			EncryptedKeyPath: cfg.Keys.EncryptedKeyPath,
			KeyPassword:      cfg.Keys.KeyPassword,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("wire: authority key: %w", err)
		}
		auth, err := crypto.NewAuthority(keyHex)
		if err != nil {
			return nil, nil, fmt.Errorf("wire: authority key: %w", err)
		}
		if auth.ID() != authority {
			return nil, nil, fmt.Errorf("wire: authority key derives %s but pool.authority is %s",
				auth.ID().Hex(), authority.Hex())
		}
		deps.Authority = auth
	}

	// --- Stores ---
	if paper {
		store := memory.New()
		deps.Ledgers = store.Ledgers()
		deps.Loans = store.Loans()
		deps.Units = store.Units()
		deps.Events = store.Events()
	} else {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		pool := pgClient.Pool()
		deps.Ledgers = postgres.NewLedgerStore(pool)
		deps.Loans = postgres.NewLoanStore(pool)
		deps.Units = postgres.NewUnitStore(pool)
		deps.Events = postgres.NewLoanEventStore(pool)
	}

	// --- Redis (optional; empty addr disables the distributed extras) ---
	var (
		priceCache domain.PriceCache
		locks      domain.LockManager
	)
	if cfg.Redis.Addr != "" {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		priceCache = redis.NewPriceCache(redisClient, cfg.Oracle.CacheMaxAge.Duration)
		locks = redis.NewLockManager(redisClient)
		deps.RateLimiter = redis.NewRateLimiter(redisClient)
		deps.EventBus = redis.NewEventBus(redisClient, logger)
	}

	// --- Treasury ---
	// Units settle against the in-process book in both modes, so an
	// unfunded pool account would reject every strategy.
	deps.Book = treasury.New()
	if cfg.Pool.SeedBalance > 0 {
		if err := deps.Book.Credit(poolAccount, poolToken, cfg.Pool.SeedBalance); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: seed pool balance: %w", err)
		}
	}

	// --- Venues and oracle ---
	var (
		oracle   domain.PriceOracle
		primary  domain.LendingProvider
		fallback domain.LendingProvider
		venues   = make(map[uint8]flash.Venue, len(cfg.Venues))
	)
	if paper {
		simOracle := sim.NewOracle()
		for _, feed := range collateralFeeds {
			simOracle.SetPrice(feed, econ.PriceScale)
		}
		for _, vc := range cfg.Venues {
			feed, err := parseID(vc.Feed)
			if err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: venue %q feed: %w", vc.Name, err)
			}
			simOracle.SetPrice(feed, econ.PriceScale)

			swapper := sim.NewSwapper(vc.Name, uint16(vc.FeeBp))
			swapper.SetDefaultPrice(econ.PriceScale)
			venues[uint8(vc.ID)] = flash.Venue{
				Name:    vc.Name,
				FeeBp:   uint16(vc.FeeBp),
				Feed:    feed,
				Swapper: swapper,
			}
		}
		oracle = simOracle
		primary = sim.NewLender(cfg.Lending.PrimaryName, cfg.Pool.SeedBalance*100)
		fallback = sim.NewLender(cfg.Lending.FallbackName, cfg.Pool.SeedBalance*100)
	} else {
		oracle = venue.NewOracleClient(cfg.Oracle.BaseURL, crypto.RequestAuth{
			Key:    cfg.Oracle.APIKey,
			Secret: cfg.Oracle.APISecret,
		})
		if priceCache != nil && cfg.Oracle.CacheMaxAge.Duration > 0 {
			oracle = venue.NewCachedOracle(oracle, priceCache, cfg.Oracle.CacheMaxAge.Duration, logger)
		}

		primary = venue.NewLendingClient(cfg.Lending.PrimaryName, cfg.Lending.PrimaryURL, crypto.RequestAuth{
			Key:    cfg.Lending.PrimaryAPIKey,
			Secret: cfg.Lending.PrimaryAPISecret,
		})
		if cfg.Lending.FallbackURL != "" {
			fallback = venue.NewLendingClient(cfg.Lending.FallbackName, cfg.Lending.FallbackURL, crypto.RequestAuth{
				Key:    cfg.Lending.FallbackAPIKey,
				Secret: cfg.Lending.FallbackAPISecret,
			})
		}

		for _, vc := range cfg.Venues {
			feed, err := parseID(vc.Feed)
			if err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: venue %q feed: %w", vc.Name, err)
			}
			venues[uint8(vc.ID)] = flash.Venue{
				Name:  vc.Name,
				FeeBp: uint16(vc.FeeBp),
				Feed:  feed,
				Swapper: venue.NewSwapClient(vc.Name, vc.BaseURL, crypto.RequestAuth{
					Key:    vc.APIKey,
					Secret: vc.APISecret,
				}),
			}
		}
	}

	// --- WebSocket hub and event fan-out ---
	deps.Hub = ws.NewHub(ws.Config{
		Mode:      cfg.Mode,
		StartedAt: time.Now().UTC(),
	}, logger)

	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	// Committed events go to operators directly. Live stream delivery runs
	// through the bus when one is wired (so every instance's clients see
	// every event) and straight to the hub otherwise.
	hub := deps.Hub
	bus := deps.EventBus
	notifier := deps.Notifier
	onEvent := func(ev domain.LoanEvent) {
		evCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := notifier.LoanEvent(evCtx, ev); err != nil {
			logger.Warn("event notification failed", slog.String("error", err.Error()))
		}

		if bus != nil {
			if err := bus.Publish(evCtx, ev); err != nil {
				logger.Warn("event publish failed, broadcasting locally",
					slog.String("error", err.Error()))
				hub.Broadcast(ev)
			}
			return
		}
		hub.Broadcast(ev)
	}

	// --- Flash engine ---
	deps.Engine = flash.New(flash.Config{
		PoolAccount:      poolAccount,
		PoolToken:        poolToken,
		LendingPool:      lendingPool,
		CollateralFeeds:  collateralFeeds,
		MaxBorrowShareBp: uint16(cfg.Pool.MaxBorrowShareBp),
		RepayWindow:      cfg.Pool.RepayWindow.Duration,
		LiqThresholdBp:   uint16(cfg.Pool.LiqThresholdBp),
		LiqSlippageCapBp: uint16(cfg.Pool.LiqSlippageCapBp),
		LockTTL:          cfg.Pool.LockTTL.Duration,
	}, flash.Deps{
		Ledger:   deps.Ledgers,
		Loans:    deps.Loans,
		Units:    deps.Units,
		Book:     deps.Book,
		Oracle:   oracle,
		Primary:  primary,
		Fallback: fallback,
		Venues:   venues,
		Locks:    locks,
		OnEvent:  onEvent,
	}, logger)

	// --- S3 archive (optional) ---
	if cfg.Archive.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })

		deps.Archiver = s3blob.NewArchiver(
			s3blob.NewWriter(s3Client),
			deps.Events,
			cfg.Archive.RetentionDays,
			cfg.Archive.Interval.Duration,
			logger,
		)
	}

	return deps, cleanup, nil
}

// parseID decodes a 32-byte identifier from hex (with or without 0x prefix).
func parseID(s string) (domain.ID, error) {
	var id domain.ID
	raw, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return id, fmt.Errorf("invalid hex id %q: %w", s, err)
	}
	if len(raw) != len(id) {
		return id, fmt.Errorf("id %q must be %d bytes, got %d", s, len(id), len(raw))
	}
	copy(id[:], raw)
	return id, nil
}
