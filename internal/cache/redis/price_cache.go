package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/flashlend/internal/domain"
)

// PriceCache implements domain.PriceCache using Redis hashes. Each feed's
// quote is stored at key "price:{feed}" with fields "price" and "ts" (Unix
// nanoseconds), expiring after ttl so a dead feed cannot serve stale quotes
// forever.
type PriceCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewPriceCache creates a PriceCache backed by the given Client. Entries
// expire after ttl; zero means no expiry.
func NewPriceCache(c *Client, ttl time.Duration) *PriceCache {
	return &PriceCache{rdb: c.Underlying(), ttl: ttl}
}

var _ domain.PriceCache = (*PriceCache)(nil)

func priceKey(feed domain.ID) string {
	return "price:" + feed.Hex()
}

// SetPrice stores the latest quote for a feed.
func (pc *PriceCache) SetPrice(ctx context.Context, feed domain.ID, price uint64) error {
	key := priceKey(feed)
	fields := map[string]interface{}{
		"price": strconv.FormatUint(price, 10),
		"ts":    strconv.FormatInt(time.Now().UnixNano(), 10),
	}

	pipe := pc.rdb.Pipeline()
	pipe.HSet(ctx, key, fields)
	if pc.ttl > 0 {
		pipe.Expire(ctx, key, pc.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set price %s: %w", feed, err)
	}
	return nil
}

// GetPrice retrieves the cached quote and its timestamp for a feed. It
// returns domain.ErrNotFound when nothing is cached.
func (pc *PriceCache) GetPrice(ctx context.Context, feed domain.ID) (uint64, time.Time, error) {
	vals, err := pc.rdb.HGetAll(ctx, priceKey(feed)).Result()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("redis: get price %s: %w", feed, err)
	}
	if len(vals) == 0 {
		return 0, time.Time{}, domain.ErrNotFound
	}

	priceStr, ok := vals["price"]
	if !ok {
		return 0, time.Time{}, domain.ErrNotFound
	}
	price, err := strconv.ParseUint(priceStr, 10, 64)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("redis: parse price %s: %w", feed, err)
	}

	tsStr, ok := vals["ts"]
	if !ok {
		return 0, time.Time{}, domain.ErrNotFound
	}
	tsNano, err := strconv.ParseInt(tsStr, 10, 64)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("redis: parse ts %s: %w", feed, err)
	}

	return price, time.Unix(0, tsNano), nil
}
