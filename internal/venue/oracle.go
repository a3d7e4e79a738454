package venue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/flashlend/internal/crypto"
	"github.com/alanyoungcy/flashlend/internal/domain"
)

// OracleClient is a REST adapter over the price-feed provider. Prices are
// unsigned integers at econ.PriceScale.
type OracleClient struct {
	rest restClient
}

// NewOracleClient creates an oracle adapter for the feed service at baseURL.
func NewOracleClient(baseURL string, auth crypto.RequestAuth) *OracleClient {
	return &OracleClient{rest: newRESTClient(baseURL, auth)}
}

// GetPrice fetches the current quote for feed. A zero price is treated as an
// unusable quote and returned as ErrInvalidOraclePrice.
func (c *OracleClient) GetPrice(ctx context.Context, feed domain.ID) (uint64, error) {
	var resp struct {
		Price uint64 `json:"price"`
	}
	if err := c.rest.doJSON(ctx, http.MethodGet, "/v1/prices/"+feed.Hex(), nil, &resp); err != nil {
		return 0, fmt.Errorf("%w: oracle: %v", domain.ErrInvalidOraclePrice, err)
	}
	if resp.Price == 0 {
		return 0, fmt.Errorf("oracle: zero quote for feed %s: %w", feed, domain.ErrInvalidOraclePrice)
	}
	return resp.Price, nil
}

var _ domain.PriceOracle = (*OracleClient)(nil)

// CachedOracle fronts a PriceOracle with a PriceCache. Quotes younger than
// maxAge are served from the cache; fresh quotes are written back on a best
// effort basis so a cache outage never blocks a unit.
type CachedOracle struct {
	inner  domain.PriceOracle
	cache  domain.PriceCache
	maxAge time.Duration
	logger *slog.Logger
}

// NewCachedOracle wraps inner with the given cache and freshness bound.
func NewCachedOracle(inner domain.PriceOracle, cache domain.PriceCache, maxAge time.Duration, logger *slog.Logger) *CachedOracle {
	return &CachedOracle{
		inner:  inner,
		cache:  cache,
		maxAge: maxAge,
		logger: logger.With(slog.String("component", "cached_oracle")),
	}
}

// GetPrice returns a cached quote when fresh enough, falling through to the
// underlying oracle otherwise.
func (c *CachedOracle) GetPrice(ctx context.Context, feed domain.ID) (uint64, error) {
	price, at, err := c.cache.GetPrice(ctx, feed)
	if err == nil && price > 0 && time.Since(at) <= c.maxAge {
		return price, nil
	}
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		c.logger.WarnContext(ctx, "price cache read failed",
			slog.String("feed", feed.Hex()),
			slog.String("error", err.Error()),
		)
	}

	price, err = c.inner.GetPrice(ctx, feed)
	if err != nil {
		return 0, err
	}
	if cacheErr := c.cache.SetPrice(ctx, feed, price); cacheErr != nil {
		c.logger.WarnContext(ctx, "price cache write failed",
			slog.String("feed", feed.Hex()),
			slog.String("error", cacheErr.Error()),
		)
	}
	return price, nil
}

var _ domain.PriceOracle = (*CachedOracle)(nil)
