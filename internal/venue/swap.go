package venue

import (
	"context"
	"fmt"
	"net/http"

	"github.com/alanyoungcy/flashlend/internal/crypto"
	"github.com/alanyoungcy/flashlend/internal/domain"
)

// SwapClient is a REST adapter over one remote swap venue.
type SwapClient struct {
	name string
	rest restClient
}

// NewSwapClient creates a swap adapter for the venue at baseURL.
func NewSwapClient(name, baseURL string, auth crypto.RequestAuth) *SwapClient {
	return &SwapClient{
		name: name,
		rest: newRESTClient(baseURL, auth),
	}
}

// Name returns the venue identifier.
func (c *SwapClient) Name() string { return c.name }

// Swap executes one leg against the venue and returns the produced amount.
// The venue enforces MinAmountOut; a fill below it comes back as a rejection
// and surfaces as ErrSlippageExceeded.
func (c *SwapClient) Swap(ctx context.Context, sr domain.SwapRequest) (uint64, error) {
	if sr.AmountIn == 0 || sr.TokenIn == sr.TokenOut {
		return 0, fmt.Errorf("swap %s: %w", c.name, domain.ErrInvalidSwapParams)
	}

	req := struct {
		Pool         string `json:"pool"`
		TokenIn      string `json:"token_in"`
		TokenOut     string `json:"token_out"`
		AmountIn     uint64 `json:"amount_in"`
		MinAmountOut uint64 `json:"min_amount_out"`
		Source       string `json:"source"`
		Destination  string `json:"destination"`
	}{
		Pool:         sr.Pool.Hex(),
		TokenIn:      sr.TokenIn.Hex(),
		TokenOut:     sr.TokenOut.Hex(),
		AmountIn:     sr.AmountIn,
		MinAmountOut: sr.MinAmountOut,
		Source:       sr.Source.Hex(),
		Destination:  sr.Destination.Hex(),
	}

	var resp struct {
		AmountOut uint64 `json:"amount_out"`
		Rejection string `json:"rejection,omitempty"`
	}
	if err := c.rest.doJSON(ctx, http.MethodPost, "/v1/swaps", req, &resp); err != nil {
		return 0, fmt.Errorf("%w: %s: %v", domain.ErrVenueInteraction, c.name, err)
	}
	if resp.Rejection == "slippage" {
		return 0, fmt.Errorf("swap %s: fill below min_amount_out %d: %w", c.name, sr.MinAmountOut, domain.ErrSlippageExceeded)
	}
	if resp.Rejection != "" {
		return 0, fmt.Errorf("%w: %s rejected swap: %s", domain.ErrVenueInteraction, c.name, resp.Rejection)
	}
	if resp.AmountOut < sr.MinAmountOut {
		return 0, fmt.Errorf("swap %s: fill %d below min_amount_out %d: %w", c.name, resp.AmountOut, sr.MinAmountOut, domain.ErrSlippageExceeded)
	}
	return resp.AmountOut, nil
}

var _ domain.SwapProvider = (*SwapClient)(nil)
