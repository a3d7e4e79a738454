package venue

import (
	"context"
	"fmt"
	"net/http"

	"github.com/alanyoungcy/flashlend/internal/crypto"
	"github.com/alanyoungcy/flashlend/internal/domain"
)

// LendingClient is a REST adapter over a remote flash-lending venue.
type LendingClient struct {
	name string
	rest restClient
}

// NewLendingClient creates a lending adapter. name identifies the venue in
// logs and receipts ("solend", "save_finance", ...).
func NewLendingClient(name, baseURL string, auth crypto.RequestAuth) *LendingClient {
	return &LendingClient{
		name: name,
		rest: newRESTClient(baseURL, auth),
	}
}

// Name returns the venue identifier.
func (c *LendingClient) Name() string { return c.name }

// FlashBorrow requests an uncollateralized draw of amount from the venue's
// pool into destination. Any transport or venue-side rejection surfaces as
// ErrVenueInteraction; the engine decides whether a fallback attempt is made.
func (c *LendingClient) FlashBorrow(ctx context.Context, pool domain.ID, amount uint64, destination domain.ID) error {
	req := struct {
		Pool        string `json:"pool"`
		Amount      uint64 `json:"amount"`
		Destination string `json:"destination"`
	}{
		Pool:        pool.Hex(),
		Amount:      amount,
		Destination: destination.Hex(),
	}

	var resp struct {
		Granted bool `json:"granted"`
	}
	if err := c.rest.doJSON(ctx, http.MethodPost, "/v1/flash-loans", req, &resp); err != nil {
		return fmt.Errorf("%w: %s: %v", domain.ErrVenueInteraction, c.name, err)
	}
	if !resp.Granted {
		return fmt.Errorf("%w: %s declined flash borrow of %d", domain.ErrVenueInteraction, c.name, amount)
	}
	return nil
}

var _ domain.LendingProvider = (*LendingClient)(nil)
