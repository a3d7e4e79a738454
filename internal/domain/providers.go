package domain

import "context"

// PriceOracle returns the fixed-scale price for a feed. Implementations wrap
// a remote price service or a deterministic simulator; a cached decorator may
// sit in front of either.
type PriceOracle interface {
	// GetPrice returns the price at PriceScale (1e6) fixed-point scale.
	// A zero or otherwise unusable quote yields ErrInvalidOraclePrice.
	GetPrice(ctx context.Context, feed ID) (uint64, error)
}

// LendingProvider is a capability over an external flash-lending venue. The
// borrow carries an implicit obligation to make the lender whole within the
// same execution unit; the engine enforces that by construction.
type LendingProvider interface {
	Name() string
	// FlashBorrow draws amount from the lender's pool into destination.
	FlashBorrow(ctx context.Context, pool ID, amount uint64, destination ID) error
}

// SwapRequest describes one swap leg against an external venue.
type SwapRequest struct {
	Pool         ID
	TokenIn      ID
	TokenOut     ID
	AmountIn     uint64
	MinAmountOut uint64
	Source       ID
	Destination  ID
}

// SwapProvider is a capability over one swap venue. Swap returns the amount
// of TokenOut produced; venues reject fills below MinAmountOut.
type SwapProvider interface {
	Name() string
	Swap(ctx context.Context, req SwapRequest) (amountOut uint64, err error)
}
