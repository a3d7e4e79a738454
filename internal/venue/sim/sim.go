// Package sim provides deterministic in-process venue implementations for
// paper mode and tests: a lender with finite liquidity, a constant-price
// swapper with a venue fee, and a static oracle.
package sim

import (
	"context"
	"fmt"
	"sync"

	"github.com/alanyoungcy/flashlend/internal/domain"
	"github.com/alanyoungcy/flashlend/internal/econ"
)

// Lender simulates a flash-lending venue with a fixed liquidity budget.
type Lender struct {
	name string

	mu        sync.Mutex
	liquidity uint64
	calls     int
	failAll   bool
}

// NewLender creates a simulated lender holding the given liquidity.
func NewLender(name string, liquidity uint64) *Lender {
	return &Lender{name: name, liquidity: liquidity}
}

// Name returns the venue identifier.
func (l *Lender) Name() string { return l.name }

// SetFailAll forces every subsequent borrow to be declined. Used to exercise
// the engine's fallback path.
func (l *Lender) SetFailAll(fail bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failAll = fail
}

// Calls returns how many borrow attempts the lender has seen.
func (l *Lender) Calls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

// FlashBorrow grants amount against the simulated liquidity budget. A flash
// draw is returned within the same unit, so the budget caps a single loan
// rather than cumulative volume.
func (l *Lender) FlashBorrow(ctx context.Context, pool domain.ID, amount uint64, destination domain.ID) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	if l.failAll {
		return fmt.Errorf("%w: %s offline", domain.ErrVenueInteraction, l.name)
	}
	if amount > l.liquidity {
		return fmt.Errorf("%w: %s cannot fund %d (liquidity %d)", domain.ErrVenueInteraction, l.name, amount, l.liquidity)
	}
	return nil
}

var _ domain.LendingProvider = (*Lender)(nil)

// Pair keys a directed swap price.
type Pair struct {
	In  domain.ID
	Out domain.ID
}

// Swapper simulates one swap venue quoting constant directed prices at
// econ.PriceScale and charging a flat venue fee in basis points.
type Swapper struct {
	name  string
	feeBp uint16

	mu       sync.Mutex
	prices   map[Pair]uint64
	fallback uint64
	calls    int
	fail     bool
}

// NewSwapper creates a simulated venue with the given fee.
func NewSwapper(name string, feeBp uint16) *Swapper {
	return &Swapper{name: name, feeBp: feeBp, prices: make(map[Pair]uint64)}
}

// Name returns the venue identifier.
func (s *Swapper) Name() string { return s.name }

// SetPrice quotes price (at econ.PriceScale) for swapping in -> out.
func (s *Swapper) SetPrice(in, out domain.ID, price uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prices[Pair{In: in, Out: out}] = price
}

// SetDefaultPrice quotes price for every pair without an explicit SetPrice.
// Paper mode uses this so arbitrary routes fill without pre-seeded markets.
func (s *Swapper) SetDefaultPrice(price uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fallback = price
}

// SetFail forces every subsequent swap to fail at the venue.
func (s *Swapper) SetFail(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = fail
}

// Calls returns how many swaps the venue has seen.
func (s *Swapper) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// Swap fills the request at the quoted price after deducting the venue fee.
// Fills below MinAmountOut are rejected with ErrSlippageExceeded, matching
// how real venues enforce the minimum.
func (s *Swapper) Swap(ctx context.Context, sr domain.SwapRequest) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++

	if s.fail {
		return 0, fmt.Errorf("%w: %s offline", domain.ErrVenueInteraction, s.name)
	}
	if sr.AmountIn == 0 || sr.TokenIn == sr.TokenOut {
		return 0, fmt.Errorf("swap %s: %w", s.name, domain.ErrInvalidSwapParams)
	}
	price, ok := s.prices[Pair{In: sr.TokenIn, Out: sr.TokenOut}]
	if !ok {
		price = s.fallback
	}
	if price == 0 {
		return 0, fmt.Errorf("%w: %s has no market for pair", domain.ErrVenueInteraction, s.name)
	}

	afterFee, err := econ.MulDiv(sr.AmountIn, econ.BpScale-uint64(s.feeBp), econ.BpScale)
	if err != nil {
		return 0, err
	}
	out, err := econ.MulDiv(afterFee, price, econ.PriceScale)
	if err != nil {
		return 0, err
	}
	if out < sr.MinAmountOut {
		return 0, fmt.Errorf("swap %s: fill %d below min %d: %w", s.name, out, sr.MinAmountOut, domain.ErrSlippageExceeded)
	}
	return out, nil
}

var _ domain.SwapProvider = (*Swapper)(nil)

// Oracle serves static prices per feed.
type Oracle struct {
	mu     sync.RWMutex
	prices map[domain.ID]uint64
}

// NewOracle creates an empty static oracle.
func NewOracle() *Oracle {
	return &Oracle{prices: make(map[domain.ID]uint64)}
}

// SetPrice sets the quote for feed.
func (o *Oracle) SetPrice(feed domain.ID, price uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.prices[feed] = price
}

// GetPrice returns the configured quote, or ErrInvalidOraclePrice for
// unknown feeds and zero quotes.
func (o *Oracle) GetPrice(ctx context.Context, feed domain.ID) (uint64, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	price, ok := o.prices[feed]
	if !ok || price == 0 {
		return 0, fmt.Errorf("sim oracle: feed %s: %w", feed, domain.ErrInvalidOraclePrice)
	}
	return price, nil
}

var _ domain.PriceOracle = (*Oracle)(nil)
