package flash

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/flashlend/internal/domain"
	"github.com/alanyoungcy/flashlend/internal/econ"
	"github.com/alanyoungcy/flashlend/internal/route"
)

// ArbitrageRequest asks the engine to run the cross-venue arbitrage
// strategy: borrow Amount of the pool token, trade it out through the first
// hop's venue and back through the last hop's venue, and settle in the same
// unit. Route is the caller-supplied wire-format hop list.
type ArbitrageRequest struct {
	Borrower  domain.ID
	Amount    uint64
	MinProfit uint64
	Route     []byte
}

// Receipt summarizes one settled loan.
type Receipt struct {
	Borrower  domain.ID       `json:"borrower"`
	Kind      domain.LoanKind `json:"kind"`
	Amount    uint64          `json:"amount"`
	Fee       uint64          `json:"fee"`
	Profit    uint64          `json:"profit"`
	SettledAt time.Time       `json:"settled_at"`
}

// OpenArbitrage runs the arbitrage strategy as one atomic unit. The only
// internally retried operation is the borrow: when the primary lender fails
// the fallback is tried exactly once. Every other failure unwinds the unit
// and surfaces the tagged error.
func (e *Engine) OpenArbitrage(ctx context.Context, req ArbitrageRequest) (Receipt, error) {
	unlock, err := e.lockBorrower(ctx, req.Borrower)
	if err != nil {
		return Receipt{}, err
	}
	defer unlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	// Decode before touching the pool so an obviously malformed route costs
	// nothing. The codec leaves chain linkage to us.
	dexRoute, err := route.Decode(req.Route)
	if err != nil {
		return Receipt{}, err
	}
	if err := route.ValidateChain(dexRoute); err != nil {
		return Receipt{}, err
	}
	first, last := dexRoute.First(), dexRoute.Last()
	if first.TokenIn != e.cfg.PoolToken || last.TokenOut != e.cfg.PoolToken {
		return Receipt{}, fmt.Errorf("route must start and end at the pool token: %w", domain.ErrInvalidDexRoute)
	}
	venueA, ok := e.venues[first.Venue]
	if !ok {
		return Receipt{}, fmt.Errorf("unknown venue %d: %w", first.Venue, domain.ErrInvalidDexRoute)
	}
	venueB, ok := e.venues[last.Venue]
	if !ok {
		return Receipt{}, fmt.Errorf("unknown venue %d: %w", last.Venue, domain.ErrInvalidDexRoute)
	}

	ledger, err := e.checkPreconditions(ctx, req.Amount)
	if err != nil {
		return Receipt{}, err
	}
	if err := e.ensureNoOpenLoan(ctx, req.Borrower); err != nil {
		return Receipt{}, err
	}

	fee, err := econ.ComputeFee(req.Amount, ledger.FeeRateBp)
	if err != nil {
		return Receipt{}, err
	}

	loan := domain.ActiveLoan{
		Borrower: req.Borrower,
		Token:    e.cfg.PoolToken,
		Amount:   req.Amount,
		Fee:      fee,
		OpenedAt: e.now(),
		Kind:     domain.LoanKindArbitrage,
	}

	u := e.begin()
	defer u.discard()
	u.stageEvent(e.newEvent(loan.Borrower, loan.Kind, "opened", loan.Amount, loan.Fee, 0))

	// Two independent quotes, one per venue, drive the pre-trade estimate.
	priceA, err := e.oracle.GetPrice(ctx, venueA.Feed)
	if err != nil {
		return Receipt{}, err
	}
	priceB, err := e.oracle.GetPrice(ctx, venueB.Feed)
	if err != nil {
		return Receipt{}, err
	}
	expected, err := econ.ArbitrageProfit(req.Amount, priceA, priceB, venueA.FeeBp, venueB.FeeBp)
	if err != nil {
		return Receipt{}, err
	}
	if expected < req.MinProfit {
		return Receipt{}, fmt.Errorf("expected profit %d below minimum %d: %w", expected, req.MinProfit, domain.ErrUnprofitableArbitrage)
	}

	if err := e.borrowWithFallback(ctx, req.Borrower, req.Amount); err != nil {
		return Receipt{}, err
	}
	if err := e.book.Credit(req.Borrower, e.cfg.PoolToken, req.Amount); err != nil {
		return Receipt{}, err
	}
	// The record is created at the borrow and closed again by settle, all
	// inside this unit; the store's uniqueness constraint is the final
	// backstop against a concurrently opened record for the borrower.
	u.stageCreate(loan)

	initial := e.book.Balance(req.Borrower, e.cfg.PoolToken)

	// Leg 1: pool token -> intermediate on venue A. Intentionally
	// unprotected; leg 2's minimum-out is the loan's safety net.
	out1, err := venueA.Swapper.Swap(ctx, domain.SwapRequest{
		Pool:         first.Pool,
		TokenIn:      first.TokenIn,
		TokenOut:     first.TokenOut,
		AmountIn:     req.Amount,
		MinAmountOut: 0,
		Source:       req.Borrower,
		Destination:  req.Borrower,
	})
	if err != nil {
		return Receipt{}, err
	}
	if err := e.book.Debit(req.Borrower, e.cfg.PoolToken, req.Amount); err != nil {
		return Receipt{}, err
	}
	if err := e.book.Credit(req.Borrower, first.TokenOut, out1); err != nil {
		return Receipt{}, err
	}

	// Leg 2: the full intermediate balance back to the pool token on venue
	// B, with minimum-out covering principal plus fee.
	due, err := econ.CheckedAdd(req.Amount, fee)
	if err != nil {
		return Receipt{}, err
	}
	intermediate := e.book.Balance(req.Borrower, first.TokenOut)
	out2, err := venueB.Swapper.Swap(ctx, domain.SwapRequest{
		Pool:         last.Pool,
		TokenIn:      last.TokenIn,
		TokenOut:     last.TokenOut,
		AmountIn:     intermediate,
		MinAmountOut: due,
		Source:       req.Borrower,
		Destination:  req.Borrower,
	})
	if err != nil {
		return Receipt{}, err
	}
	if err := e.book.Debit(req.Borrower, first.TokenOut, intermediate); err != nil {
		return Receipt{}, err
	}
	if err := e.book.Credit(req.Borrower, e.cfg.PoolToken, out2); err != nil {
		return Receipt{}, err
	}

	final := e.book.Balance(req.Borrower, e.cfg.PoolToken)
	if final < initial {
		return Receipt{}, fmt.Errorf("route lost %d: %w", initial-final, domain.ErrUnprofitableArbitrage)
	}
	profit := final - initial
	if profit < req.MinProfit {
		return Receipt{}, fmt.Errorf("actual profit %d below minimum %d: %w", profit, req.MinProfit, domain.ErrUnprofitableArbitrage)
	}

	if err := u.settle(ledger, loan, profit); err != nil {
		return Receipt{}, err
	}
	if err := u.commit(ctx); err != nil {
		return Receipt{}, err
	}

	e.logger.InfoContext(ctx, "flash arbitrage settled",
		slog.String("borrower", req.Borrower.Hex()),
		slog.Uint64("amount", req.Amount),
		slog.Uint64("fee", fee),
		slog.Uint64("profit", profit),
		slog.String("venue_a", venueA.Name),
		slog.String("venue_b", venueB.Name),
	)

	return Receipt{
		Borrower:  req.Borrower,
		Kind:      domain.LoanKindArbitrage,
		Amount:    req.Amount,
		Fee:       fee,
		Profit:    profit,
		SettledAt: e.now(),
	}, nil
}

// borrowWithFallback draws the loan from the primary lender, retrying once
// against the fallback. There is no further recovery; both failures abort
// the unit.
func (e *Engine) borrowWithFallback(ctx context.Context, borrower domain.ID, amount uint64) error {
	primaryErr := e.primary.FlashBorrow(ctx, e.cfg.LendingPool, amount, borrower)
	if primaryErr == nil {
		return nil
	}
	if e.fallback == nil {
		return primaryErr
	}
	e.logger.WarnContext(ctx, "primary lender failed, trying fallback",
		slog.String("primary", e.primary.Name()),
		slog.String("fallback", e.fallback.Name()),
		slog.String("error", primaryErr.Error()),
	)
	if err := e.fallback.FlashBorrow(ctx, e.cfg.LendingPool, amount, borrower); err != nil {
		return fmt.Errorf("both lenders failed (primary: %v): %w", primaryErr, err)
	}
	return nil
}
