package flash

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/flashlend/internal/domain"
	"github.com/alanyoungcy/flashlend/internal/econ"
)

// SelfLiquidateRequest asks the engine to unwind an underwater position:
// borrow Amount of the debt (pool) token, sell a slice of the borrower's
// collateral into it, and settle in the same unit. MinOut is the caller's
// floor on the liquidation swap; Venue and SwapPool route it.
type SelfLiquidateRequest struct {
	Borrower        domain.ID
	Amount          uint64
	MinOut          uint64
	CollateralToken domain.ID
	Venue           uint8
	SwapPool        domain.ID
}

// OpenSelfLiquidate runs the self-liquidation strategy as one atomic unit.
// Unlike arbitrage there is no fallback lender: the primary is the only
// source.
func (e *Engine) OpenSelfLiquidate(ctx context.Context, req SelfLiquidateRequest) (Receipt, error) {
	unlock, err := e.lockBorrower(ctx, req.Borrower)
	if err != nil {
		return Receipt{}, err
	}
	defer unlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	if req.MinOut == 0 || req.CollateralToken == (domain.ID{}) || req.SwapPool == (domain.ID{}) {
		return Receipt{}, fmt.Errorf("self-liquidate: %w", domain.ErrInvalidSwapParams)
	}
	venue, ok := e.venues[req.Venue]
	if !ok {
		return Receipt{}, fmt.Errorf("unknown venue %d: %w", req.Venue, domain.ErrInvalidSwapParams)
	}
	feed, ok := e.cfg.CollateralFeeds[req.CollateralToken]
	if !ok {
		return Receipt{}, fmt.Errorf("no feed for collateral %s: %w", req.CollateralToken, domain.ErrInvalidOraclePrice)
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
		Kind:     domain.LoanKindSelfLiquidate,
	}

	u := e.begin()
	defer u.discard()
	u.stageEvent(e.newEvent(loan.Borrower, loan.Kind, "opened", loan.Amount, loan.Fee, 0))

	if err := e.primary.FlashBorrow(ctx, e.cfg.LendingPool, req.Amount, req.Borrower); err != nil {
		return Receipt{}, err
	}
	if err := e.book.Credit(req.Borrower, e.cfg.PoolToken, req.Amount); err != nil {
		return Receipt{}, err
	}
	u.stageCreate(loan)

	price, err := e.oracle.GetPrice(ctx, feed)
	if err != nil {
		return Receipt{}, err
	}

	collateralBalance := e.book.Balance(req.Borrower, req.CollateralToken)
	collateralValue, err := econ.CollateralValue(collateralBalance, price)
	if err != nil {
		return Receipt{}, err
	}
	liqAmount, err := econ.LiquidationAmount(collateralValue, req.Amount, e.cfg.LiqThresholdBp)
	if err != nil {
		return Receipt{}, err
	}
	if liqAmount > collateralBalance {
		return Receipt{}, fmt.Errorf("liquidation size %d exceeds collateral %d: %w",
			liqAmount, collateralBalance, domain.ErrInsufficientFunds)
	}

	out, err := venue.Swapper.Swap(ctx, domain.SwapRequest{
		Pool:         req.SwapPool,
		TokenIn:      req.CollateralToken,
		TokenOut:     e.cfg.PoolToken,
		AmountIn:     liqAmount,
		MinAmountOut: req.MinOut,
		Source:       req.Borrower,
		Destination:  req.Borrower,
	})
	if err != nil {
		return Receipt{}, err
	}
	if err := e.book.Debit(req.Borrower, req.CollateralToken, liqAmount); err != nil {
		return Receipt{}, err
	}
	if err := e.book.Credit(req.Borrower, e.cfg.PoolToken, out); err != nil {
		return Receipt{}, err
	}

	// Fixed post-swap ceiling on top of the caller's MinOut.
	if err := econ.CheckSlippage(req.MinOut, out, e.cfg.LiqSlippageCapBp); err != nil {
		return Receipt{}, err
	}

	if err := u.settle(ledger, loan, 0); err != nil {
		return Receipt{}, err
	}
	if err := u.commit(ctx); err != nil {
		return Receipt{}, err
	}

	e.logger.InfoContext(ctx, "flash self-liquidation settled",
		slog.String("borrower", req.Borrower.Hex()),
		slog.Uint64("amount", req.Amount),
		slog.Uint64("fee", fee),
		slog.Uint64("liquidated", liqAmount),
		slog.String("venue", venue.Name),
	)

	return Receipt{
		Borrower:  req.Borrower,
		Kind:      domain.LoanKindSelfLiquidate,
		Amount:    req.Amount,
		Fee:       fee,
		SettledAt: e.now(),
	}, nil
}
