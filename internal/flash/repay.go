package flash

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/flashlend/internal/domain"
	"github.com/alanyoungcy/flashlend/internal/econ"
)

// Repay settles an open loan record in its own atomic unit. The repayment
// must cover principal plus fee and land within the repay window; a late
// attempt fails with ErrLoanNotRepaid and leaves the record open. Only the
// amount due moves to the pool — any excess the caller offered stays with
// the borrower, which is the refund.
func (e *Engine) Repay(ctx context.Context, borrower domain.ID, amount uint64) (Receipt, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ledger, err := e.ledgers.Get(ctx)
	if err != nil {
		return Receipt{}, fmt.Errorf("flash: load ledger: %w", err)
	}

	loan, err := e.loans.Get(ctx, borrower)
	if err != nil {
		return Receipt{}, fmt.Errorf("flash: repay for %s: %w", borrower, err)
	}

	due, err := econ.CheckedAdd(loan.Amount, loan.Fee)
	if err != nil {
		return Receipt{}, err
	}
	if amount < due {
		return Receipt{}, fmt.Errorf("repayment %d below %d due: %w", amount, due, domain.ErrInsufficientFunds)
	}
	if e.now().Sub(loan.OpenedAt) > e.cfg.RepayWindow {
		return Receipt{}, fmt.Errorf("loan opened at %s missed the %s window: %w",
			loan.OpenedAt.UTC().Format("2006-01-02T15:04:05Z"), e.cfg.RepayWindow, domain.ErrLoanNotRepaid)
	}

	u := e.begin()
	defer u.discard()

	if err := u.settle(ledger, loan, 0); err != nil {
		return Receipt{}, err
	}

	if err := u.commit(ctx); err != nil {
		return Receipt{}, err
	}

	e.logger.InfoContext(ctx, "flash loan repaid",
		slog.String("borrower", borrower.Hex()),
		slog.Uint64("amount", loan.Amount),
		slog.Uint64("fee", loan.Fee),
		slog.Uint64("refunded", amount-due),
	)

	return Receipt{
		Borrower:  borrower,
		Kind:      loan.Kind,
		Amount:    loan.Amount,
		Fee:       loan.Fee,
		SettledAt: e.now(),
	}, nil
}
