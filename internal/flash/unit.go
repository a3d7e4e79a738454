package flash

import (
	"context"
	"fmt"

	"github.com/alanyoungcy/flashlend/internal/domain"
	"github.com/alanyoungcy/flashlend/internal/econ"
	"github.com/alanyoungcy/flashlend/internal/treasury"
)

// unit is one atomic execution boundary. Treasury effects are guarded by a
// snapshot taken at begin; ledger and loan-record effects accumulate in a
// domain.UnitEffects and hit the store only at commit, inside one store
// transaction. Discarding restores the snapshot, so a failed unit leaves no
// trace. Callers hold the engine mutex for the unit's whole lifetime.
type unit struct {
	eng     *Engine
	snap    treasury.Snapshot
	effects domain.UnitEffects
	done    bool
}

func (e *Engine) begin() *unit {
	return &unit{eng: e, snap: e.book.Snapshot()}
}

func (u *unit) stageLedger(l domain.PoolLedger) {
	u.effects.Ledger = &l
}

func (u *unit) stageCreate(loan domain.ActiveLoan) {
	u.effects.CreateLoan = &loan
}

func (u *unit) stageClose(borrower domain.ID) {
	u.effects.CloseBorrower = &borrower
}

func (u *unit) stageEvent(ev domain.LoanEvent) {
	u.effects.Events = append(u.effects.Events, ev)
}

// commit applies the staged effects. A store failure discards the whole
// unit, including treasury effects.
func (u *unit) commit(ctx context.Context) error {
	if err := u.eng.units.ApplyUnit(ctx, u.effects); err != nil {
		u.discard()
		return fmt.Errorf("flash: commit unit: %w", err)
	}
	u.done = true
	if u.eng.onEvent != nil {
		for _, ev := range u.effects.Events {
			u.eng.onEvent(ev)
		}
	}
	return nil
}

// discard rolls the treasury back to the snapshot taken at begin. Safe to
// call after commit; it is then a no-op.
func (u *unit) discard() {
	if u.done {
		return
	}
	u.eng.book.Restore(u.snap)
	u.done = true
}

// settle performs the repay step shared by every path that closes a loan:
// transfer principal plus fee from the borrower to the pool, bump the ledger
// counters, and stage the close and the settled event. Counter updates are
// checked so the monotone counters can never wrap.
func (u *unit) settle(ledger domain.PoolLedger, loan domain.ActiveLoan, profit uint64) error {
	e := u.eng

	due, err := econ.CheckedAdd(loan.Amount, loan.Fee)
	if err != nil {
		return err
	}
	if err := e.book.Transfer(loan.Borrower, e.cfg.PoolAccount, e.cfg.PoolToken, due); err != nil {
		return err
	}

	ledger.TotalLoansIssued, err = econ.CheckedAdd(ledger.TotalLoansIssued, 1)
	if err != nil {
		return err
	}
	ledger.TotalVolume, err = econ.CheckedAdd(ledger.TotalVolume, loan.Amount)
	if err != nil {
		return err
	}
	ledger.UpdatedAt = e.now()

	u.stageLedger(ledger)
	u.stageClose(loan.Borrower)
	u.stageEvent(e.newEvent(loan.Borrower, loan.Kind, "settled", loan.Amount, loan.Fee, profit))
	return nil
}
