package flash

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/flashlend/internal/domain"
)

// Initialize creates the singleton pool ledger exactly once: 30 bp fee,
// 1e12 per-loan cap, unpaused. A second call fails with ErrAlreadyExists.
func (e *Engine) Initialize(ctx context.Context, authority domain.ID) (domain.PoolLedger, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	ledger := domain.PoolLedger{
		Authority:     authority,
		FeeRateBp:     DefaultFeeRateBp,
		MaxLoanAmount: DefaultMaxLoanAmount,
		Paused:        false,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := e.ledgers.Create(ctx, ledger); err != nil {
		return domain.PoolLedger{}, fmt.Errorf("flash: initialize: %w", err)
	}

	ev := e.newEvent(authority, "", "initialized", 0, 0, 0)
	if err := e.units.ApplyUnit(ctx, domain.UnitEffects{Events: []domain.LoanEvent{ev}}); err != nil {
		return domain.PoolLedger{}, fmt.Errorf("flash: initialize audit: %w", err)
	}
	if e.onEvent != nil {
		e.onEvent(ev)
	}

	e.logger.InfoContext(ctx, "pool initialized",
		slog.String("authority", authority.Hex()),
		slog.Uint64("max_loan", ledger.MaxLoanAmount),
	)
	return ledger, nil
}

// SetPaused flips the emergency pause flag. Authority only. Pausing gates
// every strategy's first precondition; unpausing reopens the pool.
func (e *Engine) SetPaused(ctx context.Context, authority domain.ID, paused bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	ledger, err := e.ledgers.Get(ctx)
	if err != nil {
		return fmt.Errorf("flash: load ledger: %w", err)
	}
	if ledger.Authority != authority {
		return fmt.Errorf("caller %s is not the pool authority: %w", authority, domain.ErrUnauthorized)
	}
	if ledger.Paused == paused {
		return nil
	}
	ledger.Paused = paused
	ledger.UpdatedAt = e.now()

	event := "unpaused"
	if paused {
		event = "paused"
	}

	u := e.begin()
	defer u.discard()
	u.stageLedger(ledger)
	u.stageEvent(e.newEvent(authority, "", event, 0, 0, 0))
	if err := u.commit(ctx); err != nil {
		return err
	}

	e.logger.WarnContext(ctx, "pool pause flag changed",
		slog.Bool("paused", paused),
		slog.String("authority", authority.Hex()),
	)
	return nil
}

// EmergencyWithdraw drains up to the current pool balance to the authority,
// bypassing loan-record bookkeeping. It is callable only by the stored
// authority and only while the pool is paused.
func (e *Engine) EmergencyWithdraw(ctx context.Context, authority domain.ID, amount uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	ledger, err := e.ledgers.Get(ctx)
	if err != nil {
		return fmt.Errorf("flash: load ledger: %w", err)
	}
	if ledger.Authority != authority {
		return fmt.Errorf("caller %s is not the pool authority: %w", authority, domain.ErrUnauthorized)
	}
	if !ledger.Paused {
		return fmt.Errorf("pool must be paused for emergency withdrawal: %w", domain.ErrUnauthorized)
	}
	if amount == 0 || amount > e.PoolBalance() {
		return fmt.Errorf("withdraw %d with pool balance %d: %w", amount, e.PoolBalance(), domain.ErrInsufficientFunds)
	}

	u := e.begin()
	defer u.discard()
	if err := e.book.Transfer(e.cfg.PoolAccount, authority, e.cfg.PoolToken, amount); err != nil {
		return err
	}
	ledger.UpdatedAt = e.now()
	u.stageLedger(ledger)
	u.stageEvent(e.newEvent(authority, "", "emergency_withdraw", amount, 0, 0))
	if err := u.commit(ctx); err != nil {
		return err
	}

	e.logger.WarnContext(ctx, "emergency withdrawal completed",
		slog.String("authority", authority.Hex()),
		slog.Uint64("amount", amount),
	)
	return nil
}
