// Package flash is the orchestration engine for the shared flash loan pool.
// Every operation runs as one atomic unit: effects against the treasury and
// the ledger are staged, external venues are driven synchronously, and the
// unit either commits in full or leaves no trace. A per-pool mutex makes
// conflicting units strictly sequential in-process; the optional distributed
// borrower lock extends the at-most-one-in-flight-unit-per-borrower rule
// across instances.
package flash

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/flashlend/internal/domain"
	"github.com/alanyoungcy/flashlend/internal/econ"
	"github.com/alanyoungcy/flashlend/internal/treasury"
)

const (
	// DefaultFeeRateBp is the pool fee applied to every loan: 0.3%.
	DefaultFeeRateBp uint16 = 30
	// DefaultMaxLoanAmount caps a single loan at 1e12 native units.
	DefaultMaxLoanAmount uint64 = 1_000_000_000_000
	// MaxBorrowShareBp limits one loan to 90% of the live pool balance.
	MaxBorrowShareBp uint16 = 9_000
	// RepayWindow is the hard deadline for settling an open record.
	RepayWindow = 300 * time.Second
	// LiqThresholdBp: a position is liquidatable once debt exceeds 80% of
	// the collateral value.
	LiqThresholdBp uint16 = 8_000
	// LiqSlippageCapBp is the fixed ceiling on the self-liquidation swap.
	LiqSlippageCapBp uint16 = 500
)

// Venue couples one swap venue's adapter with its oracle feed and the fee
// used when estimating expected arbitrage profit.
type Venue struct {
	Name    string
	FeeBp   uint16
	Feed    domain.ID
	Swapper domain.SwapProvider
}

// Config holds the engine's pool identity and policy knobs. Zero-valued
// policy fields fall back to the package defaults above.
type Config struct {
	// PoolAccount owns the pool's token balance in the treasury.
	PoolAccount domain.ID
	// PoolToken is the single token this pool lends.
	PoolToken domain.ID
	// LendingPool is the remote pool identifier passed to lending venues.
	LendingPool domain.ID
	// CollateralFeeds maps a collateral token to its oracle feed.
	CollateralFeeds map[domain.ID]domain.ID

	MaxBorrowShareBp uint16
	RepayWindow      time.Duration
	LiqThresholdBp   uint16
	LiqSlippageCapBp uint16
	// LockTTL bounds how long a borrower lock may outlive a crashed unit.
	LockTTL time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxBorrowShareBp == 0 {
		c.MaxBorrowShareBp = MaxBorrowShareBp
	}
	if c.RepayWindow == 0 {
		c.RepayWindow = RepayWindow
	}
	if c.LiqThresholdBp == 0 {
		c.LiqThresholdBp = LiqThresholdBp
	}
	if c.LiqSlippageCapBp == 0 {
		c.LiqSlippageCapBp = LiqSlippageCapBp
	}
	if c.LockTTL == 0 {
		c.LockTTL = 2 * c.RepayWindow
	}
	return c
}

// Deps bundles the engine's collaborators. Locks and OnEvent are optional.
type Deps struct {
	Ledger  domain.LedgerStore
	Loans   domain.LoanStore
	Units   domain.UnitStore
	Book    *treasury.Book
	Oracle  domain.PriceOracle
	Primary domain.LendingProvider
	// Fallback is tried exactly once when the primary borrow fails, and
	// only for the arbitrage strategy.
	Fallback domain.LendingProvider
	Venues   map[uint8]Venue
	Locks    domain.LockManager
	// OnEvent observes committed loan events (websocket hub, notifier).
	OnEvent func(domain.LoanEvent)
}

// Engine orchestrates flash loan strategies against the shared pool.
type Engine struct {
	cfg      Config
	ledgers  domain.LedgerStore
	loans    domain.LoanStore
	units    domain.UnitStore
	book     *treasury.Book
	oracle   domain.PriceOracle
	primary  domain.LendingProvider
	fallback domain.LendingProvider
	venues   map[uint8]Venue
	locks    domain.LockManager
	onEvent  func(domain.LoanEvent)
	logger   *slog.Logger

	// now is swapped out by tests to pin the clock.
	now func() time.Time

	// mu serializes units over the pool balance and ledger counters.
	mu sync.Mutex
}

// New creates an Engine. The treasury book is the engine's book of record
// for every balance a unit touches.
func New(cfg Config, deps Deps, logger *slog.Logger) *Engine {
	return &Engine{
		cfg:      cfg.withDefaults(),
		ledgers:  deps.Ledger,
		loans:    deps.Loans,
		units:    deps.Units,
		book:     deps.Book,
		oracle:   deps.Oracle,
		primary:  deps.Primary,
		fallback: deps.Fallback,
		venues:   deps.Venues,
		locks:    deps.Locks,
		onEvent:  deps.OnEvent,
		logger:   logger.With(slog.String("component", "flash_engine")),
		now:      time.Now,
	}
}

// Book exposes the treasury for wiring-time funding and read-only surfaces.
func (e *Engine) Book() *treasury.Book { return e.book }

// Ledger returns the current pool ledger.
func (e *Engine) Ledger(ctx context.Context) (domain.PoolLedger, error) {
	return e.ledgers.Get(ctx)
}

// PoolBalance returns the live balance of the pool token account.
func (e *Engine) PoolBalance() uint64 {
	return e.book.Balance(e.cfg.PoolAccount, e.cfg.PoolToken)
}

// ActiveLoans lists every open loan record.
func (e *Engine) ActiveLoans(ctx context.Context) ([]domain.ActiveLoan, error) {
	return e.loans.List(ctx)
}

// lockBorrower takes the distributed borrower lock when a lock manager is
// wired. A held lock means a unit for this borrower is already in flight
// somewhere, which callers observe as ErrLoanActive.
func (e *Engine) lockBorrower(ctx context.Context, borrower domain.ID) (func(), error) {
	if e.locks == nil {
		return func() {}, nil
	}
	unlock, err := e.locks.Acquire(ctx, "loan:"+borrower.Hex(), e.cfg.LockTTL)
	if err != nil {
		if errors.Is(err, domain.ErrLockHeld) {
			return nil, fmt.Errorf("borrower %s: %w", borrower, domain.ErrLoanActive)
		}
		return nil, fmt.Errorf("flash: borrower lock: %w", err)
	}
	return unlock, nil
}

// checkPreconditions runs the shared strategy gate: pool initialized and not
// paused, amount positive and within the per-loan cap, and within 90% of the
// live pool balance. It returns the current ledger on success.
func (e *Engine) checkPreconditions(ctx context.Context, amount uint64) (domain.PoolLedger, error) {
	ledger, err := e.ledgers.Get(ctx)
	if err != nil {
		return domain.PoolLedger{}, fmt.Errorf("flash: load ledger: %w", err)
	}
	if ledger.Paused {
		return domain.PoolLedger{}, fmt.Errorf("pool is paused: %w", domain.ErrUnauthorized)
	}
	if amount > ledger.MaxLoanAmount {
		return domain.PoolLedger{}, fmt.Errorf("amount %d exceeds cap %d: %w", amount, ledger.MaxLoanAmount, domain.ErrExceedsMaxLoan)
	}
	if amount == 0 {
		return domain.PoolLedger{}, fmt.Errorf("zero amount: %w", domain.ErrInsufficientFunds)
	}
	maxBorrow, err := econ.MulDiv(e.PoolBalance(), uint64(e.cfg.MaxBorrowShareBp), econ.BpScale)
	if err != nil {
		return domain.PoolLedger{}, err
	}
	if amount > maxBorrow {
		return domain.PoolLedger{}, fmt.Errorf("amount %d exceeds available liquidity %d: %w", amount, maxBorrow, domain.ErrInsufficientFunds)
	}
	return ledger, nil
}

// ensureNoOpenLoan enforces the at-most-one-open-record-per-borrower rule.
func (e *Engine) ensureNoOpenLoan(ctx context.Context, borrower domain.ID) error {
	_, err := e.loans.Get(ctx, borrower)
	switch {
	case err == nil:
		return fmt.Errorf("borrower %s: %w", borrower, domain.ErrLoanActive)
	case errors.Is(err, domain.ErrNotFound):
		return nil
	default:
		return fmt.Errorf("flash: load loan record: %w", err)
	}
}

func (e *Engine) newEvent(borrower domain.ID, kind domain.LoanKind, event string, amount, fee, profit uint64) domain.LoanEvent {
	return domain.LoanEvent{
		ID:        uuid.New().String(),
		Borrower:  borrower,
		Kind:      kind,
		Event:     event,
		Amount:    amount,
		Fee:       fee,
		Profit:    profit,
		CreatedAt: e.now(),
	}
}
