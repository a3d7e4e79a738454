package flash

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/flashlend/internal/domain"
	"github.com/alanyoungcy/flashlend/internal/route"
	"github.com/alanyoungcy/flashlend/internal/store/memory"
	"github.com/alanyoungcy/flashlend/internal/treasury"
	"github.com/alanyoungcy/flashlend/internal/venue/sim"
)

func testID(b byte) domain.ID { return domain.ID{31: b} }

var (
	poolAcct   = testID(0xA0)
	poolToken  = testID(0x01)
	interToken = testID(0x02)
	collToken  = testID(0x03)
	lendPool   = testID(0xB0)
	feedA      = testID(0xF1)
	feedB      = testID(0xF2)
	collFeed   = testID(0xF3)
	authority  = testID(0xAD)
	borrower   = testID(0x42)
	swapPoolA  = testID(0x11)
	swapPoolB  = testID(0x12)
)

type fixture struct {
	eng      *Engine
	store    *memory.Store
	units    *recordingUnits
	book     *treasury.Book
	primary  *sim.Lender
	fallback *sim.Lender
	venueA   *sim.Swapper
	venueB   *sim.Swapper
	oracle   *sim.Oracle
	events   []domain.LoanEvent
	clock    time.Time
}

// recordingUnits keeps the most recently applied unit so tests can inspect
// what a committed operation staged.
type recordingUnits struct {
	domain.UnitStore
	last domain.UnitEffects
}

func (r *recordingUnits) ApplyUnit(ctx context.Context, effects domain.UnitEffects) error {
	r.last = effects
	return r.UnitStore.ApplyUnit(ctx, effects)
}

// newFixture wires the engine against the memory store and simulated venues:
// 10M pool liquidity, venue A at 25 bp / 1.05 quote, venue B at 30 bp / 1.00
// quote, and a pinned clock.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithPool(t, 10_000_000)
}

// newFixtureWithPool is newFixture with an explicit starting pool balance.
func newFixtureWithPool(t *testing.T, poolBalance uint64) *fixture {
	t.Helper()

	f := &fixture{
		store:    memory.New(),
		book:     treasury.New(),
		primary:  sim.NewLender("primary", 100_000_000),
		fallback: sim.NewLender("fallback", 100_000_000),
		venueA:   sim.NewSwapper("alpha", 25),
		venueB:   sim.NewSwapper("beta", 30),
		oracle:   sim.NewOracle(),
		clock:    time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}

	f.oracle.SetPrice(feedA, 1_050_000)
	f.oracle.SetPrice(feedB, 1_000_000)
	f.venueA.SetPrice(poolToken, interToken, 1_050_000)
	f.venueB.SetPrice(interToken, poolToken, 1_000_000)

	f.units = &recordingUnits{UnitStore: f.store.Units()}

	cfg := Config{
		PoolAccount:     poolAcct,
		PoolToken:       poolToken,
		LendingPool:     lendPool,
		CollateralFeeds: map[domain.ID]domain.ID{collToken: collFeed},
	}
	deps := Deps{
		Ledger:   f.store.Ledgers(),
		Loans:    f.store.Loans(),
		Units:    f.units,
		Book:     f.book,
		Oracle:   f.oracle,
		Primary:  f.primary,
		Fallback: f.fallback,
		Venues: map[uint8]Venue{
			1: {Name: "alpha", FeeBp: 25, Feed: feedA, Swapper: f.venueA},
			2: {Name: "beta", FeeBp: 30, Feed: feedB, Swapper: f.venueB},
		},
		OnEvent: func(ev domain.LoanEvent) { f.events = append(f.events, ev) },
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f.eng = New(cfg, deps, logger)
	f.eng.now = func() time.Time { return f.clock }

	if poolBalance > 0 {
		require.NoError(t, f.book.Credit(poolAcct, poolToken, poolBalance))
	}
	_, err := f.eng.Initialize(context.Background(), authority)
	require.NoError(t, err)
	return f
}

func (f *fixture) arbRoute(t *testing.T) []byte {
	t.Helper()
	return route.Encode(domain.DexRoute{Hops: []domain.DexHop{
		{Venue: 1, TokenIn: poolToken, TokenOut: interToken, Pool: swapPoolA},
		{Venue: 2, TokenIn: interToken, TokenOut: poolToken, Pool: swapPoolB},
	}})
}

func (f *fixture) seedOpenLoan(t *testing.T, amount, fee uint64) {
	t.Helper()
	err := f.store.Units().ApplyUnit(context.Background(), domain.UnitEffects{
		CreateLoan: &domain.ActiveLoan{
			Borrower: borrower,
			Token:    poolToken,
			Amount:   amount,
			Fee:      fee,
			OpenedAt: f.clock,
			Kind:     domain.LoanKindArbitrage,
		},
	})
	require.NoError(t, err)
}

func eventNames(events []domain.LoanEvent) []string {
	out := make([]string, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.Event)
	}
	return out
}

func TestInitialize(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ledger, err := f.eng.Ledger(ctx)
	require.NoError(t, err)
	assert.Equal(t, authority, ledger.Authority)
	assert.Equal(t, DefaultFeeRateBp, ledger.FeeRateBp)
	assert.Equal(t, DefaultMaxLoanAmount, ledger.MaxLoanAmount)
	assert.False(t, ledger.Paused)
	assert.Zero(t, ledger.TotalLoansIssued)
	assert.Equal(t, []string{"initialized"}, eventNames(f.events))

	_, err = f.eng.Initialize(ctx, authority)
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)
}

func TestOpenArbitrage(t *testing.T) {
	ctx := context.Background()

	t.Run("SettlesProfitably", func(t *testing.T) {
		f := newFixture(t)
		rcpt, err := f.eng.OpenArbitrage(ctx, ArbitrageRequest{
			Borrower:  borrower,
			Amount:    1_000_000,
			MinProfit: 40_000,
			Route:     f.arbRoute(t),
		})
		require.NoError(t, err)

		// Leg 1: 1_000_000 less 25 bp = 997_500, at 1.05 -> 1_047_375.
		// Leg 2: less 30 bp = 1_044_232, at 1.00 -> 1_044_232.
		assert.Equal(t, uint64(3_000), rcpt.Fee)
		assert.Equal(t, uint64(44_232), rcpt.Profit)
		assert.Equal(t, domain.LoanKindArbitrage, rcpt.Kind)

		// Borrower keeps profit minus the pool fee; pool gains the amount due.
		assert.Equal(t, uint64(41_232), f.book.Balance(borrower, poolToken))
		assert.Equal(t, uint64(10_000_000+1_003_000), f.eng.PoolBalance())
		assert.Zero(t, f.book.Balance(borrower, interToken))

		ledger, err := f.eng.Ledger(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint64(1), ledger.TotalLoansIssued)
		assert.Equal(t, uint64(1_000_000), ledger.TotalVolume)

		loans, err := f.eng.ActiveLoans(ctx)
		require.NoError(t, err)
		assert.Empty(t, loans)

		assert.Equal(t, []string{"initialized", "opened", "settled"}, eventNames(f.events))
	})

	t.Run("RecordCreatedAndClosedInUnit", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.eng.OpenArbitrage(ctx, ArbitrageRequest{
			Borrower: borrower,
			Amount:   1_000_000,
			Route:    f.arbRoute(t),
		})
		require.NoError(t, err)

		// One unit carries the whole lifecycle: the record opened at the
		// borrow and closed at settle, leaving nothing behind.
		require.NotNil(t, f.units.last.CreateLoan)
		assert.Equal(t, borrower, f.units.last.CreateLoan.Borrower)
		assert.Equal(t, domain.LoanKindArbitrage, f.units.last.CreateLoan.Kind)
		require.NotNil(t, f.units.last.CloseBorrower)
		assert.Equal(t, borrower, *f.units.last.CloseBorrower)

		_, err = f.store.Loans().Get(ctx, borrower)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("RejectsOnUnfundedPool", func(t *testing.T) {
		f := newFixtureWithPool(t, 0)
		_, err := f.eng.OpenArbitrage(ctx, ArbitrageRequest{
			Borrower: borrower,
			Amount:   1,
			Route:    f.arbRoute(t),
		})
		assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
		assert.Zero(t, f.primary.Calls())
		assert.Zero(t, f.fallback.Calls())
	})

	t.Run("RejectsOverMaxLoan", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.eng.OpenArbitrage(ctx, ArbitrageRequest{
			Borrower: borrower,
			Amount:   DefaultMaxLoanAmount + 1,
			Route:    f.arbRoute(t),
		})
		assert.ErrorIs(t, err, domain.ErrExceedsMaxLoan)
	})

	t.Run("RejectsOverLiquidityShare", func(t *testing.T) {
		f := newFixture(t)
		// 90% of the 10M pool is 9M; ask for one unit more.
		_, err := f.eng.OpenArbitrage(ctx, ArbitrageRequest{
			Borrower: borrower,
			Amount:   9_000_001,
			Route:    f.arbRoute(t),
		})
		assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
		assert.Zero(t, f.primary.Calls())
		assert.Zero(t, f.venueA.Calls())
	})

	t.Run("RejectsWhilePaused", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.eng.SetPaused(ctx, authority, true))
		_, err := f.eng.OpenArbitrage(ctx, ArbitrageRequest{
			Borrower: borrower,
			Amount:   1_000_000,
			Route:    f.arbRoute(t),
		})
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
	})

	t.Run("RejectsSecondOpenLoan", func(t *testing.T) {
		f := newFixture(t)
		f.seedOpenLoan(t, 500_000, 1_500)
		_, err := f.eng.OpenArbitrage(ctx, ArbitrageRequest{
			Borrower: borrower,
			Amount:   1_000_000,
			Route:    f.arbRoute(t),
		})
		assert.ErrorIs(t, err, domain.ErrLoanActive)
		assert.Zero(t, f.primary.Calls())
	})

	t.Run("RejectsMalformedRoute", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.eng.OpenArbitrage(ctx, ArbitrageRequest{
			Borrower: borrower,
			Amount:   1_000_000,
			Route:    []byte{0x01, 0x02},
		})
		assert.ErrorIs(t, err, domain.ErrInvalidDexRoute)
	})

	t.Run("RejectsRouteNotEndingAtPoolToken", func(t *testing.T) {
		f := newFixture(t)
		raw := route.Encode(domain.DexRoute{Hops: []domain.DexHop{
			{Venue: 1, TokenIn: poolToken, TokenOut: interToken, Pool: swapPoolA},
		}})
		_, err := f.eng.OpenArbitrage(ctx, ArbitrageRequest{
			Borrower: borrower,
			Amount:   1_000_000,
			Route:    raw,
		})
		assert.ErrorIs(t, err, domain.ErrInvalidDexRoute)
	})

	t.Run("SkipsBorrowWhenExpectedUnprofitable", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.eng.OpenArbitrage(ctx, ArbitrageRequest{
			Borrower:  borrower,
			Amount:    1_000_000,
			MinProfit: 1_000_000,
			Route:     f.arbRoute(t),
		})
		assert.ErrorIs(t, err, domain.ErrUnprofitableArbitrage)
		assert.Zero(t, f.primary.Calls())
		assert.Zero(t, f.venueA.Calls())
	})

	t.Run("UsesFallbackLenderOnce", func(t *testing.T) {
		f := newFixture(t)
		f.primary.SetFailAll(true)
		rcpt, err := f.eng.OpenArbitrage(ctx, ArbitrageRequest{
			Borrower: borrower,
			Amount:   1_000_000,
			Route:    f.arbRoute(t),
		})
		require.NoError(t, err)
		assert.Equal(t, uint64(44_232), rcpt.Profit)
		assert.Equal(t, 1, f.primary.Calls())
		assert.Equal(t, 1, f.fallback.Calls())
	})

	t.Run("BothLendersFailingRollsBack", func(t *testing.T) {
		f := newFixture(t)
		f.primary.SetFailAll(true)
		f.fallback.SetFailAll(true)
		_, err := f.eng.OpenArbitrage(ctx, ArbitrageRequest{
			Borrower: borrower,
			Amount:   1_000_000,
			Route:    f.arbRoute(t),
		})
		assert.ErrorIs(t, err, domain.ErrVenueInteraction)
		assert.Zero(t, f.book.Balance(borrower, poolToken))
		assert.Equal(t, uint64(10_000_000), f.eng.PoolBalance())
	})

	t.Run("SecondLegFailureLeavesNoTrace", func(t *testing.T) {
		f := newFixture(t)
		f.venueB.SetFail(true)
		_, err := f.eng.OpenArbitrage(ctx, ArbitrageRequest{
			Borrower: borrower,
			Amount:   1_000_000,
			Route:    f.arbRoute(t),
		})
		assert.ErrorIs(t, err, domain.ErrVenueInteraction)

		// Full unwind: borrower holds nothing, the pool is untouched, no
		// record or counter survives, and the discarded unit's events never
		// reached the store.
		assert.Zero(t, f.book.Balance(borrower, poolToken))
		assert.Zero(t, f.book.Balance(borrower, interToken))
		assert.Equal(t, uint64(10_000_000), f.eng.PoolBalance())

		ledger, lerr := f.eng.Ledger(ctx)
		require.NoError(t, lerr)
		assert.Zero(t, ledger.TotalLoansIssued)
		assert.Zero(t, ledger.TotalVolume)

		loans, lerr := f.eng.ActiveLoans(ctx)
		require.NoError(t, lerr)
		assert.Empty(t, loans)
		assert.Equal(t, []string{"initialized"}, eventNames(f.events))
	})
}

func TestOpenSelfLiquidate(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) *fixture {
		f := newFixture(t)
		// 500k collateral units at a raw oracle quote of 2 value each, so
		// collateral value is 1M and the 80% threshold sits at 800k debt.
		require.NoError(t, f.book.Credit(borrower, collToken, 500_000))
		f.oracle.SetPrice(collFeed, 2)
		f.venueA.SetPrice(collToken, poolToken, 2_300_000)
		return f
	}

	t.Run("SettlesUnderwaterPosition", func(t *testing.T) {
		f := setup(t)
		rcpt, err := f.eng.OpenSelfLiquidate(ctx, SelfLiquidateRequest{
			Borrower:        borrower,
			Amount:          900_000,
			MinOut:          1_000_000,
			CollateralToken: collToken,
			Venue:           1,
			SwapPool:        swapPoolA,
		})
		require.NoError(t, err)
		assert.Equal(t, domain.LoanKindSelfLiquidate, rcpt.Kind)
		assert.Equal(t, uint64(2_700), rcpt.Fee)
		assert.Zero(t, rcpt.Profit)

		// Half the 900k debt is liquidated: 450k collateral less 25 bp at a
		// 2.3 swap price fills 1_032_412 debt tokens.
		assert.Equal(t, uint64(50_000), f.book.Balance(borrower, collToken))
		assert.Equal(t, uint64(900_000+1_032_412-902_700), f.book.Balance(borrower, poolToken))
		assert.Equal(t, uint64(10_000_000+902_700), f.eng.PoolBalance())

		ledger, err := f.eng.Ledger(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint64(1), ledger.TotalLoansIssued)
		assert.Equal(t, uint64(900_000), ledger.TotalVolume)

		require.NotNil(t, f.units.last.CreateLoan)
		assert.Equal(t, domain.LoanKindSelfLiquidate, f.units.last.CreateLoan.Kind)
		require.NotNil(t, f.units.last.CloseBorrower)
	})

	t.Run("RejectsHealthyPosition", func(t *testing.T) {
		f := setup(t)
		_, err := f.eng.OpenSelfLiquidate(ctx, SelfLiquidateRequest{
			Borrower:        borrower,
			Amount:          700_000,
			MinOut:          500_000,
			CollateralToken: collToken,
			Venue:           1,
			SwapPool:        swapPoolA,
		})
		assert.ErrorIs(t, err, domain.ErrLiquidationThresholdNotMet)

		// The borrow is unwound along with everything else.
		assert.Zero(t, f.book.Balance(borrower, poolToken))
		assert.Equal(t, uint64(500_000), f.book.Balance(borrower, collToken))
		assert.Equal(t, uint64(10_000_000), f.eng.PoolBalance())
	})

	t.Run("RejectsZeroMinOut", func(t *testing.T) {
		f := setup(t)
		_, err := f.eng.OpenSelfLiquidate(ctx, SelfLiquidateRequest{
			Borrower:        borrower,
			Amount:          900_000,
			CollateralToken: collToken,
			Venue:           1,
			SwapPool:        swapPoolA,
		})
		assert.ErrorIs(t, err, domain.ErrInvalidSwapParams)
	})

	t.Run("RejectsUnknownCollateral", func(t *testing.T) {
		f := setup(t)
		_, err := f.eng.OpenSelfLiquidate(ctx, SelfLiquidateRequest{
			Borrower:        borrower,
			Amount:          900_000,
			MinOut:          1_000_000,
			CollateralToken: interToken,
			Venue:           1,
			SwapPool:        swapPoolA,
		})
		assert.ErrorIs(t, err, domain.ErrInvalidOraclePrice)
	})

	t.Run("NoFallbackLender", func(t *testing.T) {
		f := setup(t)
		f.primary.SetFailAll(true)
		_, err := f.eng.OpenSelfLiquidate(ctx, SelfLiquidateRequest{
			Borrower:        borrower,
			Amount:          900_000,
			MinOut:          1_000_000,
			CollateralToken: collToken,
			Venue:           1,
			SwapPool:        swapPoolA,
		})
		assert.ErrorIs(t, err, domain.ErrVenueInteraction)
		assert.Equal(t, 1, f.primary.Calls())
		assert.Zero(t, f.fallback.Calls())
	})
}

func TestRepay(t *testing.T) {
	ctx := context.Background()

	t.Run("ClosesInsideWindow", func(t *testing.T) {
		f := newFixture(t)
		f.seedOpenLoan(t, 500_000, 1_500)
		require.NoError(t, f.book.Credit(borrower, poolToken, 600_000))
		f.clock = f.clock.Add(299 * time.Second)

		rcpt, err := f.eng.Repay(ctx, borrower, 501_500)
		require.NoError(t, err)
		assert.Equal(t, uint64(500_000), rcpt.Amount)
		assert.Equal(t, uint64(1_500), rcpt.Fee)

		// Only the amount due moves; the rest stays with the borrower.
		assert.Equal(t, uint64(98_500), f.book.Balance(borrower, poolToken))
		assert.Equal(t, uint64(10_000_000+501_500), f.eng.PoolBalance())

		loans, err := f.eng.ActiveLoans(ctx)
		require.NoError(t, err)
		assert.Empty(t, loans)

		ledger, err := f.eng.Ledger(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint64(1), ledger.TotalLoansIssued)
	})

	t.Run("ExcessStaysWithBorrower", func(t *testing.T) {
		f := newFixture(t)
		f.seedOpenLoan(t, 500_000, 1_500)
		require.NoError(t, f.book.Credit(borrower, poolToken, 600_000))

		_, err := f.eng.Repay(ctx, borrower, 600_000)
		require.NoError(t, err)
		assert.Equal(t, uint64(98_500), f.book.Balance(borrower, poolToken))
	})

	t.Run("RejectsUnderpayment", func(t *testing.T) {
		f := newFixture(t)
		f.seedOpenLoan(t, 500_000, 1_500)
		require.NoError(t, f.book.Credit(borrower, poolToken, 600_000))

		_, err := f.eng.Repay(ctx, borrower, 501_499)
		assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
	})

	t.Run("LateRepayLeavesRecordOpen", func(t *testing.T) {
		f := newFixture(t)
		f.seedOpenLoan(t, 500_000, 1_500)
		require.NoError(t, f.book.Credit(borrower, poolToken, 600_000))
		f.clock = f.clock.Add(301 * time.Second)

		_, err := f.eng.Repay(ctx, borrower, 501_500)
		assert.ErrorIs(t, err, domain.ErrLoanNotRepaid)

		loans, err := f.eng.ActiveLoans(ctx)
		require.NoError(t, err)
		require.Len(t, loans, 1)
		assert.Equal(t, borrower, loans[0].Borrower)
		assert.Equal(t, uint64(600_000), f.book.Balance(borrower, poolToken))
	})

	t.Run("UnknownBorrower", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.eng.Repay(ctx, borrower, 1_000)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestSetPaused(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	assert.ErrorIs(t, f.eng.SetPaused(ctx, borrower, true), domain.ErrUnauthorized)

	require.NoError(t, f.eng.SetPaused(ctx, authority, true))
	ledger, err := f.eng.Ledger(ctx)
	require.NoError(t, err)
	assert.True(t, ledger.Paused)

	// Repeat pause is a no-op and records no event.
	require.NoError(t, f.eng.SetPaused(ctx, authority, true))
	assert.Equal(t, []string{"initialized", "paused"}, eventNames(f.events))

	require.NoError(t, f.eng.SetPaused(ctx, authority, false))
	_, err = f.eng.OpenArbitrage(ctx, ArbitrageRequest{
		Borrower: borrower,
		Amount:   1_000_000,
		Route:    f.arbRoute(t),
	})
	require.NoError(t, err)
}

func TestEmergencyWithdraw(t *testing.T) {
	ctx := context.Background()

	t.Run("RequiresAuthorityAndPause", func(t *testing.T) {
		f := newFixture(t)
		assert.ErrorIs(t, f.eng.EmergencyWithdraw(ctx, borrower, 1_000), domain.ErrUnauthorized)
		assert.ErrorIs(t, f.eng.EmergencyWithdraw(ctx, authority, 1_000), domain.ErrUnauthorized)
	})

	t.Run("BoundsAmount", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.eng.SetPaused(ctx, authority, true))
		assert.ErrorIs(t, f.eng.EmergencyWithdraw(ctx, authority, 0), domain.ErrInsufficientFunds)
		assert.ErrorIs(t, f.eng.EmergencyWithdraw(ctx, authority, 10_000_001), domain.ErrInsufficientFunds)
	})

	t.Run("DrainsToAuthority", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.eng.SetPaused(ctx, authority, true))
		require.NoError(t, f.eng.EmergencyWithdraw(ctx, authority, 4_000_000))

		assert.Equal(t, uint64(6_000_000), f.eng.PoolBalance())
		assert.Equal(t, uint64(4_000_000), f.book.Balance(authority, poolToken))
		assert.Equal(t, []string{"initialized", "paused", "emergency_withdraw"}, eventNames(f.events))
	})
}
