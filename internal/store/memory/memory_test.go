package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/flashlend/internal/domain"
)

func testLoan(borrower domain.ID, openedAt time.Time) domain.ActiveLoan {
	return domain.ActiveLoan{
		Borrower: borrower,
		Token:    domain.ID{31: 0x01},
		Amount:   500_000,
		Fee:      1_500,
		OpenedAt: openedAt,
		Kind:     domain.LoanKindArbitrage,
	}
}

func TestApplyUnit(t *testing.T) {
	ctx := context.Background()
	opened := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	borrower := domain.ID{31: 0x42}

	t.Run("CreateThenCloseLeavesNoRecord", func(t *testing.T) {
		s := New()
		loan := testLoan(borrower, opened)
		err := s.Units().ApplyUnit(ctx, domain.UnitEffects{
			CreateLoan:    &loan,
			CloseBorrower: &borrower,
		})
		require.NoError(t, err)

		_, err = s.Loans().Get(ctx, borrower)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("DuplicateLoanRejectedAtomically", func(t *testing.T) {
		s := New()
		first := testLoan(borrower, opened)
		require.NoError(t, s.Units().ApplyUnit(ctx, domain.UnitEffects{CreateLoan: &first}))

		// A second unit creating a record for the same borrower is refused
		// wholesale, even when it would also close the record: the ledger
		// write and the events must not land either.
		second := testLoan(borrower, opened.Add(time.Minute))
		err := s.Units().ApplyUnit(ctx, domain.UnitEffects{
			Ledger:        &domain.PoolLedger{TotalLoansIssued: 99},
			CreateLoan:    &second,
			CloseBorrower: &borrower,
			Events:        []domain.LoanEvent{{ID: "x", Borrower: borrower, Event: "opened"}},
		})
		assert.ErrorIs(t, err, domain.ErrLoanActive)

		kept, err := s.Loans().Get(ctx, borrower)
		require.NoError(t, err)
		assert.Equal(t, opened, kept.OpenedAt)

		_, err = s.Ledgers().Get(ctx)
		assert.ErrorIs(t, err, domain.ErrNotFound)

		events, err := s.Events().List(ctx, domain.ListOpts{})
		require.NoError(t, err)
		assert.Empty(t, events)
	})

	t.Run("CloseAloneRemovesRecord", func(t *testing.T) {
		s := New()
		loan := testLoan(borrower, opened)
		require.NoError(t, s.Units().ApplyUnit(ctx, domain.UnitEffects{CreateLoan: &loan}))

		require.NoError(t, s.Units().ApplyUnit(ctx, domain.UnitEffects{CloseBorrower: &borrower}))
		loans, err := s.Loans().List(ctx)
		require.NoError(t, err)
		assert.Empty(t, loans)
	})
}
