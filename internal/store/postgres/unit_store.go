package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/flashlend/internal/domain"
)

// UnitStore implements domain.UnitStore using PostgreSQL. One engine unit
// maps onto one database transaction, so either every staged effect lands or
// none does.
type UnitStore struct {
	pool *pgxpool.Pool
}

// NewUnitStore creates a UnitStore backed by the given connection pool.
func NewUnitStore(pool *pgxpool.Pool) *UnitStore {
	return &UnitStore{pool: pool}
}

var _ domain.UnitStore = (*UnitStore)(nil)

// ApplyUnit writes the staged effects of one committed unit. Creating a loan
// record for a borrower who already has one fails the whole unit with
// ErrLoanActive.
func (s *UnitStore) ApplyUnit(ctx context.Context, effects domain.UnitEffects) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin unit: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if effects.Ledger != nil {
		l := effects.Ledger
		const query = `UPDATE pool_ledger SET
			authority = $1, fee_rate_bp = $2, max_loan_amount = $3,
			total_loans_issued = $4, total_volume = $5, paused = $6,
			supported_tokens = $7, updated_at = $8
			WHERE id = 1`
		tag, err := tx.Exec(ctx, query,
			l.Authority[:],
			int32(l.FeeRateBp),
			int64(l.MaxLoanAmount),
			int64(l.TotalLoansIssued),
			int64(l.TotalVolume),
			l.Paused,
			int16(l.SupportedTokens),
			l.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("postgres: unit ledger update: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("postgres: pool ledger: %w", domain.ErrNotFound)
		}
	}

	if loan := effects.CreateLoan; loan != nil {
		const query = `INSERT INTO active_loans (borrower, token, amount, fee, opened_at, kind)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (borrower) DO NOTHING`
		tag, err := tx.Exec(ctx, query,
			loan.Borrower[:], loan.Token[:],
			int64(loan.Amount), int64(loan.Fee),
			loan.OpenedAt, string(loan.Kind),
		)
		if err != nil {
			return fmt.Errorf("postgres: unit loan create: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("postgres: loan for %s: %w", loan.Borrower, domain.ErrLoanActive)
		}
	}

	if effects.CloseBorrower != nil {
		borrower := *effects.CloseBorrower
		if _, err := tx.Exec(ctx, `DELETE FROM active_loans WHERE borrower = $1`, borrower[:]); err != nil {
			return fmt.Errorf("postgres: unit loan close: %w", err)
		}
	}

	for _, ev := range effects.Events {
		const query = `INSERT INTO loan_events (id, borrower, kind, event, amount, fee, profit, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
		if _, err := tx.Exec(ctx, query,
			ev.ID, ev.Borrower[:], string(ev.Kind), ev.Event,
			int64(ev.Amount), int64(ev.Fee), int64(ev.Profit),
			ev.CreatedAt,
		); err != nil {
			return fmt.Errorf("postgres: unit event append: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit unit: %w", err)
	}
	return nil
}
