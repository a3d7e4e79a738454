package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/flashlend/internal/domain"
)

// LoanStore implements domain.LoanStore using PostgreSQL. Records are
// created and destroyed by UnitStore inside the unit transaction.
type LoanStore struct {
	pool *pgxpool.Pool
}

// NewLoanStore creates a LoanStore backed by the given connection pool.
func NewLoanStore(pool *pgxpool.Pool) *LoanStore {
	return &LoanStore{pool: pool}
}

var _ domain.LoanStore = (*LoanStore)(nil)

const loanSelectCols = `borrower, token, amount, fee, opened_at, kind`

func scanLoan(row pgx.Row) (domain.ActiveLoan, error) {
	var l domain.ActiveLoan
	var borrower, token []byte
	var amount, fee int64
	var kind string

	if err := row.Scan(&borrower, &token, &amount, &fee, &l.OpenedAt, &kind); err != nil {
		return domain.ActiveLoan{}, err
	}
	copy(l.Borrower[:], borrower)
	copy(l.Token[:], token)
	l.Amount = uint64(amount)
	l.Fee = uint64(fee)
	l.Kind = domain.LoanKind(kind)
	return l, nil
}

// Get returns the borrower's open loan record.
func (s *LoanStore) Get(ctx context.Context, borrower domain.ID) (domain.ActiveLoan, error) {
	query := `SELECT ` + loanSelectCols + ` FROM active_loans WHERE borrower = $1`
	loan, err := scanLoan(s.pool.QueryRow(ctx, query, borrower[:]))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ActiveLoan{}, fmt.Errorf("postgres: loan for %s: %w", borrower, domain.ErrNotFound)
		}
		return domain.ActiveLoan{}, fmt.Errorf("postgres: get loan: %w", err)
	}
	return loan, nil
}

// List returns every open loan record, oldest first.
func (s *LoanStore) List(ctx context.Context) ([]domain.ActiveLoan, error) {
	query := `SELECT ` + loanSelectCols + ` FROM active_loans ORDER BY opened_at`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres: list loans: %w", err)
	}
	defer rows.Close()

	var loans []domain.ActiveLoan
	for rows.Next() {
		loan, err := scanLoan(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan loan: %w", err)
		}
		loans = append(loans, loan)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list loans rows: %w", err)
	}
	return loans, nil
}
