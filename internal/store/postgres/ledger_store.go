package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/flashlend/internal/domain"
)

// LedgerStore implements domain.LedgerStore using PostgreSQL. The ledger is
// a singleton row; counter updates are written by UnitStore inside the unit
// transaction.
type LedgerStore struct {
	pool *pgxpool.Pool
}

// NewLedgerStore creates a LedgerStore backed by the given connection pool.
func NewLedgerStore(pool *pgxpool.Pool) *LedgerStore {
	return &LedgerStore{pool: pool}
}

var _ domain.LedgerStore = (*LedgerStore)(nil)

const ledgerSelect = `SELECT authority, fee_rate_bp, max_loan_amount,
	total_loans_issued, total_volume, paused, supported_tokens,
	created_at, updated_at
	FROM pool_ledger WHERE id = 1`

func scanLedger(row pgx.Row) (domain.PoolLedger, error) {
	var l domain.PoolLedger
	var authority []byte
	var feeRateBp int32
	var maxLoan, issued, volume int64
	var supported int16

	err := row.Scan(
		&authority, &feeRateBp, &maxLoan,
		&issued, &volume, &l.Paused, &supported,
		&l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return domain.PoolLedger{}, err
	}
	copy(l.Authority[:], authority)
	l.FeeRateBp = uint16(feeRateBp)
	l.MaxLoanAmount = uint64(maxLoan)
	l.TotalLoansIssued = uint64(issued)
	l.TotalVolume = uint64(volume)
	l.SupportedTokens = uint8(supported)
	return l, nil
}

// Get returns the singleton pool ledger.
func (s *LedgerStore) Get(ctx context.Context) (domain.PoolLedger, error) {
	ledger, err := scanLedger(s.pool.QueryRow(ctx, ledgerSelect))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.PoolLedger{}, fmt.Errorf("postgres: pool ledger: %w", domain.ErrNotFound)
		}
		return domain.PoolLedger{}, fmt.Errorf("postgres: get pool ledger: %w", err)
	}
	return ledger, nil
}

// Create persists the initial ledger row exactly once.
func (s *LedgerStore) Create(ctx context.Context, ledger domain.PoolLedger) error {
	const query = `INSERT INTO pool_ledger
		(id, authority, fee_rate_bp, max_loan_amount, total_loans_issued,
		 total_volume, paused, supported_tokens, created_at, updated_at)
		VALUES (1, $1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING`

	tag, err := s.pool.Exec(ctx, query,
		ledger.Authority[:],
		int32(ledger.FeeRateBp),
		int64(ledger.MaxLoanAmount),
		int64(ledger.TotalLoansIssued),
		int64(ledger.TotalVolume),
		ledger.Paused,
		int16(ledger.SupportedTokens),
		ledger.CreatedAt,
		ledger.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create pool ledger: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: pool ledger: %w", domain.ErrAlreadyExists)
	}
	return nil
}
