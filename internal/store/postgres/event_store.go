package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/flashlend/internal/domain"
)

// LoanEventStore implements domain.LoanEventStore using PostgreSQL. Events
// are appended by UnitStore; this store reads and prunes them.
type LoanEventStore struct {
	pool *pgxpool.Pool
}

// NewLoanEventStore creates a LoanEventStore backed by the given pool.
func NewLoanEventStore(pool *pgxpool.Pool) *LoanEventStore {
	return &LoanEventStore{pool: pool}
}

var _ domain.LoanEventStore = (*LoanEventStore)(nil)

const eventSelectCols = `id, borrower, kind, event, amount, fee, profit, created_at`

func scanEvent(row pgx.Row) (domain.LoanEvent, error) {
	var ev domain.LoanEvent
	var borrower []byte
	var kind string
	var amount, fee, profit int64

	if err := row.Scan(&ev.ID, &borrower, &kind, &ev.Event, &amount, &fee, &profit, &ev.CreatedAt); err != nil {
		return domain.LoanEvent{}, err
	}
	copy(ev.Borrower[:], borrower)
	ev.Kind = domain.LoanKind(kind)
	ev.Amount = uint64(amount)
	ev.Fee = uint64(fee)
	ev.Profit = uint64(profit)
	return ev, nil
}

// List returns events newest first with pagination.
func (s *LoanEventStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.LoanEvent, error) {
	query := `SELECT ` + eventSelectCols + ` FROM loan_events ORDER BY created_at DESC`
	args := []any{}
	argIdx := 1

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	return s.queryEvents(ctx, query, args...)
}

// ListBefore returns up to limit events older than cutoff, oldest first.
func (s *LoanEventStore) ListBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.LoanEvent, error) {
	query := `SELECT ` + eventSelectCols + ` FROM loan_events WHERE created_at < $1 ORDER BY created_at`
	args := []any{cutoff}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}
	return s.queryEvents(ctx, query, args...)
}

// DeleteBefore prunes events older than cutoff and reports how many went.
func (s *LoanEventStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM loan_events WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete loan events: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *LoanEventStore) queryEvents(ctx context.Context, query string, args ...any) ([]domain.LoanEvent, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list loan events: %w", err)
	}
	defer rows.Close()

	var events []domain.LoanEvent
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan loan event: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list loan events rows: %w", err)
	}
	return events, nil
}
