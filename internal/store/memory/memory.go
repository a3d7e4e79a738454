// Package memory is the in-process store used by paper mode and tests. One
// mutex guards the ledger row, the open-loan map and the event log, so
// ApplyUnit is atomic the same way the postgres transaction is.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/alanyoungcy/flashlend/internal/domain"
)

// Store owns the shared state. The entity-scoped views returned by Ledgers,
// Loans, Units and Events all lock the same mutex.
type Store struct {
	mu     sync.Mutex
	ledger *domain.PoolLedger
	loans  map[domain.ID]domain.ActiveLoan
	events []domain.LoanEvent
}

func New() *Store {
	return &Store{loans: make(map[domain.ID]domain.ActiveLoan)}
}

func (s *Store) Ledgers() domain.LedgerStore   { return ledgerStore{s} }
func (s *Store) Loans() domain.LoanStore       { return loanStore{s} }
func (s *Store) Units() domain.UnitStore       { return unitStore{s} }
func (s *Store) Events() domain.LoanEventStore { return eventStore{s} }

type ledgerStore struct{ s *Store }

var _ domain.LedgerStore = ledgerStore{}

func (v ledgerStore) Get(ctx context.Context) (domain.PoolLedger, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	if v.s.ledger == nil {
		return domain.PoolLedger{}, fmt.Errorf("memory: pool ledger: %w", domain.ErrNotFound)
	}
	return *v.s.ledger, nil
}

func (v ledgerStore) Create(ctx context.Context, ledger domain.PoolLedger) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	if v.s.ledger != nil {
		return fmt.Errorf("memory: pool ledger: %w", domain.ErrAlreadyExists)
	}
	v.s.ledger = &ledger
	return nil
}

type loanStore struct{ s *Store }

var _ domain.LoanStore = loanStore{}

func (v loanStore) Get(ctx context.Context, borrower domain.ID) (domain.ActiveLoan, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	loan, ok := v.s.loans[borrower]
	if !ok {
		return domain.ActiveLoan{}, fmt.Errorf("memory: loan for %s: %w", borrower, domain.ErrNotFound)
	}
	return loan, nil
}

func (v loanStore) List(ctx context.Context) ([]domain.ActiveLoan, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	out := make([]domain.ActiveLoan, 0, len(v.s.loans))
	for _, loan := range v.s.loans {
		out = append(out, loan)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OpenedAt.Before(out[j].OpenedAt) })
	return out, nil
}

type unitStore struct{ s *Store }

var _ domain.UnitStore = unitStore{}

func (v unitStore) ApplyUnit(ctx context.Context, effects domain.UnitEffects) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()

	if effects.CreateLoan != nil {
		if _, exists := v.s.loans[effects.CreateLoan.Borrower]; exists {
			return fmt.Errorf("memory: loan for %s: %w", effects.CreateLoan.Borrower, domain.ErrLoanActive)
		}
	}
	if effects.Ledger != nil {
		l := *effects.Ledger
		v.s.ledger = &l
	}
	if effects.CreateLoan != nil {
		v.s.loans[effects.CreateLoan.Borrower] = *effects.CreateLoan
	}
	if effects.CloseBorrower != nil {
		delete(v.s.loans, *effects.CloseBorrower)
	}
	v.s.events = append(v.s.events, effects.Events...)
	return nil
}

type eventStore struct{ s *Store }

var _ domain.LoanEventStore = eventStore{}

func (v eventStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.LoanEvent, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()

	// Newest first, like the postgres query.
	n := len(v.s.events)
	ordered := make([]domain.LoanEvent, n)
	for i, ev := range v.s.events {
		ordered[n-1-i] = ev
	}
	if opts.Offset > 0 {
		if opts.Offset >= len(ordered) {
			return nil, nil
		}
		ordered = ordered[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(ordered) {
		ordered = ordered[:opts.Limit]
	}
	return ordered, nil
}

func (v eventStore) ListBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.LoanEvent, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	var out []domain.LoanEvent
	for _, ev := range v.s.events {
		if ev.CreatedAt.Before(cutoff) {
			out = append(out, ev)
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (v eventStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	kept := v.s.events[:0]
	var removed int64
	for _, ev := range v.s.events {
		if ev.CreatedAt.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, ev)
	}
	v.s.events = kept
	return removed, nil
}
