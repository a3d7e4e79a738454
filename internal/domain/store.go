package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination for list queries.
type ListOpts struct {
	Limit  int
	Offset int
}

// UnitEffects is the staged outcome of one atomic execution unit. Either
// every field is applied or none is; the postgres implementation wraps the
// application in a single database transaction.
type UnitEffects struct {
	// Ledger, when non-nil, is the full updated ledger row.
	Ledger *PoolLedger
	// CreateLoan, when non-nil, is an ActiveLoan that remains open after the
	// unit commits. Creation fails with ErrLoanActive if the borrower
	// already has an open record.
	CreateLoan *ActiveLoan
	// CloseBorrower, when non-nil, destroys the borrower's open record.
	CloseBorrower *ID
	// Events are appended to the audit log.
	Events []LoanEvent
}

// UnitStore applies the effects of one committed unit atomically.
type UnitStore interface {
	ApplyUnit(ctx context.Context, effects UnitEffects) error
}

// LedgerStore reads and creates the singleton pool ledger. Updates flow
// through UnitStore.ApplyUnit only.
type LedgerStore interface {
	Get(ctx context.Context) (PoolLedger, error)
	// Create persists the initial ledger row. It returns ErrAlreadyExists if
	// the pool was already initialized.
	Create(ctx context.Context, ledger PoolLedger) error
}

// LoanStore reads active loan records.
type LoanStore interface {
	Get(ctx context.Context, borrower ID) (ActiveLoan, error)
	List(ctx context.Context) ([]ActiveLoan, error)
}

// LoanEventStore reads and prunes the audit log.
type LoanEventStore interface {
	List(ctx context.Context, opts ListOpts) ([]LoanEvent, error)
	// ListBefore returns up to limit events older than cutoff, oldest first.
	ListBefore(ctx context.Context, cutoff time.Time, limit int) ([]LoanEvent, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// PriceCache caches oracle quotes with a freshness timestamp.
type PriceCache interface {
	GetPrice(ctx context.Context, feed ID) (price uint64, at time.Time, err error)
	SetPrice(ctx context.Context, feed ID, price uint64) error
}

// LockManager provides distributed mutual exclusion. Acquire returns an
// unlock function, or ErrLockHeld if another party holds the lock.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// RateLimiter throttles request sources. Allow reports whether one more
// request for key is permitted under the limit-per-window budget, counting
// it when allowed.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// EventBus fans committed loan events out across instances.
type EventBus interface {
	Publish(ctx context.Context, event LoanEvent) error
	Subscribe(ctx context.Context) (<-chan LoanEvent, error)
}
