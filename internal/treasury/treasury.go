// Package treasury keeps the engine's book of record for token balances
// during execution units: the pool account, borrower accounts, and the
// authority account. The book supports cheap snapshots so a failing unit can
// discard every balance effect it staged.
package treasury

import (
	"fmt"
	"sync"

	"github.com/alanyoungcy/flashlend/internal/domain"
)

// Account identifies one balance: an owner holding one token.
type Account struct {
	Owner domain.ID
	Token domain.ID
}

// Book is a mutex-guarded map of account balances. Amounts are unsigned
// 64-bit integers in the token's native unit; all mutations are checked.
type Book struct {
	mu       sync.RWMutex
	balances map[Account]uint64
}

// New returns an empty Book.
func New() *Book {
	return &Book{balances: make(map[Account]uint64)}
}

// Snapshot is an opaque copy of the book's state at one point in time.
type Snapshot map[Account]uint64

// Balance returns the current balance of owner's token account. Accounts
// never touched before read as zero.
func (b *Book) Balance(owner, token domain.ID) uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.balances[Account{Owner: owner, Token: token}]
}

// Credit adds amount to the account, failing on 64-bit overflow.
func (b *Book) Credit(owner, token domain.ID, amount uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	acct := Account{Owner: owner, Token: token}
	next := b.balances[acct] + amount
	if next < b.balances[acct] {
		return fmt.Errorf("treasury: credit %d to %s: %w", amount, owner, domain.ErrMathOverflow)
	}
	b.balances[acct] = next
	return nil
}

// Debit removes amount from the account, failing with ErrInsufficientFunds
// when the balance cannot cover it.
func (b *Book) Debit(owner, token domain.ID, amount uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.debitLocked(owner, token, amount)
}

func (b *Book) debitLocked(owner, token domain.ID, amount uint64) error {
	acct := Account{Owner: owner, Token: token}
	if b.balances[acct] < amount {
		return fmt.Errorf("treasury: debit %d from %s (balance %d): %w",
			amount, owner, b.balances[acct], domain.ErrInsufficientFunds)
	}
	b.balances[acct] -= amount
	return nil
}

// Transfer moves amount of token from one owner to another under a single
// lock acquisition.
func (b *Book) Transfer(from, to, token domain.ID, amount uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.debitLocked(from, token, amount); err != nil {
		return err
	}
	// The debit guarantees the global supply is unchanged, so the credit
	// cannot overflow unless the book was already inconsistent.
	b.balances[Account{Owner: to, Token: token}] += amount
	return nil
}

// Snapshot copies the current state of the book.
func (b *Book) Snapshot() Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	snap := make(Snapshot, len(b.balances))
	for k, v := range b.balances {
		snap[k] = v
	}
	return snap
}

// Restore replaces the book's state with a previously taken snapshot.
func (b *Book) Restore(snap Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.balances = make(map[Account]uint64, len(snap))
	for k, v := range snap {
		b.balances[k] = v
	}
}
