package domain

import "time"

// LoanKind classifies the strategy a flash loan was opened for.
type LoanKind string

const (
	LoanKindSelfLiquidate LoanKind = "self_liquidate"
	LoanKindArbitrage     LoanKind = "arbitrage"
)

// ActiveLoan is the ephemeral per-borrower lifecycle record of one in-flight
// flash loan. At most one exists per borrower at any time; it is created
// atomically with the borrow step of a strategy and destroyed only by a
// successful repay.
type ActiveLoan struct {
	Borrower ID
	Token    ID
	Amount   uint64
	Fee      uint64
	OpenedAt time.Time
	Kind     LoanKind
}

// LoanEvent is one append-only audit row describing a loan lifecycle
// transition or an admin action against the pool.
type LoanEvent struct {
	ID        string
	Borrower  ID
	Kind      LoanKind
	Event     string // "opened", "settled", "emergency_withdraw", "paused", "unpaused", "initialized"
	Amount    uint64
	Fee       uint64
	Profit    uint64
	CreatedAt time.Time
}
