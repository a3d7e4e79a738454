// Package domain defines the core types, errors, and collaborator interfaces
// for the flash loan pool: the singleton pool ledger, per-borrower active
// loan records, decoded dex routes, and the store/venue contracts the engine
// is wired against.
package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// ID is a 32-byte on-chain style identifier (borrower, token mint, pool,
// oracle feed, authority). The hex helpers on common.Hash give us parsing
// and JSON encoding for free.
type ID = common.Hash

// PoolLedger is the singleton state of the flash loan pool. Config fields are
// mutated only by the admin controller; the counters only by a successfully
// committed strategy unit and are monotonically non-decreasing.
type PoolLedger struct {
	Authority        ID
	FeeRateBp        uint16
	MaxLoanAmount    uint64
	TotalLoansIssued uint64
	TotalVolume      uint64
	Paused           bool
	SupportedTokens  uint8
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
