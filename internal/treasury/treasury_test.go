package treasury

import (
	"math"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/flashlend/internal/domain"
)

var (
	alice = common.HexToHash("0xa1")
	bob   = common.HexToHash("0xb0")
	usdc  = common.HexToHash("0x01")
)

func TestBookBasics(t *testing.T) {
	b := New()

	assert.Zero(t, b.Balance(alice, usdc))

	require.NoError(t, b.Credit(alice, usdc, 1_000))
	assert.Equal(t, uint64(1_000), b.Balance(alice, usdc))

	require.NoError(t, b.Debit(alice, usdc, 400))
	assert.Equal(t, uint64(600), b.Balance(alice, usdc))

	err := b.Debit(alice, usdc, 601)
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
	assert.Equal(t, uint64(600), b.Balance(alice, usdc))

	require.NoError(t, b.Credit(alice, usdc, math.MaxUint64-600))
	err = b.Credit(alice, usdc, 1)
	assert.ErrorIs(t, err, domain.ErrMathOverflow)
}

func TestTransfer(t *testing.T) {
	b := New()
	require.NoError(t, b.Credit(alice, usdc, 500))

	require.NoError(t, b.Transfer(alice, bob, usdc, 200))
	assert.Equal(t, uint64(300), b.Balance(alice, usdc))
	assert.Equal(t, uint64(200), b.Balance(bob, usdc))

	err := b.Transfer(alice, bob, usdc, 301)
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
	assert.Equal(t, uint64(300), b.Balance(alice, usdc))
	assert.Equal(t, uint64(200), b.Balance(bob, usdc))
}

func TestSnapshotRestore(t *testing.T) {
	b := New()
	require.NoError(t, b.Credit(alice, usdc, 1_000))

	snap := b.Snapshot()

	require.NoError(t, b.Transfer(alice, bob, usdc, 999))
	require.NoError(t, b.Credit(bob, usdc, 5))
	assert.Equal(t, uint64(1), b.Balance(alice, usdc))

	b.Restore(snap)
	assert.Equal(t, uint64(1_000), b.Balance(alice, usdc))
	assert.Zero(t, b.Balance(bob, usdc))

	// The snapshot is detached from later mutations.
	require.NoError(t, b.Debit(alice, usdc, 1_000))
	assert.Equal(t, uint64(1_000), snap[Account{Owner: alice, Token: usdc}])
}
