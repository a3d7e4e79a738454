package econ

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/flashlend/internal/domain"
)

func TestComputeFee(t *testing.T) {
	t.Run("BasisPointFloor", func(t *testing.T) {
		fee, err := ComputeFee(1_000_000, 30)
		require.NoError(t, err)
		assert.Equal(t, uint64(3_000), fee)

		// Floors toward zero, never in the pool's favor.
		fee, err = ComputeFee(333, 30)
		require.NoError(t, err)
		assert.Equal(t, uint64(0), fee)

		fee, err = ComputeFee(1_000_000_000_000, 30)
		require.NoError(t, err)
		assert.Equal(t, uint64(3_000_000_000), fee)
	})

	t.Run("ZeroRate", func(t *testing.T) {
		fee, err := ComputeFee(1_000_000, 0)
		require.NoError(t, err)
		assert.Zero(t, fee)
	})

	t.Run("OverflowingProduct", func(t *testing.T) {
		_, err := ComputeFee(math.MaxUint64, 30)
		assert.ErrorIs(t, err, domain.ErrMathOverflow)
	})
}

func TestCheckSlippage(t *testing.T) {
	t.Run("AtBoundaryPasses", func(t *testing.T) {
		// Exactly 5.00% shortfall against a 500 bp ceiling: inclusive pass.
		assert.NoError(t, CheckSlippage(1_000_000, 950_000, 500))
	})

	t.Run("BeyondBoundaryFails", func(t *testing.T) {
		err := CheckSlippage(1_000_000, 900_000, 500)
		assert.ErrorIs(t, err, domain.ErrSlippageExceeded)
	})

	t.Run("FillAboveExpectedIsZeroSlippage", func(t *testing.T) {
		assert.NoError(t, CheckSlippage(1_000_000, 2_000_000, 0))
	})

	t.Run("WideIntermediateDoesNotOverflow", func(t *testing.T) {
		// (expected-actual)*10000 would overflow a uint64 here. A total
		// shortfall is 10000 bp, one past the widest allowed ceiling.
		err := CheckSlippage(math.MaxUint64, 0, 9999)
		assert.ErrorIs(t, err, domain.ErrSlippageExceeded)
	})

	t.Run("ZeroExpected", func(t *testing.T) {
		assert.NoError(t, CheckSlippage(0, 0, 0))
	})
}

func TestArbitrageProfit(t *testing.T) {
	t.Run("ReferenceVector", func(t *testing.T) {
		// 1_000_000 in, A at 1.01 (25 bp fee), B at 0.99 (30 bp fee):
		//   after fee A: 997_500
		//   out A:       1_007_475
		//   after fee B: 1_004_452
		//   final:       994_407  -> below amountIn, clamps to zero.
		profit, err := ArbitrageProfit(1_000_000, 1_010_000, 990_000, 25, 30)
		require.NoError(t, err)
		assert.Equal(t, uint64(0), profit)
	})

	t.Run("ProfitableSpread", func(t *testing.T) {
		// A at 1.05, B at par: fee drag only.
		profit, err := ArbitrageProfit(1_000_000, 1_050_000, 1_000_000, 25, 30)
		require.NoError(t, err)
		// after fee A: 997_500 -> out A 1_047_375
		// after fee B: 1_044_232 -> final 1_044_232
		assert.Equal(t, uint64(44_232), profit)
	})

	t.Run("Deterministic", func(t *testing.T) {
		a, err := ArbitrageProfit(123_456_789, 1_030_000, 1_010_000, 25, 30)
		require.NoError(t, err)
		b, err := ArbitrageProfit(123_456_789, 1_030_000, 1_010_000, 25, 30)
		require.NoError(t, err)
		assert.Equal(t, a, b)
	})

	t.Run("IntermediateOverflow", func(t *testing.T) {
		_, err := ArbitrageProfit(math.MaxUint64/2, 2_000_000, 2_000_000, 0, 0)
		assert.ErrorIs(t, err, domain.ErrMathOverflow)
	})
}

func TestLiquidationAmount(t *testing.T) {
	t.Run("HalfOfDebtWhenOverThreshold", func(t *testing.T) {
		// Collateral 1000, threshold 80% -> 800; debt 900 exceeds it.
		amount, err := LiquidationAmount(1000, 900, 8000)
		require.NoError(t, err)
		assert.Equal(t, uint64(450), amount)
	})

	t.Run("DebtAtThresholdNotLiquidatable", func(t *testing.T) {
		_, err := LiquidationAmount(1000, 800, 8000)
		assert.ErrorIs(t, err, domain.ErrLiquidationThresholdNotMet)
	})

	t.Run("DebtBelowThreshold", func(t *testing.T) {
		_, err := LiquidationAmount(1000, 100, 8000)
		assert.ErrorIs(t, err, domain.ErrLiquidationThresholdNotMet)
	})

	t.Run("OverflowingCollateral", func(t *testing.T) {
		_, err := LiquidationAmount(math.MaxUint64, 1, 8000)
		assert.ErrorIs(t, err, domain.ErrMathOverflow)
	})
}

func TestCheckedHelpers(t *testing.T) {
	sum, err := CheckedAdd(1, 2)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), sum)

	_, err = CheckedAdd(math.MaxUint64, 1)
	assert.ErrorIs(t, err, domain.ErrMathOverflow)

	v, err := CollateralValue(2_000, 1_500_000)
	require.NoError(t, err)
	assert.Equal(t, uint64(3_000_000_000), v)

	_, err = CollateralValue(math.MaxUint64, 2)
	assert.ErrorIs(t, err, domain.ErrMathOverflow)
}
