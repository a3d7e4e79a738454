// Package econ implements the pool's fixed-point economic calculations: fee,
// slippage, arbitrage profit simulation, and liquidation sizing. Every
// function is pure and fails fast on any intermediate that leaves the 64-bit
// range; division always floors, so rounding never favors the protocol.
package econ

import (
	"github.com/holiman/uint256"

	"github.com/alanyoungcy/flashlend/internal/domain"
)

const (
	// BpScale is the basis-point denominator: 1 bp = 1/10000.
	BpScale = 10_000
	// PriceScale is the fixed-point denominator for oracle prices.
	PriceScale = 1_000_000
)

// MulDiv computes floor(a*b/div) with the product checked against the 64-bit
// range. The wide intermediate lives in a uint256 so the check itself cannot
// overflow.
func MulDiv(a, b, div uint64) (uint64, error) {
	p := new(uint256.Int).Mul(uint256.NewInt(a), uint256.NewInt(b))
	if !p.IsUint64() {
		return 0, domain.ErrMathOverflow
	}
	return p.Uint64() / div, nil
}

// CheckedAdd returns a+b or ErrMathOverflow.
func CheckedAdd(a, b uint64) (uint64, error) {
	s := a + b
	if s < a {
		return 0, domain.ErrMathOverflow
	}
	return s, nil
}

// CheckedMul returns a*b or ErrMathOverflow.
func CheckedMul(a, b uint64) (uint64, error) {
	p := new(uint256.Int).Mul(uint256.NewInt(a), uint256.NewInt(b))
	if !p.IsUint64() {
		return 0, domain.ErrMathOverflow
	}
	return p.Uint64(), nil
}

// ComputeFee returns floor(amount * feeRateBp / 10000).
func ComputeFee(amount uint64, feeRateBp uint16) (uint64, error) {
	return MulDiv(amount, uint64(feeRateBp), BpScale)
}

// CheckSlippage compares an actual fill against the expected amount and
// returns ErrSlippageExceeded when the shortfall, in basis points of the
// expected amount, exceeds maxSlippageBp. A fill at or above expectation is
// zero slippage. The boundary is inclusive: slippage equal to the maximum
// passes.
func CheckSlippage(expected, actual uint64, maxSlippageBp uint16) error {
	if expected == 0 || actual >= expected {
		return nil
	}
	diff := new(uint256.Int).SetUint64(expected - actual)
	diff.Mul(diff, uint256.NewInt(BpScale))
	diff.Div(diff, uint256.NewInt(expected))
	// diff < expected, so the quotient is below BpScale and fits a uint64.
	if diff.Uint64() > uint64(maxSlippageBp) {
		return domain.ErrSlippageExceeded
	}
	return nil
}

// ArbitrageProfit simulates trading amountIn through venue A then venue B:
// each leg deducts the venue fee in basis points, then converts through the
// venue price at PriceScale. It returns max(0, finalAmount-amountIn), with
// ErrMathOverflow on any intermediate that would exceed 64 bits.
func ArbitrageProfit(amountIn, priceA, priceB uint64, feeABp, feeBBp uint16) (uint64, error) {
	afterFeeA, err := MulDiv(amountIn, BpScale-uint64(feeABp), BpScale)
	if err != nil {
		return 0, err
	}
	outA, err := MulDiv(afterFeeA, priceA, PriceScale)
	if err != nil {
		return 0, err
	}
	afterFeeB, err := MulDiv(outA, BpScale-uint64(feeBBp), BpScale)
	if err != nil {
		return 0, err
	}
	final, err := MulDiv(afterFeeB, priceB, PriceScale)
	if err != nil {
		return 0, err
	}
	if final > amountIn {
		return final - amountIn, nil
	}
	return 0, nil
}

// LiquidationAmount sizes a partial liquidation. The position is liquidatable
// only once the debt exceeds thresholdBp of the collateral value; the sized
// amount is a fixed 50% of the debt.
func LiquidationAmount(collateralValue, debtValue uint64, thresholdBp uint16) (uint64, error) {
	thresholdValue, err := MulDiv(collateralValue, uint64(thresholdBp), BpScale)
	if err != nil {
		return 0, err
	}
	if debtValue <= thresholdValue {
		return 0, domain.ErrLiquidationThresholdNotMet
	}
	return debtValue / 2, nil
}

// CollateralValue converts a collateral balance through an oracle price,
// checked against the 64-bit range.
func CollateralValue(balance, price uint64) (uint64, error) {
	return CheckedMul(balance, price)
}
