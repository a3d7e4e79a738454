package domain

import "errors"

var (
	// Input validation.
	ErrInsufficientFunds = errors.New("insufficient funds for flash loan")
	ErrExceedsMaxLoan    = errors.New("flash loan amount exceeds maximum allowed")
	ErrInvalidDexRoute   = errors.New("invalid dex route")
	ErrInvalidSwapParams = errors.New("invalid swap parameters")

	// Economic policy.
	ErrSlippageExceeded            = errors.New("slippage tolerance exceeded")
	ErrUnprofitableArbitrage       = errors.New("arbitrage opportunity not profitable")
	ErrLiquidationThresholdNotMet  = errors.New("liquidation threshold not met")
	ErrPriceImpactTooHigh          = errors.New("price impact too high")

	// Arithmetic safety.
	ErrMathOverflow = errors.New("math overflow")

	// Authorization.
	ErrUnauthorized = errors.New("unauthorized")

	// External dependencies.
	ErrVenueInteraction   = errors.New("venue interaction failed")
	ErrInvalidOraclePrice = errors.New("invalid oracle price")

	// Lifecycle.
	ErrLoanNotRepaid       = errors.New("flash loan not repaid in time")
	ErrLoanActive          = errors.New("flash loan already active")
	ErrInvalidTokenAccount = errors.New("invalid token account")

	// Infrastructure.
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrLockHeld      = errors.New("lock already held")
)
