package amm

import (
	"fmt"
	"math"
	"math/big"
)

const (
	// Slippage tolerance bounds, in basis points.
	MinSlippageBps = 1
	MaxSlippageBps = 5000
)

// ClampSlippageBps forces any raw slippage input into [1, 5000] bps.
func ClampSlippageBps(raw int64) uint16 {
	if raw < MinSlippageBps {
		return MinSlippageBps
	}
	if raw > MaxSlippageBps {
		return MaxSlippageBps
	}
	return uint16(raw)
}

// ComputeSwapOutput computes constant-product output with fee on input.
// Returns (amountOut, priceImpact, error). Uses big.Int to avoid overflow.
func ComputeSwapOutput(
	amountIn uint64,
	reserveIn uint64,
	reserveOut uint64,
	feeNumerator uint64,
	feeDenominator uint64,
) (uint64, float64, error) {

	if amountIn == 0 || reserveIn == 0 || reserveOut == 0 {
		return 0, 0, fmt.Errorf("invalid inputs: amounts must be > 0")
	}
	if feeDenominator == 0 || feeNumerator >= feeDenominator {
		return 0, 0, fmt.Errorf("invalid fee: %d/%d", feeNumerator, feeDenominator)
	}

	// amountInAfterFee = amountIn * (feeDenominator - feeNumerator) / feeDenominator
	amountInBig := new(big.Int).SetUint64(amountIn)
	feeMultiplier := new(big.Int).SetUint64(feeDenominator - feeNumerator)
	feeDenom := new(big.Int).SetUint64(feeDenominator)

	amountInAfterFee := new(big.Int).Mul(amountInBig, feeMultiplier)
	amountInAfterFee.Div(amountInAfterFee, feeDenom)

	// out = (amountInAfterFee * reserveOut) / (reserveIn + amountInAfterFee)
	reserveOutBig := new(big.Int).SetUint64(reserveOut)
	reserveInBig := new(big.Int).SetUint64(reserveIn)

	numerator := new(big.Int).Mul(amountInAfterFee, reserveOutBig)
	denominator := new(big.Int).Add(reserveInBig, amountInAfterFee)

	amountOutBig := new(big.Int).Div(numerator, denominator)

	if !amountOutBig.IsUint64() {
		return 0, 0, fmt.Errorf("output amount overflow")
	}
	amountOut := amountOutBig.Uint64()

	// priceImpact = 1 - executionRate/idealRate
	idealRate := float64(reserveOut) / float64(reserveIn)
	executionRate := float64(amountOut) / float64(amountIn)
	priceImpact := 0.0
	if idealRate > 0 {
		priceImpact = math.Max(0, 1-(executionRate/idealRate))
	}

	return amountOut, priceImpact, nil
}

// ApplySlippage calculates the minimum acceptable output for a tolerance.
func ApplySlippage(amountOut uint64, slippageBps uint16) uint64 {
	if slippageBps >= 10000 {
		return 0
	}

	slippageFactor := 10000 - uint64(slippageBps)

	amountBig := new(big.Int).SetUint64(amountOut)
	factor := new(big.Int).SetUint64(slippageFactor)
	denom := new(big.Int).SetUint64(10000)

	result := new(big.Int).Mul(amountBig, factor)
	result.Div(result, denom)

	return result.Uint64()
}

// FeeBps converts a fee fraction to basis points.
func FeeBps(feeNumerator, feeDenominator uint64) uint16 {
	if feeDenominator == 0 {
		return 0
	}
	return uint16((feeNumerator * 10000) / feeDenominator)
}
