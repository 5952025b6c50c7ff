package amm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hamzarauf/swapdesk/internal/registry"
)

func TestClampSlippageBps(t *testing.T) {
	cases := []struct {
		raw  int64
		want uint16
	}{
		{0, 1},
		{-50, 1},
		{1, 1},
		{100, 100},
		{5000, 5000},
		{5001, 5000},
		{999999, 5000},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, ClampSlippageBps(c.raw), "raw=%d", c.raw)
	}
}

func TestComputeSwapOutput(t *testing.T) {
	// 1000 in against 1,000,000 / 2,000,000 reserves, 25 bps fee.
	out, impact, err := ComputeSwapOutput(1000, 1_000_000, 2_000_000, 25, 10000)
	require.NoError(t, err)

	// Fee-adjusted input 997; out = 997*2e6 / (1e6+997) = 1992.
	assert.Equal(t, uint64(1992), out)
	assert.Greater(t, impact, 0.0)
	assert.Less(t, impact, 0.01)
}

func TestComputeSwapOutputRejectsZeroInputs(t *testing.T) {
	_, _, err := ComputeSwapOutput(0, 1, 1, 25, 10000)
	assert.Error(t, err)
	_, _, err = ComputeSwapOutput(1, 0, 1, 25, 10000)
	assert.Error(t, err)
	_, _, err = ComputeSwapOutput(1, 1, 1, 25, 0)
	assert.Error(t, err)
}

func TestApplySlippage(t *testing.T) {
	assert.Equal(t, uint64(9900), ApplySlippage(10000, 100))
	assert.Equal(t, uint64(5000), ApplySlippage(10000, 5000))
	assert.Equal(t, uint64(0), ApplySlippage(10000, 10000))
}

func TestQuoteFromStateClampsSlippage(t *testing.T) {
	state := &PoolState{
		Pool: &registry.PoolDescriptor{
			FeeNumerator:   25,
			FeeDenominator: 10000,
		},
		BaseReserve:  1_000_000_000,
		QuoteReserve: 50_000_000_000,
	}

	q, err := QuoteFromState(state, 1_000_000, true, 0)
	require.NoError(t, err)
	assert.Equal(t, uint16(1), q.SlippageBps)
	assert.Less(t, q.MinAmountOut, q.AmountOut)
	assert.Greater(t, q.CurrentPrice, 0.0)
	assert.Greater(t, q.ExecutionPrice, 0.0)
	// Execution is never better than spot for a constant-product pool.
	assert.LessOrEqual(t, q.ExecutionPrice, q.CurrentPrice)
}
