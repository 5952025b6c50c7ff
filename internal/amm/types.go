package amm

import (
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/hamzarauf/swapdesk/internal/registry"
)

// Quote is the pricing output for one input state. Quotes are transient:
// any newer quote for the same session supersedes this one, and nothing
// persists them.
type Quote struct {
	AmountIn       uint64
	AmountOut      uint64
	MinAmountOut   uint64
	CurrentPrice   float64 // spot price before the swap, out per in
	ExecutionPrice float64 // realized price, out per in
	PriceImpact    float64 // 0.01 = 1%
	FeeBps         uint16
	SlippageBps    uint16
	BaseToQuote    bool
	QuotedAt       time.Time
}

// PoolState is a point-in-time read of a pool's vault reserves.
type PoolState struct {
	Pool         *registry.PoolDescriptor
	BaseReserve  uint64
	QuoteReserve uint64
	FetchedAt    time.Time
}

// Reserves returns (in, out) reserves for the given swap direction.
func (ps *PoolState) Reserves(baseToQuote bool) (reserveIn, reserveOut uint64) {
	if baseToQuote {
		return ps.BaseReserve, ps.QuoteReserve
	}
	return ps.QuoteReserve, ps.BaseReserve
}

// InnerBatch is one vendor-returned group of instructions for a swap leg:
// the main instructions, an optional cleanup instruction to run after all
// main instructions of every batch, and any auxiliary signers those
// instructions require.
type InnerBatch struct {
	Instructions []solana.Instruction
	Cleanup      solana.Instruction
	Signers      []solana.PrivateKey
}
