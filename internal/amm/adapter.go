package amm

import (
	"context"
	"fmt"
	"time"

	"github.com/hamzarauf/swapdesk/internal/registry"
	"github.com/hamzarauf/swapdesk/internal/rpc"
)

// Adapter is the pricing contract the quote path depends on. The venue's
// math stays behind this interface so callers treat pricing as opaque.
type Adapter interface {
	Quote(ctx context.Context, pool *registry.PoolDescriptor, amountIn uint64, baseToQuote bool, slippageBps uint16) (*Quote, error)
}

// LiveAdapter prices against current on-chain vault reserves.
type LiveAdapter struct {
	rpc *rpc.Client
}

func NewLiveAdapter(client *rpc.Client) *LiveAdapter {
	return &LiveAdapter{rpc: client}
}

// FetchPoolState reads both vault balances for a pool.
func (a *LiveAdapter) FetchPoolState(ctx context.Context, pool *registry.PoolDescriptor) (*PoolState, error) {
	base, err := a.rpc.GetTokenAccountBalance(ctx, pool.BaseVault.String())
	if err != nil {
		return nil, fmt.Errorf("failed to fetch base vault balance: %w", err)
	}
	quote, err := a.rpc.GetTokenAccountBalance(ctx, pool.QuoteVault.String())
	if err != nil {
		return nil, fmt.Errorf("failed to fetch quote vault balance: %w", err)
	}

	return &PoolState{
		Pool:         pool,
		BaseReserve:  base,
		QuoteReserve: quote,
		FetchedAt:    time.Now(),
	}, nil
}

func (a *LiveAdapter) Quote(ctx context.Context, pool *registry.PoolDescriptor, amountIn uint64, baseToQuote bool, slippageBps uint16) (*Quote, error) {
	state, err := a.FetchPoolState(ctx, pool)
	if err != nil {
		return nil, err
	}
	return QuoteFromState(state, amountIn, baseToQuote, slippageBps)
}

// QuoteFromState prices a swap against an already-fetched pool state.
func QuoteFromState(state *PoolState, amountIn uint64, baseToQuote bool, slippageBps uint16) (*Quote, error) {
	if state == nil || state.Pool == nil {
		return nil, fmt.Errorf("pool state is nil")
	}

	slippageBps = ClampSlippageBps(int64(slippageBps))

	reserveIn, reserveOut := state.Reserves(baseToQuote)

	amountOut, priceImpact, err := ComputeSwapOutput(
		amountIn,
		reserveIn,
		reserveOut,
		state.Pool.FeeNumerator,
		state.Pool.FeeDenominator,
	)
	if err != nil {
		return nil, err
	}

	minOut := ApplySlippage(amountOut, slippageBps)

	return &Quote{
		AmountIn:       amountIn,
		AmountOut:      amountOut,
		MinAmountOut:   minOut,
		CurrentPrice:   float64(reserveOut) / float64(reserveIn),
		ExecutionPrice: float64(amountOut) / float64(amountIn),
		PriceImpact:    priceImpact,
		FeeBps:         FeeBps(state.Pool.FeeNumerator, state.Pool.FeeDenominator),
		SlippageBps:    slippageBps,
		BaseToQuote:    baseToQuote,
		QuotedAt:       time.Now(),
	}, nil
}
