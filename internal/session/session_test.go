package session

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hamzarauf/swapdesk/internal/amm"
	"github.com/hamzarauf/swapdesk/internal/pipeline"
	"github.com/hamzarauf/swapdesk/internal/registry"
	"github.com/hamzarauf/swapdesk/internal/wallet"
)

const catalogJSON = `{
	"official": [{
		"id": "58oQChx4yWmvKdwLLZzBi4ChoCc2fqCUWBkwMihLYQo2",
		"baseMint": "So11111111111111111111111111111111111111112",
		"quoteMint": "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
		"baseDecimals": 9,
		"quoteDecimals": 6,
		"programId": "675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8",
		"authority": "5Q544fKrFoe6tsEbD7S8EmxGTJYAKtTVhAW5Q5pge4j1",
		"baseVault": "DQyrAcCrDXQ7NeoqGgDCZwBvWDcYmFCjSb9JtteuvPpz",
		"quoteVault": "HLmqeL62xR1QoZ1HKKbXRrdN1p3phKpxRMb2VVopvBBz",
		"version": 4
	}],
	"unOfficial": []
}`

type fakeNode struct {
	simErr    error
	sendErr   error
	sendCalls int
	simCalls  int
}

func (f *fakeNode) GetLatestBlockhash(ctx context.Context, commitment ...string) (wallet.Blockhash, error) {
	h, err := solana.HashFromBase58("GfVcyD4kkTrj4bKc7WA9sZCin9JDbdT4Zkd3EittNR1W")
	if err != nil {
		return wallet.Blockhash{}, err
	}
	return wallet.Blockhash{Hash: h, LastValidBlockHeight: 1000}, nil
}

func (f *fakeNode) SimulateTransaction(ctx context.Context, tx *solana.Transaction) (*wallet.SimulationResult, error) {
	f.simCalls++
	if f.simErr != nil {
		return &wallet.SimulationResult{Success: false, Error: f.simErr.Error()}, f.simErr
	}
	return &wallet.SimulationResult{Success: true, UnitsConsumed: 5000}, nil
}

func (f *fakeNode) SendTx(ctx context.Context, tx *solana.Transaction, opts *wallet.SendOptions) (string, error) {
	f.sendCalls++
	if f.sendErr != nil {
		return "", f.sendErr
	}
	return "4TestSignature", nil
}

func (f *fakeNode) AccountExists(ctx context.Context, pubkey solana.PublicKey) (bool, error) {
	return true, nil
}

type fixedAdapter struct {
	calls int
	err   error
}

func (a *fixedAdapter) Quote(ctx context.Context, pool *registry.PoolDescriptor, amountIn uint64, baseToQuote bool, slippageBps uint16) (*amm.Quote, error) {
	a.calls++
	if a.err != nil {
		return nil, a.err
	}
	return &amm.Quote{
		AmountIn:     amountIn,
		AmountOut:    amountIn / 7, // SOL(9dp) in, USDC(6dp) out
		MinAmountOut: amountIn / 8,
		FeeBps:       25,
		SlippageBps:  slippageBps,
	}, nil
}

func newTestSession(t *testing.T, node *fakeNode, adapter amm.Adapter) *Session {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(catalogJSON))
	}))
	t.Cleanup(srv.Close)

	feePayer, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)

	s, err := New(Options{
		Registry: registry.New(registry.Config{CatalogURL: srv.URL}),
		Adapter:  adapter,
		Node:     node,
		FeePayer: feePayer,
	})
	require.NoError(t, err)
	return s
}

func TestResolvePairValidation(t *testing.T) {
	s := newTestSession(t, &fakeNode{}, &fixedAdapter{})
	ctx := context.Background()

	_, err := s.ResolvePair(ctx, "DOGE", "USDC")
	assert.Error(t, err)

	_, err = s.ResolvePair(ctx, "SOL", "SOL")
	assert.Error(t, err)

	pair, err := s.ResolvePair(ctx, "sol", "usdc")
	require.NoError(t, err)
	assert.True(t, pair.BaseToQuote, "SOL is the pool's base mint")

	// Reverse direction resolves the same pool.
	rev, err := s.ResolvePair(ctx, "USDC", "SOL")
	require.NoError(t, err)
	assert.False(t, rev.BaseToQuote)
	assert.Equal(t, pair.Pool.ID, rev.Pool.ID)
}

func TestQuoteReturnsHumanReadableView(t *testing.T) {
	s := newTestSession(t, &fakeNode{}, &fixedAdapter{})

	view, applied, err := s.Quote(context.Background(), QuoteParams{
		FromSymbol:  "SOL",
		ToSymbol:    "USDC",
		Amount:      1.0,
		SlippageBps: 0, // clamps to 1
	})
	require.NoError(t, err)
	require.True(t, applied)
	require.NotNil(t, view)

	assert.Equal(t, "SOL", view.FromSymbol)
	assert.Equal(t, 1.0, view.AmountIn)
	assert.Equal(t, 25.0, view.FeeBps)
	assert.Equal(t, uint16(1), view.SlippageBps)
	assert.Greater(t, view.AmountOut, 0.0)
}

func TestExecuteSwapSimulateOnly(t *testing.T) {
	node := &fakeNode{}
	s := newTestSession(t, node, &fixedAdapter{})

	res, err := s.ExecuteSwap(context.Background(), SwapParams{
		FromSymbol:  "SOL",
		ToSymbol:    "USDC",
		Amount:      0.5,
		SlippageBps: 50,
		Submit:      false,
	})
	require.NoError(t, err)

	assert.Equal(t, pipeline.StateAwaitingSend, res.State)
	assert.Empty(t, res.Signature)
	assert.Equal(t, 1, node.simCalls)
	assert.Equal(t, 0, node.sendCalls, "simulate-only never submits")
	require.NotNil(t, res.Quote)
	assert.Equal(t, 0.5, res.Quote.AmountIn)
}

func TestExecuteSwapSubmits(t *testing.T) {
	node := &fakeNode{}
	s := newTestSession(t, node, &fixedAdapter{})

	res, err := s.ExecuteSwap(context.Background(), SwapParams{
		FromSymbol:  "USDC",
		ToSymbol:    "SOL",
		Amount:      100,
		SlippageBps: 50,
		Submit:      true,
	})
	require.NoError(t, err)

	assert.Equal(t, pipeline.StateSent, res.State)
	assert.Equal(t, "4TestSignature", res.Signature)
	assert.Equal(t, 1, node.sendCalls)
}

func TestExecuteSwapSimFailureNeverSubmits(t *testing.T) {
	node := &fakeNode{simErr: fmt.Errorf("custom program error: 0x1")}
	s := newTestSession(t, node, &fixedAdapter{})

	res, err := s.ExecuteSwap(context.Background(), SwapParams{
		FromSymbol:  "SOL",
		ToSymbol:    "USDC",
		Amount:      1,
		SlippageBps: 50,
		Submit:      true, // submission requested but blocked by the failed simulation
	})
	require.NoError(t, err)

	assert.Equal(t, pipeline.StateSimFailed, res.State)
	assert.Equal(t, "custom program error: 0x1", res.SimError)
	assert.Equal(t, 0, node.sendCalls)
}

func TestExecuteSwapAlwaysRequotes(t *testing.T) {
	adapter := &fixedAdapter{}
	s := newTestSession(t, &fakeNode{}, adapter)
	ctx := context.Background()

	// A display quote first.
	_, _, err := s.Quote(ctx, QuoteParams{FromSymbol: "SOL", ToSymbol: "USDC", Amount: 1, SlippageBps: 50})
	require.NoError(t, err)
	require.Equal(t, 1, adapter.calls)

	// Execution takes its own fresh quote.
	_, err = s.ExecuteSwap(ctx, SwapParams{FromSymbol: "SOL", ToSymbol: "USDC", Amount: 1, SlippageBps: 50})
	require.NoError(t, err)
	assert.Equal(t, 2, adapter.calls)
}

func TestExecuteSwapRejectsZeroAmount(t *testing.T) {
	s := newTestSession(t, &fakeNode{}, &fixedAdapter{})

	_, err := s.ExecuteSwap(context.Background(), SwapParams{
		FromSymbol: "SOL",
		ToSymbol:   "USDC",
		Amount:     0,
	})
	assert.Error(t, err)
}
