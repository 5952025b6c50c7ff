package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"

	"github.com/hamzarauf/swapdesk/internal/amm"
	"github.com/hamzarauf/swapdesk/internal/archive"
	"github.com/hamzarauf/swapdesk/internal/assembler"
	"github.com/hamzarauf/swapdesk/internal/ledger"
	"github.com/hamzarauf/swapdesk/internal/pipeline"
	"github.com/hamzarauf/swapdesk/internal/quote"
	"github.com/hamzarauf/swapdesk/internal/registry"
	"github.com/hamzarauf/swapdesk/internal/token"
	"github.com/hamzarauf/swapdesk/internal/wallet"
)

// Node is the slice of wallet behavior the session needs from the
// network node.
type Node interface {
	GetLatestBlockhash(ctx context.Context, commitment ...string) (wallet.Blockhash, error)
	SimulateTransaction(ctx context.Context, tx *solana.Transaction) (*wallet.SimulationResult, error)
	SendTx(ctx context.Context, tx *solana.Transaction, opts *wallet.SendOptions) (string, error)
	AccountExists(ctx context.Context, pubkey solana.PublicKey) (bool, error)
}

// Session orchestrates one user's swap flow: pool resolution, display
// quoting, and execution. Pool descriptors are resolved lazily and
// cached for the session's lifetime.
type Session struct {
	registry  *registry.Registry
	adapter   amm.Adapter
	sequencer *quote.Sequencer
	node      Node
	feePayer  solana.PrivateKey
	ledger    *ledger.Ledger
	archive   *archive.Archive
	logger    *logrus.Logger

	mu    sync.Mutex
	pools map[string]*registry.PoolDescriptor
}

type Options struct {
	Registry *registry.Registry
	Adapter  amm.Adapter
	Node     Node
	FeePayer solana.PrivateKey
	Ledger   *ledger.Ledger // optional
	Archive  *archive.Archive
	Logger   *logrus.Logger
}

func New(opts Options) (*Session, error) {
	if opts.Registry == nil {
		return nil, fmt.Errorf("session: registry is required")
	}
	if opts.Adapter == nil {
		return nil, fmt.Errorf("session: pricing adapter is required")
	}
	if opts.Node == nil {
		return nil, fmt.Errorf("session: node is required")
	}
	if len(opts.FeePayer) == 0 {
		return nil, fmt.Errorf("session: fee payer key is required")
	}
	if opts.Logger == nil {
		opts.Logger = logrus.New()
	}

	return &Session{
		registry:  opts.Registry,
		adapter:   opts.Adapter,
		sequencer: quote.NewSequencer(opts.Adapter, opts.Logger),
		node:      opts.Node,
		feePayer:  opts.FeePayer,
		ledger:    opts.Ledger,
		archive:   opts.Archive,
		logger:    opts.Logger,
		pools:     make(map[string]*registry.PoolDescriptor),
	}, nil
}

// Pair is a validated from/to token pair with its resolved pool.
type Pair struct {
	From        token.Meta
	To          token.Meta
	Pool        *registry.PoolDescriptor
	BaseToQuote bool
}

// ResolvePair validates the symbols and resolves their pool, cached per
// session. A pair with no liquidity route is an error at this boundary.
func (s *Session) ResolvePair(ctx context.Context, fromSymbol, toSymbol string) (*Pair, error) {
	from, ok := token.BySymbol(normalizeSymbol(fromSymbol))
	if !ok {
		return nil, fmt.Errorf("unsupported token %q", fromSymbol)
	}
	to, ok := token.BySymbol(normalizeSymbol(toSymbol))
	if !ok {
		return nil, fmt.Errorf("unsupported token %q", toSymbol)
	}
	if from.Symbol == to.Symbol {
		return nil, fmt.Errorf("cannot swap %s for itself", from.Symbol)
	}

	cacheKey := from.Mint.String() + "/" + to.Mint.String()
	s.mu.Lock()
	pool, cached := s.pools[cacheKey]
	s.mu.Unlock()

	if !cached {
		var err error
		pool, err = s.registry.Resolve(ctx, from.Mint, to.Mint)
		if err != nil {
			return nil, err
		}
		if pool == nil {
			return nil, fmt.Errorf("no liquidity route for %s/%s", from.Symbol, to.Symbol)
		}
		s.mu.Lock()
		s.pools[cacheKey] = pool
		s.mu.Unlock()
	}

	return &Pair{
		From:        from,
		To:          to,
		Pool:        pool,
		BaseToQuote: from.Mint.Equals(pool.BaseMint),
	}, nil
}

// QuoteParams are the user-editable swap inputs.
type QuoteParams struct {
	FromSymbol  string
	ToSymbol    string
	Amount      float64 // human-readable, in the from token
	SlippageBps int64   // raw, clamped downstream
}

// QuoteView is a display quote in human-readable amounts.
type QuoteView struct {
	FromSymbol     string    `json:"from_symbol"`
	ToSymbol       string    `json:"to_symbol"`
	AmountIn       float64   `json:"amount_in"`
	AmountOut      float64   `json:"amount_out"`
	MinAmountOut   float64   `json:"min_amount_out"`
	CurrentPrice   float64   `json:"current_price"`
	ExecutionPrice float64   `json:"execution_price"`
	PriceImpact    float64   `json:"price_impact"`
	FeeBps         float64   `json:"fee_bps"`
	SlippageBps    uint16    `json:"slippage_bps"`
	QuotedAt       time.Time `json:"quoted_at"`
}

// Quote prices the given inputs through the sequencer, so out-of-order
// resolutions can never surface a stale quote. The second return value
// is false when this request was superseded by a newer one; the caller
// should simply drop the response.
func (s *Session) Quote(ctx context.Context, params QuoteParams) (*QuoteView, bool, error) {
	pair, err := s.ResolvePair(ctx, params.FromSymbol, params.ToSymbol)
	if err != nil {
		return nil, true, err
	}

	req := quote.Request{
		Pool:        pair.Pool,
		AmountIn:    pair.From.ToBaseUnits(params.Amount),
		BaseToQuote: pair.BaseToQuote,
		SlippageBps: amm.ClampSlippageBps(params.SlippageBps),
	}

	q, applied, err := s.sequencer.Refresh(ctx, req)
	if err != nil {
		return nil, applied, err
	}
	if !applied || q == nil {
		return nil, applied, nil
	}

	return quoteView(pair, q), true, nil
}

// SwapParams describe one execution attempt.
type SwapParams struct {
	Wallet      string // ledger namespace; empty = guest
	FromSymbol  string
	ToSymbol    string
	Amount      float64
	SlippageBps int64
	Versioned   bool
	Submit      bool // false = simulate only
}

// SwapResult reports the attempt's outcome.
type SwapResult struct {
	State     pipeline.State `json:"state"`
	Quote     *QuoteView     `json:"quote,omitempty"`
	Signature string         `json:"signature,omitempty"`
	SimError  string         `json:"sim_error,omitempty"`
	SendError string         `json:"send_error,omitempty"`
	SimLogs   []string       `json:"sim_logs,omitempty"`
}

// ExecuteSwap drives one attempt through the pipeline: a mandatory
// fresh quote, assembly, simulation, and (when requested and only after
// a clean simulation) submission. The ledger is updated optimistically
// and the archive receives submitted swaps best-effort.
func (s *Session) ExecuteSwap(ctx context.Context, params SwapParams) (*SwapResult, error) {
	pair, err := s.ResolvePair(ctx, params.FromSymbol, params.ToSymbol)
	if err != nil {
		return nil, err
	}

	amountIn := pair.From.ToBaseUnits(params.Amount)
	if amountIn == 0 {
		return nil, fmt.Errorf("swap amount must be positive")
	}
	slippage := amm.ClampSlippageBps(params.SlippageBps)

	p := pipeline.New(nodeSimulator{s.node}, nodeSender{s.node}, s.logger)

	// The display quote is never executed; the attempt commits to a
	// quote taken right now.
	err = p.Prepare(ctx, func(ctx context.Context) (*amm.Quote, error) {
		return s.adapter.Quote(ctx, pair.Pool, amountIn, pair.BaseToQuote, slippage)
	})
	if err != nil {
		return nil, err
	}

	simErr := p.Simulate(ctx, func(ctx context.Context, q *amm.Quote) (*assembler.AssembledTransaction, error) {
		return s.assemble(ctx, pair, q, params.Versioned)
	})

	res := p.Result()
	out := &SwapResult{
		State:    res.State,
		SimError: res.SimError,
		SimLogs:  res.SimLogs,
	}
	if res.Quote != nil {
		out.Quote = quoteView(pair, res.Quote)
	}

	if simErr != nil {
		s.recordAttempt(ctx, params, pair, res.Quote, ledger.StatusFailed, "", res.SimError)
		return out, nil
	}

	if !params.Submit {
		s.recordAttempt(ctx, params, pair, res.Quote, ledger.StatusSimulated, "", "")
		s.applyOptimistic(ctx, params, pair, res.Quote)
		return out, nil
	}

	sig, sendErr := p.Submit(ctx)
	res = p.Result()
	out.State = res.State
	out.SendError = res.SendError

	if sendErr != nil {
		s.recordAttempt(ctx, params, pair, res.Quote, ledger.StatusFailed, "", res.SendError)
		return out, nil
	}

	out.Signature = sig
	s.recordAttempt(ctx, params, pair, res.Quote, ledger.StatusSubmitted, sig, "")
	s.applyOptimistic(ctx, params, pair, res.Quote)
	s.archiveSwap(ctx, params, pair, res.Quote, sig)

	return out, nil
}

// assemble builds the signed transaction for a committed quote.
func (s *Session) assemble(ctx context.Context, pair *Pair, q *amm.Quote, versioned bool) (*assembler.AssembledTransaction, error) {
	owner := s.feePayer.PublicKey()
	resolver := assembler.NewATAResolver(s.node)

	inAccount, err := resolver.Resolve(ctx, owner, pair.From.Mint)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve source token account: %w", err)
	}
	outAccount, err := resolver.Resolve(ctx, owner, pair.To.Mint)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve destination token account: %w", err)
	}
	if !inAccount.Exists {
		return nil, fmt.Errorf("no %s token account for %s", pair.From.Symbol, owner)
	}

	batches, err := amm.BuildSwapBatches(amm.SwapConstructionInput{
		Pool:                pair.Pool,
		AmountIn:            q.AmountIn,
		MinAmountOut:        q.MinAmountOut,
		BaseToQuote:         pair.BaseToQuote,
		UserAuthority:       owner,
		UserTokenAccountIn:  inAccount.Address,
		UserTokenAccountOut: outAccount.Address,
	})
	if err != nil {
		return nil, err
	}

	a := assembler.New(s.feePayer, s.node, s.logger)
	return a.Build(ctx, batches, versioned)
}

func (s *Session) recordAttempt(ctx context.Context, params SwapParams, pair *Pair, q *amm.Quote, status, sig, note string) {
	if s.ledger == nil {
		return
	}

	input := ledger.SwapInput{
		Wallet:      params.Wallet,
		FromToken:   pair.From.Symbol,
		ToToken:     pair.To.Symbol,
		FromAmount:  params.Amount,
		SlippageBps: amm.ClampSlippageBps(params.SlippageBps),
		Status:      status,
		Signature:   sig,
		Note:        note,
	}
	if q != nil {
		input.ToAmount = pair.To.FromBaseUnits(q.AmountOut)
	}

	if _, err := s.ledger.RecordTransaction(ctx, input); err != nil {
		s.logger.WithError(err).Warn("failed to record transaction")
	}
}

func (s *Session) applyOptimistic(ctx context.Context, params SwapParams, pair *Pair, q *amm.Quote) {
	if s.ledger == nil || q == nil {
		return
	}

	_, err := s.ledger.ApplySwapToPortfolio(ctx, ledger.SwapInput{
		Wallet:     params.Wallet,
		FromToken:  pair.From.Symbol,
		ToToken:    pair.To.Symbol,
		FromAmount: params.Amount,
		ToAmount:   pair.To.FromBaseUnits(q.AmountOut),
	})
	if err != nil {
		s.logger.WithError(err).Warn("failed to apply optimistic balance update")
	}
}

func (s *Session) archiveSwap(ctx context.Context, params SwapParams, pair *Pair, q *amm.Quote, sig string) {
	if s.archive == nil || q == nil {
		return
	}

	row := &archive.SwapRow{
		Signature:   sig,
		Timestamp:   time.Now().UTC(),
		Wallet:      ledger.Namespace(params.Wallet),
		Pair:        pair.From.Symbol + "/" + pair.To.Symbol,
		TokenIn:     pair.From.Symbol,
		TokenOut:    pair.To.Symbol,
		AmountIn:    params.Amount,
		AmountOut:   pair.To.FromBaseUnits(q.AmountOut),
		Price:       q.ExecutionPrice,
		SlippageBps: q.SlippageBps,
		Status:      ledger.StatusSubmitted,
		Pool:        pair.Pool.ID.String(),
	}
	if err := s.archive.InsertSwap(ctx, row); err != nil {
		s.logger.WithError(err).Warn("failed to archive swap")
	}
}

// ResetQuote clears sequencer state, e.g. when the user clears the form.
func (s *Session) ResetQuote() {
	s.sequencer.Reset()
}

// SupportedPairs lists the tradable symbol pairs.
func (s *Session) SupportedPairs() []string {
	var out []string
	for _, a := range token.Supported {
		for _, b := range token.Supported {
			if a.Symbol != b.Symbol {
				out = append(out, a.Symbol+"/"+b.Symbol)
			}
		}
	}
	return out
}

func quoteView(pair *Pair, q *amm.Quote) *QuoteView {
	return &QuoteView{
		FromSymbol:     pair.From.Symbol,
		ToSymbol:       pair.To.Symbol,
		AmountIn:       pair.From.FromBaseUnits(q.AmountIn),
		AmountOut:      pair.To.FromBaseUnits(q.AmountOut),
		MinAmountOut:   pair.To.FromBaseUnits(q.MinAmountOut),
		CurrentPrice:   q.CurrentPrice,
		ExecutionPrice: q.ExecutionPrice,
		PriceImpact:    q.PriceImpact,
		FeeBps:         float64(q.FeeBps),
		SlippageBps:    q.SlippageBps,
		QuotedAt:       q.QuotedAt,
	}
}

// nodeSimulator and nodeSender adapt the node to the pipeline contracts.
type nodeSimulator struct{ node Node }

func (n nodeSimulator) Simulate(ctx context.Context, tx *assembler.AssembledTransaction) (*wallet.SimulationResult, error) {
	return n.node.SimulateTransaction(ctx, tx.Tx)
}

type nodeSender struct{ node Node }

func (n nodeSender) Send(ctx context.Context, tx *assembler.AssembledTransaction) (string, error) {
	opts := wallet.DefaultSendOptions()
	return n.node.SendTx(ctx, tx.Tx, &opts)
}

var _ Node = (*wallet.Wallet)(nil)

// normalizeSymbol uppercases user input so "sol" matches "SOL".
func normalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
