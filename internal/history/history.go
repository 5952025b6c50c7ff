package history

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/hamzarauf/swapdesk/internal/ledger"
	"github.com/hamzarauf/swapdesk/internal/rpc"
	"github.com/hamzarauf/swapdesk/internal/token"
)

// Fetcher is the slice of RPC behavior the tracker needs.
type Fetcher interface {
	GetSignaturesForAddress(ctx context.Context, address string, opts map[string]interface{}) (*rpc.SignaturesResponse, error)
	GetTransaction(ctx context.Context, signature string) (*rpc.TransactionResponse, error)
}

// BalanceSink receives authoritative post-transaction balances. It is
// satisfied by the ledger, whose synced balances supersede optimistic
// swap updates.
type BalanceSink interface {
	SyncBalance(ctx context.Context, wallet, token string, balance float64) (*ledger.Portfolio, error)
}

// Delta is one observed balance change for the tracked owner.
type Delta struct {
	Signature string  `json:"signature"`
	Symbol    string  `json:"symbol"`
	Change    float64 `json:"change"`
	BlockTime int64   `json:"block_time,omitempty"`
}

// MaxDeltas caps how many recent deltas the tracker retains.
const MaxDeltas = 50

// Tracker follows an owner's on-chain transaction history, turning
// confirmed transactions into balance deltas and reconciling the ledger
// with the post-transaction balances the chain reports. Each refresh
// resumes from the last signature it has seen.
type Tracker struct {
	fetcher Fetcher
	sink    BalanceSink
	owner   string
	limit   int
	logger  *logrus.Logger

	mu      sync.Mutex
	lastSig string
	deltas  []Delta
}

type Options struct {
	Fetcher Fetcher
	Sink    BalanceSink // optional
	Owner   string
	Limit   int // signatures per refresh, default 20
	Logger  *logrus.Logger
}

func NewTracker(opts Options) (*Tracker, error) {
	if opts.Fetcher == nil {
		return nil, fmt.Errorf("history: fetcher is required")
	}
	if opts.Owner == "" {
		return nil, fmt.Errorf("history: owner address is required")
	}
	if opts.Limit <= 0 {
		opts.Limit = 20
	}
	if opts.Logger == nil {
		opts.Logger = logrus.New()
	}
	return &Tracker{
		fetcher: opts.Fetcher,
		sink:    opts.Sink,
		owner:   opts.Owner,
		limit:   opts.Limit,
		logger:  opts.Logger,
	}, nil
}

// Refresh fetches signatures newer than the last refresh and processes
// their transactions oldest first, so the final reconciled balance per
// token is the newest one. A fetch error leaves the cursor untouched
// and the next refresh retries the same window.
func (t *Tracker) Refresh(ctx context.Context) error {
	t.mu.Lock()
	lastSig := t.lastSig
	t.mu.Unlock()

	opts := map[string]interface{}{"limit": t.limit}
	if lastSig != "" {
		opts["until"] = lastSig
	}

	resp, err := t.fetcher.GetSignaturesForAddress(ctx, t.owner, opts)
	if err != nil {
		return fmt.Errorf("failed to fetch signatures: %w", err)
	}
	if len(resp.Result) == 0 {
		return nil
	}

	var fresh []Delta
	for i := len(resp.Result) - 1; i >= 0; i-- {
		info := resp.Result[i]
		if info.Err != nil {
			// Failed transactions move no token balances.
			continue
		}

		txResp, err := t.fetcher.GetTransaction(ctx, info.Signature)
		if err != nil {
			return fmt.Errorf("failed to fetch transaction %s: %w", info.Signature, err)
		}
		res := txResp.Result
		if res == nil || res.Failed() {
			continue
		}

		fresh = append(fresh, t.reconcile(ctx, res, info)...)
	}

	// fresh is oldest first; the retained list is newest first.
	for i, j := 0, len(fresh)-1; i < j; i, j = i+1, j-1 {
		fresh[i], fresh[j] = fresh[j], fresh[i]
	}

	t.mu.Lock()
	t.lastSig = resp.Result[0].Signature
	t.deltas = append(fresh, t.deltas...)
	if len(t.deltas) > MaxDeltas {
		t.deltas = t.deltas[:MaxDeltas]
	}
	t.mu.Unlock()

	t.logger.WithFields(logrus.Fields{
		"signatures": len(resp.Result),
		"deltas":     len(fresh),
	}).Debug("history refreshed")
	return nil
}

// reconcile turns one confirmed transaction into deltas and pushes the
// owner's post-transaction balances to the sink.
func (t *Tracker) reconcile(ctx context.Context, res *rpc.TransactionResult, info rpc.SignatureInfo) []Delta {
	var out []Delta

	for _, change := range res.OwnerTokenDeltas(t.owner) {
		symbol, known := symbolForMint(change.Mint)
		if !known {
			continue
		}
		out = append(out, Delta{
			Signature: info.Signature,
			Symbol:    symbol,
			Change:    change.Amount,
			BlockTime: info.BlockTime,
		})
		if t.sink != nil {
			if post, ok := res.OwnerPostTokenBalance(t.owner, change.Mint); ok {
				if _, err := t.sink.SyncBalance(ctx, t.owner, symbol, post); err != nil {
					t.logger.WithError(err).WithField("token", symbol).Warn("failed to sync balance from history")
				}
			}
		}
	}

	if t.sink != nil {
		if lamports, ok := res.OwnerPostLamports(t.owner); ok {
			sol := token.SOL.FromBaseUnits(lamports)
			if _, err := t.sink.SyncBalance(ctx, t.owner, token.SOL.Symbol, sol); err != nil {
				t.logger.WithError(err).Warn("failed to sync native balance from history")
			}
		}
	}

	return out
}

// Recent returns the observed deltas, newest first.
func (t *Tracker) Recent() []Delta {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Delta(nil), t.deltas...)
}

func symbolForMint(mint string) (string, bool) {
	for _, m := range token.Supported {
		if m.Mint.String() == mint {
			return m.Symbol, true
		}
	}
	return "", false
}
