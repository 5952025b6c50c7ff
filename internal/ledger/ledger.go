package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Ledger is the optimistic balance and history cache, one JSON blob per
// wallet namespace. It is explicitly not a source of truth: authoritative
// on-chain reads supersede whatever it holds.
type Ledger struct {
	client redis.Cmdable
	logger *logrus.Logger
}

func New(client redis.Cmdable, logger *logrus.Logger) (*Ledger, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Ledger{client: client, logger: logger}, nil
}

// Namespace maps a wallet identity to its store key namespace. An empty
// identity uses the guest namespace.
func Namespace(wallet string) string {
	wallet = strings.TrimSpace(wallet)
	if wallet == "" {
		return GuestNamespace
	}
	return wallet
}

func storeKey(wallet string) string {
	return keyPrefix + Namespace(wallet)
}

// Load reads the store for a wallet identity. It never fails: a missing
// key, unreadable backend, corrupted blob, or stale schema version all
// yield the empty default. Failures are logged, not returned.
func (l *Ledger) Load(ctx context.Context, wallet string) *Store {
	val, err := l.client.Get(ctx, storeKey(wallet)).Result()
	if err == redis.Nil {
		return EmptyStore()
	}
	if err != nil {
		l.logger.WithError(err).WithField("namespace", Namespace(wallet)).Warn("ledger read failed, using empty store")
		return EmptyStore()
	}

	store, err := SanitizeStore([]byte(val))
	if err != nil {
		l.logger.WithError(err).WithField("namespace", Namespace(wallet)).Warn("ledger blob rejected, using empty store")
	}
	return store
}

// Save writes the full store, stamping the current schema version.
func (l *Ledger) Save(ctx context.Context, wallet string, store *Store) error {
	if store == nil {
		return fmt.Errorf("store is nil")
	}
	store.Version = SchemaVersion

	b, err := json.Marshal(store)
	if err != nil {
		return fmt.Errorf("marshal store: %w", err)
	}
	if err := l.client.Set(ctx, storeKey(wallet), b, 0).Err(); err != nil {
		return fmt.Errorf("save store: %w", err)
	}
	return nil
}

// RecordTransaction prepends a record built from input and persists the
// store. History is truncated to the newest MaxTransactions entries.
func (l *Ledger) RecordTransaction(ctx context.Context, input SwapInput) (*TransactionRecord, error) {
	store := l.Load(ctx, input.Wallet)

	rec := TransactionRecord{
		ID:          uuid.NewString(),
		CreatedAt:   time.Now().UTC(),
		Wallet:      Namespace(input.Wallet),
		FromToken:   input.FromToken,
		ToToken:     input.ToToken,
		FromAmount:  input.FromAmount,
		ToAmount:    input.ToAmount,
		SlippageBps: input.SlippageBps,
		Status:      coerceStatus(input.Status),
		Signature:   input.Signature,
		Note:        input.Note,
	}

	store.Transactions = PrependCapped(store.Transactions, rec)
	if err := l.Save(ctx, input.Wallet, store); err != nil {
		return nil, err
	}
	return &rec, nil
}

// ApplySwapToPortfolio optimistically moves balances for a swap: the
// from-token balance decreases (floored at zero) and the to-token
// balance increases, before any on-chain confirmation.
func (l *Ledger) ApplySwapToPortfolio(ctx context.Context, input SwapInput) (*Portfolio, error) {
	store := l.Load(ctx, input.Wallet)
	store.Portfolio = ApplySwap(store.Portfolio, input)

	if err := l.Save(ctx, input.Wallet, store); err != nil {
		return nil, err
	}
	return store.Portfolio, nil
}

// SyncBalance overwrites one token's balance from an authoritative read.
func (l *Ledger) SyncBalance(ctx context.Context, wallet, token string, balance float64) (*Portfolio, error) {
	if balance < 0 {
		balance = 0
	}

	store := l.Load(ctx, wallet)
	p := store.Portfolio
	if p == nil {
		p = &Portfolio{Balances: make(map[string]float64)}
	}
	if p.Balances == nil {
		p.Balances = make(map[string]float64)
	}
	p.Balances[token] = balance
	p.LastUpdated = time.Now().UTC()
	p.LastSource = SourceSync
	store.Portfolio = p

	if err := l.Save(ctx, wallet, store); err != nil {
		return nil, err
	}
	return p, nil
}

// Reset discards the namespace's store entirely.
func (l *Ledger) Reset(ctx context.Context, wallet string) error {
	if err := l.client.Del(ctx, storeKey(wallet)).Err(); err != nil {
		return fmt.Errorf("reset store: %w", err)
	}
	return nil
}

// ApplySwap is the pure balance update behind ApplySwapToPortfolio.
func ApplySwap(p *Portfolio, input SwapInput) *Portfolio {
	if p == nil {
		p = &Portfolio{Balances: make(map[string]float64)}
	}
	if p.Balances == nil {
		p.Balances = make(map[string]float64)
	}

	from := p.Balances[input.FromToken] - input.FromAmount
	if from < 0 {
		from = 0
	}
	p.Balances[input.FromToken] = from
	p.Balances[input.ToToken] += input.ToAmount
	p.LastUpdated = time.Now().UTC()
	p.LastSource = SourceSwap
	return p
}

// PrependCapped inserts rec at the front and truncates to
// MaxTransactions.
func PrependCapped(records []TransactionRecord, rec TransactionRecord) []TransactionRecord {
	out := make([]TransactionRecord, 0, len(records)+1)
	out = append(out, rec)
	out = append(out, records...)
	if len(out) > MaxTransactions {
		out = out[:MaxTransactions]
	}
	return out
}

func coerceStatus(s string) string {
	switch s {
	case StatusSimulated, StatusSubmitted, StatusFailed:
		return s
	default:
		return StatusFailed
	}
}
