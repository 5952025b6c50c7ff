package ledger

import "time"

const (
	// SchemaVersion is stamped into every write. A stored blob with any
	// other version is discarded and rebuilt empty; there are no
	// migrations for a best-effort cache.
	SchemaVersion = 1

	// GuestNamespace keys the store when no wallet is connected.
	GuestNamespace = "guest"

	// MaxTransactions bounds the retained history, newest first.
	MaxTransactions = 50

	keyPrefix = "ledger:"
)

// Balance sources, recorded so reconciliation knows whether a balance
// is an optimistic local guess or an authoritative read.
const (
	SourceSwap   = "swap"
	SourceManual = "manual"
	SourceSync   = "sync"
)

// Transaction statuses.
const (
	StatusSimulated = "simulated"
	StatusSubmitted = "submitted"
	StatusFailed    = "failed"
)

// Portfolio is one optimistic balance snapshot per wallet identity.
// Balances are human-readable token amounts keyed by symbol.
type Portfolio struct {
	Balances    map[string]float64 `json:"balances"`
	LastUpdated time.Time          `json:"last_updated"`
	LastSource  string             `json:"last_source"`
}

// TransactionRecord is one retained swap attempt.
type TransactionRecord struct {
	ID          string    `json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	Wallet      string    `json:"wallet"`
	FromToken   string    `json:"from_token"`
	ToToken     string    `json:"to_token"`
	FromAmount  float64   `json:"from_amount"`
	ToAmount    float64   `json:"to_amount"`
	SlippageBps uint16    `json:"slippage_bps"`
	Status      string    `json:"status"`
	Signature   string    `json:"signature,omitempty"`
	Note        string    `json:"note,omitempty"`
}

// Store is the full persisted blob for one wallet namespace.
type Store struct {
	Version      int                 `json:"version"`
	Portfolio    *Portfolio          `json:"portfolio"`
	Transactions []TransactionRecord `json:"transactions"`
}

// EmptyStore is the documented default used whenever a load cannot
// produce a usable store.
func EmptyStore() *Store {
	return &Store{
		Version:      SchemaVersion,
		Portfolio:    nil,
		Transactions: []TransactionRecord{},
	}
}

// SwapInput describes one swap to apply optimistically.
type SwapInput struct {
	Wallet      string
	FromToken   string
	ToToken     string
	FromAmount  float64
	ToAmount    float64
	SlippageBps uint16
	Status      string
	Signature   string
	Note        string
}
