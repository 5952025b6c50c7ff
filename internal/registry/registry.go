package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"
)

// FallbackCatalogURL is used when no catalog source is configured or the
// configured source fails.
const FallbackCatalogURL = "https://api.raydium.io/v2/sdk/liquidity/mainnet.json"

// PoolJSON is one pool entry in the catalog payload.
type PoolJSON struct {
	ID             string `json:"id"`
	BaseMint       string `json:"baseMint"`
	QuoteMint      string `json:"quoteMint"`
	LpMint         string `json:"lpMint"`
	BaseDecimals   uint8  `json:"baseDecimals"`
	QuoteDecimals  uint8  `json:"quoteDecimals"`
	ProgramID      string `json:"programId"`
	Authority      string `json:"authority"`
	BaseVault      string `json:"baseVault"`
	QuoteVault     string `json:"quoteVault"`
	Version        int    `json:"version"`
	FeeNumerator   uint64 `json:"feeNumerator,omitempty"`
	FeeDenominator uint64 `json:"feeDenominator,omitempty"`
}

type catalogPayload struct {
	Official   []PoolJSON `json:"official"`
	UnOfficial []PoolJSON `json:"unOfficial"`
}

// PoolDescriptor identifies a liquidity pool for a token-mint pair.
// Immutable once loaded.
type PoolDescriptor struct {
	ID             solana.PublicKey
	ProgramID      solana.PublicKey
	Authority      solana.PublicKey
	BaseMint       solana.PublicKey
	QuoteMint      solana.PublicKey
	BaseVault      solana.PublicKey
	QuoteVault     solana.PublicKey
	BaseDecimals   uint8
	QuoteDecimals  uint8
	FeeNumerator   uint64
	FeeDenominator uint64
}

// Registry loads the pool catalog once and resolves pools for mint pairs.
type Registry struct {
	catalogURL  string
	fallbackURL string
	httpClient  *http.Client
	logger      *logrus.Logger

	mu     sync.Mutex
	loaded bool
	pools  []PoolDescriptor
}

type Config struct {
	CatalogURL string // empty = FallbackCatalogURL only
	Timeout    time.Duration
	Logger     *logrus.Logger
}

func New(cfg Config) *Registry {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Registry{
		catalogURL:  cfg.CatalogURL,
		fallbackURL: FallbackCatalogURL,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		logger:      cfg.Logger,
	}
}

// Resolve returns the pool servicing the given mint pair, in either
// direction. A nil descriptor with nil error means no liquidity route
// exists; a non-nil error means the catalog could not be loaded.
func (r *Registry) Resolve(ctx context.Context, mintA, mintB solana.PublicKey) (*PoolDescriptor, error) {
	if err := r.ensureLoaded(ctx); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.pools {
		p := &r.pools[i]
		if (p.BaseMint.Equals(mintA) && p.QuoteMint.Equals(mintB)) ||
			(p.BaseMint.Equals(mintB) && p.QuoteMint.Equals(mintA)) {
			return p, nil
		}
	}
	return nil, nil
}

// PoolCount returns the number of catalog pools, zero before first use.
func (r *Registry) PoolCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pools)
}

// ensureLoaded fetches the catalog on first use. A failed load is retried
// on the next call rather than cached forever.
func (r *Registry) ensureLoaded(ctx context.Context) error {
	r.mu.Lock()
	if r.loaded {
		r.mu.Unlock()
		return nil
	}
	r.mu.Unlock()

	pools, err := r.fetchCatalog(ctx)
	if err != nil {
		return fmt.Errorf("pool catalog unavailable: %w", err)
	}

	r.mu.Lock()
	r.pools = pools
	r.loaded = true
	r.mu.Unlock()

	r.logger.WithField("pools", len(pools)).Info("pool catalog loaded")
	return nil
}

func (r *Registry) fetchCatalog(ctx context.Context) ([]PoolDescriptor, error) {
	urls := []string{r.fallbackURL}
	if r.catalogURL != "" {
		urls = []string{r.catalogURL, r.fallbackURL}
	}

	var lastErr error
	for _, u := range urls {
		pools, err := r.fetchFrom(ctx, u)
		if err != nil {
			lastErr = err
			r.logger.WithError(err).WithField("url", u).Warn("catalog fetch failed")
			continue
		}
		return pools, nil
	}
	return nil, lastErr
}

func (r *Registry) fetchFrom(ctx context.Context, url string) ([]PoolDescriptor, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("accept", "application/json")

	res, err := r.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("catalog http %d", res.StatusCode)
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}

	var payload catalogPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode catalog: %w", err)
	}

	entries := append(payload.Official, payload.UnOfficial...)
	pools := make([]PoolDescriptor, 0, len(entries))
	for _, e := range entries {
		p, err := parsePoolJSON(e)
		if err != nil {
			// One bad catalog entry must not poison the rest.
			r.logger.WithError(err).WithField("pool", e.ID).Debug("skipping catalog entry")
			continue
		}
		pools = append(pools, p)
	}
	return pools, nil
}

func parsePoolJSON(e PoolJSON) (PoolDescriptor, error) {
	id, err := solana.PublicKeyFromBase58(e.ID)
	if err != nil {
		return PoolDescriptor{}, fmt.Errorf("invalid pool id: %w", err)
	}
	programID, err := solana.PublicKeyFromBase58(e.ProgramID)
	if err != nil {
		return PoolDescriptor{}, fmt.Errorf("invalid program id: %w", err)
	}
	authority, err := solana.PublicKeyFromBase58(e.Authority)
	if err != nil {
		return PoolDescriptor{}, fmt.Errorf("invalid authority: %w", err)
	}
	baseMint, err := solana.PublicKeyFromBase58(e.BaseMint)
	if err != nil {
		return PoolDescriptor{}, fmt.Errorf("invalid base mint: %w", err)
	}
	quoteMint, err := solana.PublicKeyFromBase58(e.QuoteMint)
	if err != nil {
		return PoolDescriptor{}, fmt.Errorf("invalid quote mint: %w", err)
	}
	baseVault, err := solana.PublicKeyFromBase58(e.BaseVault)
	if err != nil {
		return PoolDescriptor{}, fmt.Errorf("invalid base vault: %w", err)
	}
	quoteVault, err := solana.PublicKeyFromBase58(e.QuoteVault)
	if err != nil {
		return PoolDescriptor{}, fmt.Errorf("invalid quote vault: %w", err)
	}

	feeNum, feeDen := e.FeeNumerator, e.FeeDenominator
	if feeDen == 0 {
		// Catalog omits fees for standard 25 bps pools.
		feeNum, feeDen = 25, 10000
	}

	return PoolDescriptor{
		ID:             id,
		ProgramID:      programID,
		Authority:      authority,
		BaseMint:       baseMint,
		QuoteMint:      quoteMint,
		BaseVault:      baseVault,
		QuoteVault:     quoteVault,
		BaseDecimals:   e.BaseDecimals,
		QuoteDecimals:  e.QuoteDecimals,
		FeeNumerator:   feeNum,
		FeeDenominator: feeDen,
	}, nil
}
