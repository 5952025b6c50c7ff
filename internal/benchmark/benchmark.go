package benchmark

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Client fetches external benchmark prices used to sanity-check pool
// quotes. It is a read-only market data source; nothing here is ever on
// the execution path of a swap.
type Client struct {
	PairURL  string
	TokenURL string
	HTTP     *http.Client
}

func NewClient(pairURL, tokenURL string) *Client {
	pairURL = strings.TrimRight(strings.TrimSpace(pairURL), "/")
	tokenURL = strings.TrimRight(strings.TrimSpace(tokenURL), "/")
	if pairURL == "" {
		pairURL = "https://api.dexscreener.com/latest/dex/pairs/solana"
	}
	if tokenURL == "" {
		tokenURL = "https://api.dexscreener.com/latest/dex/tokens"
	}
	return &Client{
		PairURL:  pairURL,
		TokenURL: tokenURL,
		HTTP: &http.Client{
			Timeout: 12 * time.Second,
		},
	}
}

type HTTPError struct {
	StatusCode int
	Body       []byte
}

func (e *HTTPError) Error() string {
	b := strings.TrimSpace(string(e.Body))
	if b == "" {
		return fmt.Sprintf("benchmark http %d", e.StatusCode)
	}
	return fmt.Sprintf("benchmark http %d: %s", e.StatusCode, b)
}

// Price is one benchmark observation.
type Price struct {
	PriceUSD    float64
	PairAddress string
	BaseSymbol  string
	Source      string // "pair" or "token"
	FetchedAt   time.Time
}

type pairInfo struct {
	PairAddress string `json:"pairAddress"`
	BaseToken   struct {
		Address string `json:"address"`
		Symbol  string `json:"symbol"`
	} `json:"baseToken"`
	PriceUsd string `json:"priceUsd"`
}

type pairsResponse struct {
	Pairs []pairInfo `json:"pairs"`
}

// FetchPrice resolves a USD benchmark price. The dedicated pair endpoint
// is authoritative; when it yields nothing the token endpoint is
// consulted and the first pair whose base token matches mint wins.
func (c *Client) FetchPrice(ctx context.Context, pairAddress, mint string) (*Price, error) {
	if strings.TrimSpace(pairAddress) != "" {
		p, err := c.fetchFromPair(ctx, pairAddress)
		if err == nil && p != nil {
			return p, nil
		}
		// Fall through to the token endpoint on any pair-endpoint miss.
	}

	if strings.TrimSpace(mint) == "" {
		return nil, fmt.Errorf("no benchmark pair or mint to look up")
	}
	return c.fetchFromToken(ctx, mint)
}

func (c *Client) fetchFromPair(ctx context.Context, pairAddress string) (*Price, error) {
	body, err := c.get(ctx, c.PairURL+"/"+pairAddress)
	if err != nil {
		return nil, err
	}

	var out pairsResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to decode pair response: %w", err)
	}
	if len(out.Pairs) == 0 {
		return nil, fmt.Errorf("pair %s not found", pairAddress)
	}

	return priceFromPair(out.Pairs[0], "pair")
}

func (c *Client) fetchFromToken(ctx context.Context, mint string) (*Price, error) {
	body, err := c.get(ctx, c.TokenURL+"/"+mint)
	if err != nil {
		return nil, err
	}

	var out pairsResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}

	for _, p := range out.Pairs {
		if !strings.EqualFold(p.BaseToken.Address, mint) {
			continue
		}
		price, err := priceFromPair(p, "token")
		if err != nil {
			continue // unpriced pair, keep scanning
		}
		return price, nil
	}

	return nil, fmt.Errorf("no priced pair for mint %s", mint)
}

func priceFromPair(p pairInfo, source string) (*Price, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(p.PriceUsd), 64)
	if err != nil || v <= 0 {
		return nil, fmt.Errorf("pair %s has no usable priceUsd", p.PairAddress)
	}
	return &Price{
		PriceUSD:    v,
		PairAddress: p.PairAddress,
		BaseSymbol:  p.BaseToken.Symbol,
		Source:      source,
		FetchedAt:   time.Now(),
	}, nil
}

func (c *Client) get(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("accept", "application/json")

	res, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	body, _ := io.ReadAll(res.Body)
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, &HTTPError{StatusCode: res.StatusCode, Body: body}
	}
	return body, nil
}
