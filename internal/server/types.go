package server

// ErrorResponse represents a standardized error response format
type ErrorResponse struct {
	Error   string `json:"error"`             // Human-readable error message
	Code    int    `json:"code"`              // HTTP status code
	Details any    `json:"details,omitempty"` // Additional error details (dev mode only)
}

// HealthResponse represents the health check response
type HealthResponse struct {
	OK bool `json:"ok"` // Service health status
}

// PoolsResponse lists the tradable pairs and the catalog size
type PoolsResponse struct {
	Pairs      []string `json:"pairs"`       // Supported symbol pairs, e.g. "SOL/USDC"
	PoolsKnown int      `json:"pools_known"` // Pools loaded from the catalog
}

// QuoteRequest represents a display-quote request
type QuoteRequest struct {
	From        string  `json:"from"`         // From token symbol
	To          string  `json:"to"`           // To token symbol
	Amount      float64 `json:"amount"`       // Human-readable amount of the from token
	SlippageBps int64   `json:"slippage_bps"` // Raw slippage, clamped server-side
}

// SwapRequest represents a swap execution request
type SwapRequest struct {
	Wallet      string  `json:"wallet"`       // Ledger namespace; empty = guest
	From        string  `json:"from"`         // From token symbol
	To          string  `json:"to"`           // To token symbol
	Amount      float64 `json:"amount"`       // Human-readable amount of the from token
	SlippageBps int64   `json:"slippage_bps"` // Raw slippage, clamped server-side
	Versioned   bool    `json:"versioned"`    // Build a v0 transaction instead of legacy
	Submit      bool    `json:"submit"`       // false = simulate only
}
