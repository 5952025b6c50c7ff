package server

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/hamzarauf/swapdesk/internal/archive"
	"github.com/hamzarauf/swapdesk/internal/feeds"
	"github.com/hamzarauf/swapdesk/internal/history"
	"github.com/hamzarauf/swapdesk/internal/ledger"
	"github.com/hamzarauf/swapdesk/internal/registry"
	"github.com/hamzarauf/swapdesk/internal/session"
)

// Handlers contains all dependencies for API endpoint handlers
type Handlers struct {
	Session  *session.Session   // Swap orchestration (quote + execute)
	Ledger   *ledger.Ledger     // Optimistic portfolio/history store
	Poller   *feeds.Poller      // Background feed status and refresh
	Registry *registry.Registry // Pool catalog
	History  *history.Tracker   // On-chain balance delta tracker
	Archive  *archive.Archive   // Long-term swap store (optional)
	DevMode  bool               // Enable detailed error responses in development
	Logger   *logrus.Logger     // Structured logger
}

// err returns a standardized JSON error response
// In dev mode, includes additional error details for debugging
func (h *Handlers) err(c echo.Context, code int, msg string, details any) error {
	resp := ErrorResponse{Error: msg, Code: code}
	if h.DevMode && details != nil {
		resp.Details = details
	}
	return c.JSON(code, resp)
}

// withTimeout creates a context with timeout, defaulting to 10 seconds if duration <= 0
func (h *Handlers) withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = 10 * time.Second
	}
	return context.WithTimeout(ctx, d)
}

// Health returns a simple health check endpoint
func (h *Handlers) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{OK: true})
}

// Pools returns the supported trading pairs and catalog size
func (h *Handlers) Pools(c echo.Context) error {
	return c.JSON(http.StatusOK, PoolsResponse{
		Pairs:      h.Session.SupportedPairs(),
		PoolsKnown: h.Registry.PoolCount(),
	})
}

// Quote prices a swap without executing it. A request superseded by a
// newer one returns 409; the client should keep its current display.
func (h *Handlers) Quote(c echo.Context) error {
	var req QuoteRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	view, applied, err := h.Session.Quote(ctx, session.QuoteParams{
		FromSymbol:  req.From,
		ToSymbol:    req.To,
		Amount:      req.Amount,
		SlippageBps: req.SlippageBps,
	})
	if err != nil {
		return h.err(c, http.StatusBadRequest, "quote failed", map[string]any{"err": err.Error()})
	}
	if !applied {
		return h.err(c, http.StatusConflict, "quote superseded", nil)
	}
	if view == nil {
		// Zero amount clears quote state.
		return c.JSON(http.StatusOK, map[string]any{"quote": nil})
	}
	return c.JSON(http.StatusOK, map[string]any{"quote": view})
}

// Swap executes one swap attempt: fresh quote, assembly, simulation,
// and optionally submission. The attempt's outcome is returned even
// when simulation or submission fails; transport-level problems are
// the only 4xx/5xx cases.
func (h *Handlers) Swap(c echo.Context) error {
	var req SwapRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 60*time.Second)
	defer cancel()

	res, err := h.Session.ExecuteSwap(ctx, session.SwapParams{
		Wallet:      req.Wallet,
		FromSymbol:  req.From,
		ToSymbol:    req.To,
		Amount:      req.Amount,
		SlippageBps: req.SlippageBps,
		Versioned:   req.Versioned,
		Submit:      req.Submit,
	})
	if err != nil {
		return h.err(c, http.StatusBadRequest, "swap rejected", map[string]any{"err": err.Error()})
	}
	return c.JSON(http.StatusOK, res)
}

// Portfolio returns the optimistic balance snapshot for a wallet.
// Unknown wallets return the empty default, never an error.
func (h *Handlers) Portfolio(c echo.Context) error {
	if h.Ledger == nil {
		return h.err(c, http.StatusServiceUnavailable, "ledger is not configured", nil)
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	store := h.Ledger.Load(ctx, walletParam(c))
	return c.JSON(http.StatusOK, map[string]any{"portfolio": store.Portfolio})
}

// PortfolioReset discards a wallet's stored ledger entirely
func (h *Handlers) PortfolioReset(c echo.Context) error {
	if h.Ledger == nil {
		return h.err(c, http.StatusServiceUnavailable, "ledger is not configured", nil)
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Ledger.Reset(ctx, walletParam(c)); err != nil {
		return h.err(c, http.StatusInternalServerError, "failed to reset portfolio", nil)
	}
	return c.NoContent(http.StatusNoContent)
}

// Transactions returns a wallet's recorded swap history, newest first
// Accepts limit query parameter (default: 50, range: 1-50)
func (h *Handlers) Transactions(c echo.Context) error {
	if h.Ledger == nil {
		return h.err(c, http.StatusServiceUnavailable, "ledger is not configured", nil)
	}

	limit := ledger.MaxTransactions
	if limitStr := c.QueryParam("limit"); limitStr != "" {
		n, err := strconv.Atoi(limitStr)
		if err != nil {
			return h.err(c, http.StatusBadRequest, "invalid limit", map[string]any{"limit": "must be an integer"})
		}
		if n < 1 || n > ledger.MaxTransactions {
			return h.err(c, http.StatusBadRequest, "invalid limit", map[string]any{"limit": "min 1 max 50"})
		}
		limit = n
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	store := h.Ledger.Load(ctx, walletParam(c))
	items := store.Transactions
	if len(items) > limit {
		items = items[:limit]
	}
	return c.JSON(http.StatusOK, map[string]any{"items": items})
}

// HistoryDeltas returns the fee payer's recent on-chain balance
// deltas, newest first
func (h *Handlers) HistoryDeltas(c echo.Context) error {
	if h.History == nil {
		return h.err(c, http.StatusServiceUnavailable, "history tracking is not configured", nil)
	}
	deltas := h.History.Recent()
	if deltas == nil {
		deltas = []history.Delta{}
	}
	return c.JSON(http.StatusOK, map[string]any{"deltas": deltas})
}

// ArchivedSwaps returns a wallet's submitted swaps from the long-term
// archive, newest first
func (h *Handlers) ArchivedSwaps(c echo.Context) error {
	if h.Archive == nil {
		return h.err(c, http.StatusServiceUnavailable, "swap archive is not configured", nil)
	}

	limit := 50
	if limitStr := c.QueryParam("limit"); limitStr != "" {
		n, err := strconv.Atoi(limitStr)
		if err != nil || n < 1 || n > 100 {
			return h.err(c, http.StatusBadRequest, "invalid limit", map[string]any{"limit": "min 1 max 100"})
		}
		limit = n
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	rows, err := h.Archive.RecentSwaps(ctx, ledger.Namespace(walletParam(c)), limit)
	if err != nil {
		return h.err(c, http.StatusInternalServerError, "failed to query swap archive", map[string]any{"err": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]any{"swaps": rows})
}

// FeedsStatus reports every background feed's health plus a composite
// "updating ..." message
func (h *Handlers) FeedsStatus(c echo.Context) error {
	if h.Poller == nil {
		return h.err(c, http.StatusServiceUnavailable, "feeds are not configured", nil)
	}
	return c.JSON(http.StatusOK, h.Poller.Status())
}

// FeedRefresh retries a single feed immediately without touching its
// siblings
func (h *Handlers) FeedRefresh(c echo.Context) error {
	if h.Poller == nil {
		return h.err(c, http.StatusServiceUnavailable, "feeds are not configured", nil)
	}

	name := strings.TrimSpace(c.Param("name"))
	if name == "" {
		return h.err(c, http.StatusBadRequest, "invalid feed name", nil)
	}
	known := false
	for _, n := range h.Poller.FeedNames() {
		if n == name {
			known = true
			break
		}
	}
	if !known {
		return h.err(c, http.StatusNotFound, "unknown feed", nil)
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 30*time.Second)
	defer cancel()

	if err := h.Poller.Refresh(ctx, name); err != nil {
		return h.err(c, http.StatusBadGateway, "feed refresh failed", map[string]any{"err": err.Error()})
	}
	return c.JSON(http.StatusOK, h.Poller.Status())
}

func walletParam(c echo.Context) string {
	w := strings.TrimSpace(c.Param("wallet"))
	if w == "guest" {
		return ""
	}
	return w
}
