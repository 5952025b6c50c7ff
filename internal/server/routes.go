package server

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
)

// RegisterRoutes configures all API routes, middleware, and error handlers
func RegisterRoutes(e *echo.Echo, h *Handlers, cfg ServerConfig) {
	// Set custom error handler for consistent JSON responses
	e.HTTPErrorHandler = NotFoundJSON()

	// Apply global middleware
	e.Use(SetJSONContentType) // Ensure all responses are JSON
	e.Use(SetNoCacheHeaders)  // Prevent caching of API responses

	// Optional API key authentication
	if cfg.APIKey != "" {
		e.Use(middleware.KeyAuthWithConfig(middleware.KeyAuthConfig{
			KeyLookup: "header:X-API-Key",
			Validator: func(key string, c echo.Context) (bool, error) {
				return key == cfg.APIKey, nil
			},
		}))
	}

	// API v1 routes
	v1 := e.Group("/v1")
	v1.GET("/health", h.Health)
	v1.GET("/pools", h.Pools)
	v1.POST("/quote", h.Quote)

	// Execution is rate limited: each swap costs node simulation and
	// submission calls.
	swapGroup := v1.Group("/swap")
	swapGroup.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(1), // 1 request per second
		Burst:     3,             // Allow burst of 3 requests
		ExpiresIn: 2 * time.Minute,
	})))
	swapGroup.POST("", h.Swap)

	// Ledger endpoints
	v1.GET("/portfolio/:wallet", h.Portfolio)
	v1.POST("/portfolio/:wallet/reset", h.PortfolioReset)
	v1.GET("/transactions/:wallet", h.Transactions)

	// On-chain history and long-term archive
	v1.GET("/history", h.HistoryDeltas)
	v1.GET("/archive/:wallet", h.ArchivedSwaps)

	// Feed endpoints
	v1.GET("/feeds/status", h.FeedsStatus)
	v1.POST("/feeds/:name/refresh", h.FeedRefresh)

	// Catch-all route for 404 responses
	e.RouteNotFound("/*", func(c echo.Context) error {
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "not found", Code: http.StatusNotFound})
	})
}
