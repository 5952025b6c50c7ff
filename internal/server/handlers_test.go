package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hamzarauf/swapdesk/internal/feeds"
	"github.com/hamzarauf/swapdesk/internal/history"
	"github.com/hamzarauf/swapdesk/internal/rpc"
)

func newTestServer(t *testing.T, h *Handlers, cfg ServerConfig) *echo.Echo {
	t.Helper()
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	RegisterRoutes(e, h, cfg)
	return e
}

func TestHealth(t *testing.T) {
	e := newTestServer(t, &Handlers{}, ServerConfig{})

	req := httptest.NewRequest(http.MethodGet, "/v1/health", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.OK)
}

func TestNotFoundIsJSON(t *testing.T) {
	e := newTestServer(t, &Handlers{}, ServerConfig{})

	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestAPIKeyGate(t *testing.T) {
	e := newTestServer(t, &Handlers{}, ServerConfig{APIKey: "sekrit"})

	req := httptest.NewRequest(http.MethodGet, "/v1/health", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/v1/health", nil)
	req.Header.Set("X-API-Key", "sekrit")
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLedgerEndpointsWithoutLedger(t *testing.T) {
	e := newTestServer(t, &Handlers{}, ServerConfig{})

	for _, route := range []struct {
		method, path string
	}{
		{http.MethodGet, "/v1/portfolio/guest"},
		{http.MethodGet, "/v1/transactions/guest"},
		{http.MethodPost, "/v1/portfolio/guest/reset"},
	} {
		req := httptest.NewRequest(route.method, route.path, nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, route.path)
	}
}

type idleFetcher struct{}

func (idleFetcher) GetSignaturesForAddress(ctx context.Context, address string, opts map[string]interface{}) (*rpc.SignaturesResponse, error) {
	return &rpc.SignaturesResponse{}, nil
}

func (idleFetcher) GetTransaction(ctx context.Context, signature string) (*rpc.TransactionResponse, error) {
	return &rpc.TransactionResponse{}, nil
}

func TestHistoryEndpoint(t *testing.T) {
	e := newTestServer(t, &Handlers{}, ServerConfig{})

	req := httptest.NewRequest(http.MethodGet, "/v1/history", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	tracker, err := history.NewTracker(history.Options{Fetcher: idleFetcher{}, Owner: "owner"})
	require.NoError(t, err)
	e = newTestServer(t, &Handlers{History: tracker}, ServerConfig{})

	req = httptest.NewRequest(http.MethodGet, "/v1/history", nil)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Deltas []history.Delta `json:"deltas"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Empty(t, resp.Deltas)
}

func TestArchiveEndpointWithoutArchive(t *testing.T) {
	e := newTestServer(t, &Handlers{}, ServerConfig{})

	req := httptest.NewRequest(http.MethodGet, "/v1/archive/guest", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestFeedsStatusAndRefresh(t *testing.T) {
	poller := feeds.NewPoller(nil)
	require.NoError(t, poller.Register("price", time.Hour, func(ctx context.Context) error { return nil }))

	e := newTestServer(t, &Handlers{Poller: poller}, ServerConfig{})

	req := httptest.NewRequest(http.MethodGet, "/v1/feeds/status", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var status feeds.Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	require.Len(t, status.Feeds, 1)
	assert.Equal(t, "price", status.Feeds[0].Name)

	// Refreshing a registered feed succeeds.
	req = httptest.NewRequest(http.MethodPost, "/v1/feeds/price/refresh", nil)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// An unknown feed is a 404.
	req = httptest.NewRequest(http.MethodPost, "/v1/feeds/bogus/refresh", nil)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWalletParam(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	c.SetParamNames("wallet")

	c.SetParamValues("guest")
	assert.Equal(t, "", walletParam(c))

	c.SetParamValues("9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin")
	assert.Equal(t, "9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin", walletParam(c))
}
