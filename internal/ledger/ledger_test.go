package ledger

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   2, // Use different DB for tests
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := client.Ping(ctx).Err()
	if err != nil {
		t.Skipf("Redis not available: %v", err)
	}

	err = client.FlushDB(ctx).Err()
	require.NoError(t, err)

	return client
}

func cleanupTestRedis(_ *testing.T, client *redis.Client) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_ = client.FlushDB(ctx).Err()
	_ = client.Close()
}

func TestLedger_SaveLoadRoundTrip(t *testing.T) {
	client := setupTestRedis(t)
	defer cleanupTestRedis(t, client)

	l, err := New(client, nil)
	require.NoError(t, err)

	ctx := context.Background()
	wallet := "9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin"

	store := EmptyStore()
	store.Portfolio = &Portfolio{
		Balances:    map[string]float64{"SOL": 2.0, "USDC": 300},
		LastUpdated: time.Now().UTC().Truncate(time.Second),
		LastSource:  SourceManual,
	}
	require.NoError(t, l.Save(ctx, wallet, store))

	loaded := l.Load(ctx, wallet)
	assert.Equal(t, store.Portfolio.Balances, loaded.Portfolio.Balances)
	assert.Equal(t, SourceManual, loaded.Portfolio.LastSource)
	assert.Equal(t, SchemaVersion, loaded.Version)
}

func TestLedger_LoadNeverErrors(t *testing.T) {
	client := setupTestRedis(t)
	defer cleanupTestRedis(t, client)

	l, err := New(client, nil)
	require.NoError(t, err)

	ctx := context.Background()

	// Missing key yields the empty default.
	store := l.Load(ctx, "missing-wallet")
	assert.Equal(t, EmptyStore(), store)

	// Corrupted blob yields the empty default.
	require.NoError(t, client.Set(ctx, storeKey("corrupt"), "}}not json{{", 0).Err())
	store = l.Load(ctx, "corrupt")
	assert.Equal(t, EmptyStore(), store)

	// Stale schema version discards the blob.
	blob := fmt.Sprintf(`{"version": %d, "portfolio": {"balances": {"SOL": 99}}}`, SchemaVersion+1)
	require.NoError(t, client.Set(ctx, storeKey("stale"), blob, 0).Err())
	store = l.Load(ctx, "stale")
	assert.Equal(t, EmptyStore(), store)
}

func TestLedger_RecordTransactionPrependsAndCaps(t *testing.T) {
	client := setupTestRedis(t)
	defer cleanupTestRedis(t, client)

	l, err := New(client, nil)
	require.NoError(t, err)

	ctx := context.Background()

	for i := 0; i < MaxTransactions+5; i++ {
		_, err := l.RecordTransaction(ctx, SwapInput{
			FromToken:  "SOL",
			ToToken:    "USDC",
			FromAmount: float64(i),
			ToAmount:   float64(i) * 140,
			Status:     StatusSubmitted,
		})
		require.NoError(t, err)
	}

	store := l.Load(ctx, "")
	require.Len(t, store.Transactions, MaxTransactions)
	// Newest first.
	assert.Equal(t, float64(MaxTransactions+4), store.Transactions[0].FromAmount)
	assert.Equal(t, GuestNamespace, store.Transactions[0].Wallet)
	assert.NotEmpty(t, store.Transactions[0].ID)
}

func TestLedger_RecordTransactionCoercesStatus(t *testing.T) {
	client := setupTestRedis(t)
	defer cleanupTestRedis(t, client)

	l, err := New(client, nil)
	require.NoError(t, err)

	rec, err := l.RecordTransaction(context.Background(), SwapInput{
		FromToken: "SOL",
		ToToken:   "USDC",
		Status:    "exploded",
	})
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, rec.Status)
}

func TestLedger_ApplySwapToPortfolio(t *testing.T) {
	client := setupTestRedis(t)
	defer cleanupTestRedis(t, client)

	l, err := New(client, nil)
	require.NoError(t, err)

	ctx := context.Background()
	wallet := "testwallet"

	// Seed with a synced balance.
	_, err = l.SyncBalance(ctx, wallet, "SOL", 1.0)
	require.NoError(t, err)

	p, err := l.ApplySwapToPortfolio(ctx, SwapInput{
		Wallet:     wallet,
		FromToken:  "SOL",
		ToToken:    "USDC",
		FromAmount: 2.5, // more than held: floors at zero
		ToAmount:   140,
	})
	require.NoError(t, err)
	assert.Equal(t, 0.0, p.Balances["SOL"])
	assert.Equal(t, 140.0, p.Balances["USDC"])
	assert.Equal(t, SourceSwap, p.LastSource)

	// The update persisted.
	store := l.Load(ctx, wallet)
	assert.Equal(t, 140.0, store.Portfolio.Balances["USDC"])
}

func TestLedger_NamespacesDoNotBleed(t *testing.T) {
	client := setupTestRedis(t)
	defer cleanupTestRedis(t, client)

	l, err := New(client, nil)
	require.NoError(t, err)

	ctx := context.Background()

	_, err = l.SyncBalance(ctx, "walletA", "SOL", 5)
	require.NoError(t, err)
	_, err = l.SyncBalance(ctx, "", "SOL", 1)
	require.NoError(t, err)

	a := l.Load(ctx, "walletA")
	guest := l.Load(ctx, "")
	assert.Equal(t, 5.0, a.Portfolio.Balances["SOL"])
	assert.Equal(t, 1.0, guest.Portfolio.Balances["SOL"])

	// A namespace unknown to either is empty.
	other := l.Load(ctx, "walletB")
	assert.Nil(t, other.Portfolio)
}

func TestLedger_Reset(t *testing.T) {
	client := setupTestRedis(t)
	defer cleanupTestRedis(t, client)

	l, err := New(client, nil)
	require.NoError(t, err)

	ctx := context.Background()

	_, err = l.SyncBalance(ctx, "wallet", "SOL", 3)
	require.NoError(t, err)
	require.NoError(t, l.Reset(ctx, "wallet"))

	store := l.Load(ctx, "wallet")
	assert.Equal(t, EmptyStore(), store)
}
