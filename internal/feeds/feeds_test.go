package feeds

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterValidation(t *testing.T) {
	p := NewPoller(nil)
	ok := func(ctx context.Context) error { return nil }

	require.NoError(t, p.Register("price", time.Second, ok))
	assert.Error(t, p.Register("price", time.Second, ok), "duplicate name")
	assert.Error(t, p.Register("bad", 0, ok), "non-positive interval")
	assert.Error(t, p.Register("bad", time.Second, nil), "nil fetch")
}

func TestFeedsFailIndependently(t *testing.T) {
	p := NewPoller(nil)

	var priceCalls, balanceCalls atomic.Int32
	require.NoError(t, p.Register("price", time.Hour, func(ctx context.Context) error {
		priceCalls.Add(1)
		return fmt.Errorf("price source down")
	}))
	require.NoError(t, p.Register("balances", time.Hour, func(ctx context.Context) error {
		balanceCalls.Add(1)
		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, p.Start(ctx))

	// Both feeds fetch immediately on start.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if priceCalls.Load() >= 1 && balanceCalls.Load() >= 1 {
			break
		}
		time.Sleep(time.Millisecond)
	}
	p.Stop()

	st := p.Status()
	require.Len(t, st.Feeds, 2)
	byName := map[string]FeedStatus{}
	for _, f := range st.Feeds {
		byName[f.Name] = f
	}

	// The price feed records its error while balances stays healthy.
	assert.Equal(t, "price source down", byName["price"].Error)
	assert.Empty(t, byName["balances"].Error)
	assert.False(t, byName["balances"].LastSuccess.IsZero())
}

func TestRefreshRetriesOnlyThatFeed(t *testing.T) {
	p := NewPoller(nil)

	var healthy atomic.Bool
	var historyCalls, priceCalls atomic.Int32
	require.NoError(t, p.Register("history", time.Hour, func(ctx context.Context) error {
		historyCalls.Add(1)
		if !healthy.Load() {
			return fmt.Errorf("archive unavailable")
		}
		return nil
	}))
	require.NoError(t, p.Register("price", time.Hour, func(ctx context.Context) error {
		priceCalls.Add(1)
		return nil
	}))

	// A direct refresh does not require Start.
	require.Error(t, p.Refresh(context.Background(), "history"))
	require.EqualValues(t, 1, historyCalls.Load())

	healthy.Store(true)
	require.NoError(t, p.Refresh(context.Background(), "history"))
	require.EqualValues(t, 2, historyCalls.Load())

	// The sibling feed was never touched.
	assert.EqualValues(t, 0, priceCalls.Load())

	assert.Error(t, p.Refresh(context.Background(), "nope"))
}

func TestNewerFetchSupersedesOlder(t *testing.T) {
	p := NewPoller(nil)

	release := make(chan struct{})
	var calls atomic.Int32
	require.NoError(t, p.Register("price", time.Hour, func(ctx context.Context) error {
		n := calls.Add(1)
		if n == 1 {
			// First fetch hangs until released, then reports failure.
			select {
			case <-release:
			case <-ctx.Done():
			}
			return fmt.Errorf("stale failure")
		}
		return nil
	}))

	done := make(chan struct{})
	go func() {
		_ = p.Refresh(context.Background(), "price")
		close(done)
	}()
	for calls.Load() < 1 {
		time.Sleep(time.Millisecond)
	}

	// Second refresh cancels and supersedes the first.
	require.NoError(t, p.Refresh(context.Background(), "price"))
	close(release)
	<-done

	// The stale failure was discarded; the feed reports healthy.
	st := p.Status()
	require.Len(t, st.Feeds, 1)
	assert.Empty(t, st.Feeds[0].Error)
}

func TestStatusMessageListsUpdatingFeeds(t *testing.T) {
	p := NewPoller(nil)

	block := make(chan struct{})
	defer close(block)
	blocking := func(ctx context.Context) error {
		select {
		case <-block:
		case <-ctx.Done():
		}
		return nil
	}

	require.NoError(t, p.Register("price", time.Hour, blocking))
	require.NoError(t, p.Register("balances", time.Hour, blocking))
	require.NoError(t, p.Register("history", time.Hour, blocking))

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, p.Start(ctx))

	// Wait until all three report loading.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		st := p.Status()
		loading := 0
		for _, f := range st.Feeds {
			if f.Loading {
				loading++
			}
		}
		if loading == 3 {
			break
		}
		time.Sleep(time.Millisecond)
	}

	st := p.Status()
	assert.Equal(t, "updating price, balances and history", st.Message)

	cancel()
	p.Stop()
}

func TestJoinNames(t *testing.T) {
	assert.Equal(t, "", joinNames(nil))
	assert.Equal(t, "price", joinNames([]string{"price"}))
	assert.Equal(t, "price and balances", joinNames([]string{"price", "balances"}))
	assert.Equal(t, "price, balances and history", joinNames([]string{"price", "balances", "history"}))
}
