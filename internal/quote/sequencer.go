package quote

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/hamzarauf/swapdesk/internal/amm"
	"github.com/hamzarauf/swapdesk/internal/registry"
)

// Request describes one quote refresh.
type Request struct {
	Pool        *registry.PoolDescriptor
	AmountIn    uint64 // base units
	BaseToQuote bool
	SlippageBps uint16
}

// Sequencer issues quote requests and guarantees only the most recently
// issued request's result is ever applied. Each Refresh captures a
// monotonically increasing generation; a result is applied only if its
// generation is still current when the adapter resolves. Superseded
// results are dropped silently; the in-flight call is not aborted,
// its outcome is just discarded.
type Sequencer struct {
	adapter amm.Adapter
	logger  *logrus.Logger

	gen atomic.Uint64

	mu      sync.Mutex
	current *amm.Quote
	lastErr error
}

func NewSequencer(adapter amm.Adapter, logger *logrus.Logger) *Sequencer {
	if logger == nil {
		logger = logrus.New()
	}
	return &Sequencer{adapter: adapter, logger: logger}
}

// Refresh requests a fresh quote. The returned bool reports whether the
// result was applied; a superseded request returns (nil, false, nil).
// A non-positive amount short-circuits to "no quote" without calling
// the adapter.
func (s *Sequencer) Refresh(ctx context.Context, req Request) (*amm.Quote, bool, error) {
	gen := s.gen.Add(1)

	if req.AmountIn == 0 {
		s.mu.Lock()
		defer s.mu.Unlock()
		if gen != s.gen.Load() {
			return nil, false, nil
		}
		s.current = nil
		s.lastErr = nil
		return nil, true, nil
	}

	q, err := s.adapter.Quote(ctx, req.Pool, req.AmountIn, req.BaseToQuote, req.SlippageBps)

	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.gen.Load() {
		s.logger.WithFields(logrus.Fields{
			"generation": gen,
			"current":    s.gen.Load(),
		}).Debug("dropping superseded quote result")
		return nil, false, nil
	}

	if err != nil {
		s.current = nil
		s.lastErr = err
		return nil, true, err
	}

	s.current = q
	s.lastErr = nil
	return q, true, nil
}

// Current returns the visible quote and error state.
func (s *Sequencer) Current() (*amm.Quote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current, s.lastErr
}

// Reset clears all quote state, e.g. when the pair changes.
func (s *Sequencer) Reset() {
	s.gen.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = nil
	s.lastErr = nil
}
