package feeds

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// FetchFunc performs one refresh of a feed's data. It must honor ctx
// cancellation: a superseding refresh for the same feed cancels it.
type FetchFunc func(ctx context.Context) error

// feed tracks one independently polled data source. Feeds fail and
// recover on their own; one feed's error never pauses another's ticker.
type feed struct {
	name     string
	interval time.Duration
	fetch    FetchFunc

	mu          sync.Mutex
	loading     bool
	gen         uint64
	cancel      context.CancelFunc
	lastErr     error
	lastSuccess time.Time
}

// Poller drives a set of named feeds, each on its own interval.
type Poller struct {
	logger *logrus.Logger

	mu      sync.Mutex
	feeds   map[string]*feed
	order   []string
	running bool
	stop    context.CancelFunc
	wg      sync.WaitGroup
}

func NewPoller(logger *logrus.Logger) *Poller {
	if logger == nil {
		logger = logrus.New()
	}
	return &Poller{
		logger: logger,
		feeds:  make(map[string]*feed),
	}
}

// Register adds a feed. Must be called before Start.
func (p *Poller) Register(name string, interval time.Duration, fetch FetchFunc) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return fmt.Errorf("cannot register feed %q while running", name)
	}
	if _, ok := p.feeds[name]; ok {
		return fmt.Errorf("feed %q already registered", name)
	}
	if interval <= 0 {
		return fmt.Errorf("feed %q needs a positive interval", name)
	}
	if fetch == nil {
		return fmt.Errorf("feed %q needs a fetch function", name)
	}

	p.feeds[name] = &feed{name: name, interval: interval, fetch: fetch}
	p.order = append(p.order, name)
	return nil
}

// Start launches one polling loop per registered feed. Each loop fetches
// immediately, then on its ticker, until ctx is cancelled or Stop is
// called.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("poller already running")
	}
	if len(p.feeds) == 0 {
		p.mu.Unlock()
		return fmt.Errorf("no feeds registered")
	}
	p.running = true
	runCtx, cancel := context.WithCancel(ctx)
	p.stop = cancel
	feeds := make([]*feed, 0, len(p.order))
	for _, name := range p.order {
		feeds = append(feeds, p.feeds[name])
	}
	p.mu.Unlock()

	p.logger.WithField("feeds", p.FeedNames()).Info("starting feed polling")

	for _, f := range feeds {
		p.wg.Add(1)
		go p.runFeed(runCtx, f)
	}
	return nil
}

// Stop cancels all feed loops and waits for them to exit.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	stop := p.stop
	p.mu.Unlock()

	stop()
	p.wg.Wait()
}

func (p *Poller) runFeed(ctx context.Context, f *feed) {
	defer p.wg.Done()

	p.refreshFeed(ctx, f)

	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.refreshFeed(ctx, f)
		}
	}
}

// Refresh triggers an immediate fetch of one feed, replacing any fetch
// of that feed still in flight. Other feeds are untouched, so a caller
// can retry a failed feed without disturbing healthy ones.
func (p *Poller) Refresh(ctx context.Context, name string) error {
	p.mu.Lock()
	f, ok := p.feeds[name]
	p.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown feed %q", name)
	}

	p.refreshFeed(ctx, f)

	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastErr
}

// refreshFeed runs one fetch. A newer fetch for the same feed cancels
// this one and its result is discarded; results only apply if this
// fetch is still the feed's latest.
func (p *Poller) refreshFeed(ctx context.Context, f *feed) {
	f.mu.Lock()
	if f.cancel != nil {
		f.cancel()
	}
	fetchCtx, cancel := context.WithCancel(ctx)
	f.cancel = cancel
	f.gen++
	gen := f.gen
	f.loading = true
	f.mu.Unlock()

	err := f.fetch(fetchCtx)
	cancel()

	f.mu.Lock()
	defer f.mu.Unlock()
	if gen != f.gen {
		return // superseded by a newer fetch
	}
	f.loading = false
	if err != nil {
		f.lastErr = err
		p.logger.WithError(err).WithField("feed", f.name).Warn("feed refresh failed")
		return
	}
	f.lastErr = nil
	f.lastSuccess = time.Now()
}

// FeedStatus reports one feed's health.
type FeedStatus struct {
	Name        string        `json:"name"`
	Interval    time.Duration `json:"interval"`
	Loading     bool          `json:"loading"`
	Error       string        `json:"error,omitempty"`
	LastSuccess time.Time     `json:"last_success,omitempty"`
}

// Status describes all feeds plus a human-readable summary of which
// ones are currently refreshing, e.g. "updating price and balances".
type Status struct {
	Feeds   []FeedStatus `json:"feeds"`
	Message string       `json:"message,omitempty"`
}

func (p *Poller) Status() Status {
	p.mu.Lock()
	names := append([]string(nil), p.order...)
	feeds := make([]*feed, 0, len(names))
	for _, n := range names {
		feeds = append(feeds, p.feeds[n])
	}
	p.mu.Unlock()

	var out Status
	var updating []string
	for _, f := range feeds {
		f.mu.Lock()
		st := FeedStatus{
			Name:        f.name,
			Interval:    f.interval,
			Loading:     f.loading,
			LastSuccess: f.lastSuccess,
		}
		if f.lastErr != nil {
			st.Error = f.lastErr.Error()
		}
		if f.loading {
			updating = append(updating, f.name)
		}
		f.mu.Unlock()
		out.Feeds = append(out.Feeds, st)
	}

	if len(updating) > 0 {
		out.Message = "updating " + joinNames(updating)
	}
	return out
}

// FeedNames returns the registered feed names in registration order.
func (p *Poller) FeedNames() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.order...)
}

func joinNames(names []string) string {
	switch len(names) {
	case 0:
		return ""
	case 1:
		return names[0]
	case 2:
		return names[0] + " and " + names[1]
	default:
		return strings.Join(names[:len(names)-1], ", ") + " and " + names[len(names)-1]
	}
}
