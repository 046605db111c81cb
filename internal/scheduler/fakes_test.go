package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/HerbHall/tpminsight/internal/insight"
	"github.com/HerbHall/tpminsight/pkg/analytics"
)

// fakeClock hands out manually fired tickers.
type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*fakeTicker
}

type fakeTicker struct {
	d       time.Duration
	c       chan time.Time
	stopped bool
}

func (t *fakeTicker) C() <-chan time.Time { return t.c }
func (t *fakeTicker) Stop()               { t.stopped = true }

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) NewTicker(d time.Duration) Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTicker{d: d, c: make(chan time.Time, 1)}
	c.tickers = append(c.tickers, t)
	return t
}

func (c *fakeClock) tickerCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tickers)
}

// fire delivers one tick to every ticker with interval d.
func (c *fakeClock) fire(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	for _, t := range c.tickers {
		if t.d != d {
			continue
		}
		select {
		case t.c <- c.now:
		default: // drop like time.Ticker when the loop is busy
		}
	}
}

type fakeDirectory struct {
	mu      sync.Mutex
	tenants []string
	err     error
	calls   int
}

func (d *fakeDirectory) ListActiveTenants(context.Context) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	if d.err != nil {
		return nil, d.err
	}
	return append([]string(nil), d.tenants...), nil
}

func (d *fakeDirectory) setErr(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.err = err
}

type genCall struct {
	tenantID string
	cadence  analytics.Cadence
	recs     bool
}

// fakeGenerator records pipeline runs. Tenants named in panics panic, those
// in fails return an error and block makes every run wait for its context.
type fakeGenerator struct {
	mu     sync.Mutex
	calls  []genCall
	panics map[string]bool
	fails  map[string]bool
	block  bool

	active, peak int
}

func (g *fakeGenerator) GenerateInsights(ctx context.Context, tenantID string, opts insight.Options) (*analytics.InsightReport, error) {
	g.mu.Lock()
	g.calls = append(g.calls, genCall{tenantID: tenantID, cadence: opts.Cadence, recs: opts.IncludeRecommendations})
	g.active++
	if g.active > g.peak {
		g.peak = g.active
	}
	panics, fails, block := g.panics[tenantID], g.fails[tenantID], g.block
	g.mu.Unlock()

	defer func() {
		g.mu.Lock()
		g.active--
		g.mu.Unlock()
	}()

	report := &analytics.InsightReport{TenantID: tenantID}
	switch {
	case panics:
		panic("template exploded")
	case fails:
		return report, errors.New("store unavailable")
	case block:
		<-ctx.Done()
		return report, ctx.Err()
	}
	time.Sleep(5 * time.Millisecond)
	return report, nil
}

func (g *fakeGenerator) snapshot() []genCall {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]genCall(nil), g.calls...)
}

func (g *fakeGenerator) peakConcurrency() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.peak
}

type fakeData struct {
	snaps map[string]analytics.Snapshot
}

func (d *fakeData) Snapshot(_ context.Context, tenantID string) (analytics.Snapshot, error) {
	s, ok := d.snaps[tenantID]
	if !ok {
		return nil, errors.New("no data")
	}
	return s, nil
}

func (d *fakeData) Series(context.Context, string, string, int) ([]analytics.Point, error) {
	return nil, nil
}

// fakeChecker raises one alert when the snapshot's stockLevel is below 100.
type fakeChecker struct {
	mu    sync.Mutex
	calls int
}

func (c *fakeChecker) CheckAlerts(_ context.Context, tenantID string, snap analytics.Snapshot) []analytics.Alert {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	if v, ok := snap["stockLevel"]; ok && v < 100 {
		return []analytics.Alert{{ID: tenantID + "-alert", RuleID: "low_inventory", TenantID: tenantID}}
	}
	return nil
}

func (c *fakeChecker) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

type fakeUrgent struct {
	mu      sync.Mutex
	tenants []string
}

func (u *fakeUrgent) NotifyUrgent(_ context.Context, tenantID string, alerts []analytics.Alert) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.tenants = append(u.tenants, tenantID)
	return nil
}

func (u *fakeUrgent) notified() []string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]string(nil), u.tenants...)
}
