package alert

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/HerbHall/tpminsight/internal/store"
	"github.com/HerbHall/tpminsight/pkg/analytics"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func testAlertStore(t *testing.T) *AlertStore {
	t.Helper()
	db, err := store.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, db.Migrate(context.Background(), "alert", Migrations()))
	return NewAlertStore(db.DB())
}

func defaultRegistry(t *testing.T) *RuleRegistry {
	t.Helper()
	r, err := NewRuleRegistry(DefaultRules()...)
	require.NoError(t, err)
	return r
}

// recordingDispatcher records every dispatched action and can fail or block
// selected ones.
type recordingDispatcher struct {
	mu    sync.Mutex
	calls []dispatchCall
	fail  map[string]error
	block map[string]bool
}

type dispatchCall struct {
	action  string
	alertID string
	ctxErr  error
}

func (d *recordingDispatcher) Dispatch(ctx context.Context, action string, a *analytics.Alert) error {
	d.mu.Lock()
	d.calls = append(d.calls, dispatchCall{action: action, alertID: a.ID, ctxErr: ctx.Err()})
	blocked := d.block[action]
	err := d.fail[action]
	d.mu.Unlock()

	if blocked {
		<-ctx.Done()
		return ctx.Err()
	}
	return err
}

func (d *recordingDispatcher) actions() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, 0, len(d.calls))
	for _, c := range d.calls {
		out = append(out, c.action)
	}
	return out
}

// stubHistory is a History whose calls can be made to fail.
type stubHistory struct {
	mu        sync.Mutex
	appended  []analytics.Alert
	appendErr error
	last      *time.Time
	lastErr   error
}

func (h *stubHistory) AppendAlert(_ context.Context, a *analytics.Alert) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.appendErr != nil {
		return h.appendErr
	}
	h.appended = append(h.appended, *a)
	return nil
}

func (h *stubHistory) LastTriggered(context.Context, string, string) (*time.Time, error) {
	return h.last, h.lastErr
}

// lagHistory answers LastTriggered from its own appends after a short delay,
// widening the gap between a cooldown check and the append that follows it.
type lagHistory struct {
	mu       sync.Mutex
	appended []analytics.Alert
	lag      time.Duration
}

func (h *lagHistory) AppendAlert(_ context.Context, a *analytics.Alert) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.appended = append(h.appended, *a)
	return nil
}

func (h *lagHistory) LastTriggered(_ context.Context, tenantID, ruleID string) (*time.Time, error) {
	time.Sleep(h.lag)
	h.mu.Lock()
	defer h.mu.Unlock()
	var last *time.Time
	for i := range h.appended {
		a := h.appended[i]
		if a.TenantID == tenantID && a.RuleID == ruleID && (last == nil || a.TriggeredAt.After(*last)) {
			t := a.TriggeredAt
			last = &t
		}
	}
	return last, nil
}

func (h *lagHistory) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.appended)
}

var errBoom = errors.New("boom")

func ruleIDs(alerts []analytics.Alert) []string {
	out := make([]string, 0, len(alerts))
	for i := range alerts {
		out = append(out, alerts[i].RuleID)
	}
	return out
}
