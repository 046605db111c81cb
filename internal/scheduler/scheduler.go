// Package scheduler drives the periodic insight and alert jobs for every
// active tenant.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/HerbHall/tpminsight/internal/insight"
	"github.com/HerbHall/tpminsight/pkg/analytics"
	"github.com/HerbHall/tpminsight/pkg/roles"
	"go.uber.org/zap"
)

// Loop names.
const (
	LoopDaily    = "daily"
	LoopWeekly   = "weekly"
	LoopRealtime = "realtime"
)

// InsightGenerator runs the insight pipeline for a tenant.
type InsightGenerator interface {
	GenerateInsights(ctx context.Context, tenantID string, opts insight.Options) (*analytics.InsightReport, error)
}

// AlertChecker evaluates alert rules against a snapshot.
type AlertChecker interface {
	CheckAlerts(ctx context.Context, tenantID string, snapshot analytics.Snapshot) []analytics.Alert
}

// UrgentNotifier receives the alerts raised by a real-time check.
type UrgentNotifier interface {
	NotifyUrgent(ctx context.Context, tenantID string, alerts []analytics.Alert) error
}

// Deps are the collaborators of a Scheduler. Urgent and Clock are optional.
type Deps struct {
	Logger    *zap.Logger
	Config    Config
	Clock     Clock
	Tenants   roles.TenantDirectory
	Data      roles.DataSource
	Insights  InsightGenerator
	Alerts    AlertChecker
	Urgent    UrgentNotifier
	// IncludeRecommendations is passed to scheduled pipeline runs.
	IncludeRecommendations bool
}

// Scheduler runs the daily, weekly and real-time loops. Each loop owns a
// ticker; a tick fans the active tenants out to a bounded worker pool.
type Scheduler struct {
	logger *zap.Logger
	cfg    Config
	clock  Clock
	deps   Deps

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a scheduler. Call Start to begin the loops.
func New(deps Deps) *Scheduler {
	cfg := deps.Config
	cfg.normalize()
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = RealClock{}
	}
	return &Scheduler{logger: logger, cfg: cfg, clock: clock, deps: deps}
}

// Start launches the three loops. It returns immediately; calling Start on a
// running scheduler is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx != nil && s.ctx.Err() == nil {
		return
	}
	s.ctx, s.cancel = context.WithCancel(ctx)

	s.startLoop(LoopDaily, s.cfg.DailyInterval, s.runInsights(analytics.CadenceDaily))
	s.startLoop(LoopWeekly, s.cfg.WeeklyInterval, s.runInsights(analytics.CadenceWeekly))
	s.startLoop(LoopRealtime, s.cfg.RealtimeInterval, s.runRealtime)

	s.logger.Info("scheduler started",
		zap.Duration("daily_interval", s.cfg.DailyInterval),
		zap.Duration("weekly_interval", s.cfg.WeeklyInterval),
		zap.Duration("realtime_interval", s.cfg.RealtimeInterval),
		zap.Int("workers", s.cfg.Workers),
	)
}

// Stop cancels the loops and waits for in-flight tenant runs to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
}

// Running reports whether the loops are active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctx != nil && s.ctx.Err() == nil
}

// tenantJob processes one tenant for a loop.
type tenantJob func(ctx context.Context, tenantID string) error

func (s *Scheduler) startLoop(name string, interval time.Duration, job tenantJob) {
	ctx := s.ctx
	ticker := s.clock.NewTicker(interval)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer ticker.Stop()

		if s.cfg.RunOnStart {
			s.tick(ctx, name, job)
		}
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C():
				s.tick(ctx, name, job)
			}
		}
	}()
}

// RunOnce runs one tick of the named loop outside the schedule.
func (s *Scheduler) RunOnce(ctx context.Context, loop string) error {
	var job tenantJob
	switch loop {
	case LoopDaily:
		job = s.runInsights(analytics.CadenceDaily)
	case LoopWeekly:
		job = s.runInsights(analytics.CadenceWeekly)
	case LoopRealtime:
		job = s.runRealtime
	default:
		return fmt.Errorf("unknown loop %q", loop)
	}
	s.tick(ctx, loop, job)
	return nil
}

// tick runs job for every active tenant and returns when all have finished.
// A directory failure skips the tick.
func (s *Scheduler) tick(ctx context.Context, loop string, job tenantJob) {
	start := s.clock.Now()
	defer func() {
		tickDuration.WithLabelValues(loop).Observe(s.clock.Now().Sub(start).Seconds())
	}()

	tenants, err := s.deps.Tenants.ListActiveTenants(ctx)
	if err != nil {
		skippedTicks.WithLabelValues(loop).Inc()
		s.logger.Warn("scheduler: failed to list tenants, skipping tick",
			zap.String("loop", loop),
			zap.Error(err),
		)
		return
	}
	if len(tenants) == 0 {
		return
	}

	// Semaphore-based worker pool.
	sem := make(chan struct{}, s.cfg.Workers)
	var wg sync.WaitGroup

dispatch:
	for _, tenantID := range tenants {
		select {
		case <-ctx.Done():
			break dispatch
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(tenantID string) {
			defer wg.Done()
			defer func() { <-sem }()
			s.runTenant(ctx, loop, tenantID, job)
		}(tenantID)
	}

	wg.Wait()
}

func (s *Scheduler) runTenant(ctx context.Context, loop, tenantID string, job tenantJob) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.TenantTimeout)
	defer cancel()

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		return job(ctx, tenantID)
	}()
	if err == nil {
		return
	}

	tenantFailures.WithLabelValues(loop).Inc()
	level := s.logger.Warn
	if errors.Is(err, context.Canceled) {
		level = s.logger.Debug
	}
	level("scheduler: tenant run failed",
		zap.String("loop", loop),
		zap.String("tenant_id", tenantID),
		zap.Error(err),
	)
}

func (s *Scheduler) runInsights(cadence analytics.Cadence) tenantJob {
	return func(ctx context.Context, tenantID string) error {
		report, err := s.deps.Insights.GenerateInsights(ctx, tenantID, insight.Options{
			Cadence:                cadence,
			IncludeRecommendations: s.deps.IncludeRecommendations,
		})
		if err != nil {
			return err
		}
		s.logger.Debug("scheduled insights generated",
			zap.String("tenant_id", tenantID),
			zap.String("cadence", string(cadence)),
			zap.Int("insights", report.Metadata.TotalInsights),
		)
		return nil
	}
}

func (s *Scheduler) runRealtime(ctx context.Context, tenantID string) error {
	snap, err := s.deps.Data.Snapshot(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	alerts := s.deps.Alerts.CheckAlerts(ctx, tenantID, snap)
	if len(alerts) == 0 || s.deps.Urgent == nil {
		return nil
	}
	if err := s.deps.Urgent.NotifyUrgent(ctx, tenantID, alerts); err != nil {
		return fmt.Errorf("notify urgent: %w", err)
	}
	return nil
}
