package insight

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/HerbHall/tpminsight/pkg/analytics"
	"github.com/HerbHall/tpminsight/pkg/core"
	"github.com/HerbHall/tpminsight/pkg/roles"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Options narrows a single pipeline run.
type Options struct {
	Types                  []string           `json:"types,omitempty"`
	TimeRangeDays          int                `json:"time_range_days,omitempty"`
	IncludeRecommendations bool               `json:"include_recommendations"`
	Priority               analytics.Priority `json:"priority,omitempty"`
	Cadence                analytics.Cadence  `json:"cadence,omitempty"`
}

// InsightWriter replaces a tenant's stored insight set.
type InsightWriter interface {
	ReplaceInsights(ctx context.Context, tenantID string, insights []analytics.Insight) error
}

// PipelineDeps are the collaborators of a Pipeline. Predictions, Recommender
// and Bus are optional.
type PipelineDeps struct {
	Logger      *zap.Logger
	Config      Config
	Templates   *TemplateRegistry
	Data        roles.DataSource
	Predictions roles.PredictionProvider
	Recommender *Recommender
	Writer      InsightWriter
	Bus         core.Publisher
	Now         func() time.Time
}

// Pipeline runs templates for a tenant, ranks the results and stores them.
type Pipeline struct {
	logger      *zap.Logger
	cfg         Config
	templates   *TemplateRegistry
	analyzer    *Analyzer
	data        roles.DataSource
	predictions roles.PredictionProvider
	recommender *Recommender
	writer      InsightWriter
	bus         core.Publisher
	now         func() time.Time

	locks         tenantLocks
	lastGenerated atomic.Pointer[time.Time]
}

// NewPipeline creates a Pipeline.
func NewPipeline(deps PipelineDeps) *Pipeline {
	cfg := deps.Config
	cfg.normalize()
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	templates := deps.Templates
	if templates == nil {
		templates, _ = NewTemplateRegistry()
	}
	return &Pipeline{
		logger:      logger,
		cfg:         cfg,
		templates:   templates,
		analyzer:    NewAnalyzer(cfg),
		data:        deps.Data,
		predictions: deps.Predictions,
		recommender: deps.Recommender,
		writer:      deps.Writer,
		bus:         deps.Bus,
		now:         now,
	}
}

// Templates returns the registry the pipeline runs.
func (p *Pipeline) Templates() *TemplateRegistry {
	return p.templates
}

// LastGenerated returns when the pipeline last completed a stored run, or nil.
func (p *Pipeline) LastGenerated() *time.Time {
	return p.lastGenerated.Load()
}

// GenerateInsights runs every template selected by opts for tenantID and
// replaces the tenant's stored insights with the ranked result.
//
// Template failures, panics and timeouts are logged and the template is
// skipped. The returned report is never nil; a non-nil error means the run was
// cancelled or the result could not be stored.
func (p *Pipeline) GenerateInsights(ctx context.Context, tenantID string, opts Options) (*analytics.InsightReport, error) {
	start := p.now()
	report := &analytics.InsightReport{
		TenantID: tenantID,
		Insights: []analytics.Insight{},
		Metadata: Summarize(nil, start),
	}

	release, err := p.locks.acquire(ctx, tenantID)
	if err != nil {
		return report, fmt.Errorf("wait for tenant %s: %w", tenantID, err)
	}
	defer release()

	if opts.TimeRangeDays <= 0 {
		opts.TimeRangeDays = p.cfg.TimeRangeDays
	}
	selected := p.templates.Filter(opts.Types, opts.Priority, opts.Cadence)
	in := Input{
		TenantID:    tenantID,
		RangeDays:   opts.TimeRangeDays,
		HorizonDays: p.cfg.ForecastHorizonDays,
		MinPoints:   p.cfg.MinPoints,
		Now:         start,
		Analyzer:    p.analyzer,
		Data:        p.data,
		Predictions: p.predictions,
	}

	results := make([]*analytics.Insight, len(selected))
	var g errgroup.Group
	g.SetLimit(p.cfg.MaxParallel)
	for i, t := range selected {
		g.Go(func() error {
			ins := p.runTemplate(ctx, t, in)
			if ins != nil && opts.IncludeRecommendations && p.recommender != nil {
				ins.Recommendations = p.recommender.Recommend(ctx, tenantID, ins)
			}
			results[i] = ins
			return nil
		})
	}
	_ = g.Wait() // runTemplate never returns an error to the group

	insights := make([]analytics.Insight, 0, len(results))
	for _, ins := range results {
		if ins != nil {
			insights = append(insights, *ins)
		}
	}
	Rank(insights)

	generatedAt := p.now()
	report.Insights = insights
	report.Metadata = Summarize(insights, generatedAt)

	if err := ctx.Err(); err != nil {
		return report, fmt.Errorf("generate insights for %s: %w", tenantID, err)
	}
	if p.writer != nil {
		if err := p.writer.ReplaceInsights(ctx, tenantID, insights); err != nil {
			return report, fmt.Errorf("store insights for %s: %w", tenantID, err)
		}
	}
	p.lastGenerated.Store(&generatedAt)
	pipelineDuration.Observe(generatedAt.Sub(start).Seconds())

	p.logger.Info("insights generated",
		zap.String("tenant_id", tenantID),
		zap.Int("templates", len(selected)),
		zap.Int("insights", len(insights)),
		zap.Duration("elapsed", generatedAt.Sub(start)),
	)

	if p.bus != nil {
		if err := p.bus.Publish(ctx, core.Event{
			Topic:     TopicInsightsGenerated,
			Source:    "insight",
			Timestamp: generatedAt,
			Payload:   report,
		}); err != nil {
			p.logger.Warn("publish insights event failed", zap.Error(err))
		}
	}
	return report, nil
}

type templateResult struct {
	insight *analytics.Insight
	err     error
}

// runTemplate executes one template with its own deadline. A template that
// errors, panics or overruns the deadline yields nil.
func (p *Pipeline) runTemplate(ctx context.Context, t Template, in Input) *analytics.Insight {
	tctx, cancel := context.WithTimeout(ctx, p.cfg.TemplateTimeout)
	defer cancel()

	done := make(chan templateResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- templateResult{err: fmt.Errorf("panic: %v", r)}
			}
		}()
		ins, err := t.Generator.Generate(tctx, in)
		done <- templateResult{insight: ins, err: err}
	}()

	log := p.logger.With(zap.String("tenant_id", in.TenantID), zap.String("template", t.Name))

	var res templateResult
	select {
	case res = <-done:
	case <-tctx.Done():
		res.err = tctx.Err()
	}

	switch {
	case res.err != nil:
		reason := "error"
		if errors.Is(res.err, context.DeadlineExceeded) {
			reason = "timeout"
		} else if errors.Is(res.err, context.Canceled) {
			reason = "cancelled"
		}
		templateFailures.WithLabelValues(t.Name, reason).Inc()
		log.Warn("insight template failed", zap.String("reason", reason), zap.Error(res.err))
		return nil
	case res.insight == nil:
		log.Debug("insight template produced no insight")
		return nil
	}

	ins := res.insight
	if ins.Type == "" {
		ins.Type = t.Name
	}
	ins.Template = t.Name
	ins.Priority = t.Priority
	ins.GeneratedAt = in.Now
	ins.Confidence = clamp01(ins.Confidence)
	insightsGenerated.WithLabelValues(t.Name).Inc()
	return ins
}

// Rank sorts insights by priority (high first), then confidence (highest
// first), then template name so the order never depends on completion order.
func Rank(insights []analytics.Insight) {
	slices.SortStableFunc(insights, func(a, b analytics.Insight) int {
		if c := cmp.Compare(b.Priority.Rank(), a.Priority.Rank()); c != 0 {
			return c
		}
		if c := cmp.Compare(b.Confidence, a.Confidence); c != 0 {
			return c
		}
		return cmp.Compare(a.Template, b.Template)
	})
}

// Summarize computes report metadata. AverageConfidence is 0 for no insights.
func Summarize(insights []analytics.Insight, generatedAt time.Time) analytics.ReportMetadata {
	md := analytics.ReportMetadata{
		TotalInsights: len(insights),
		GeneratedAt:   generatedAt,
	}
	var total float64
	for _, ins := range insights {
		total += ins.Confidence
		switch ins.Priority {
		case analytics.PriorityHigh:
			md.HighPriority++
		case analytics.PriorityMedium:
			md.MediumPriority++
		case analytics.PriorityLow:
			md.LowPriority++
		}
	}
	if len(insights) > 0 {
		md.AverageConfidence = total / float64(len(insights))
	}
	return md
}

// tenantLocks serializes pipeline runs per tenant. Waiting honours ctx.
type tenantLocks struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

func (l *tenantLocks) acquire(ctx context.Context, tenantID string) (release func(), err error) {
	l.mu.Lock()
	if l.slots == nil {
		l.slots = make(map[string]chan struct{})
	}
	slot, ok := l.slots[tenantID]
	if !ok {
		slot = make(chan struct{}, 1)
		l.slots[tenantID] = slot
	}
	l.mu.Unlock()

	select {
	case slot <- struct{}{}:
		return func() { <-slot }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
