package insight

import (
	"context"
	"errors"
	"testing"

	"github.com/HerbHall/tpminsight/pkg/analytics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countRules int

func (c countRules) Len() int { return int(c) }

type countAlerts struct {
	n   int
	err error
}

func (c countAlerts) CountAlerts(context.Context) (int, error) { return c.n, c.err }

func TestEngine_GetInsightMetrics(t *testing.T) {
	s := testStore(t)
	p := newTestPipeline(t, s,
		tmpl("a", analytics.PriorityHigh, fixed(analytics.Insight{Confidence: 0.6})),
		tmpl("b", analytics.PriorityLow, fixed(analytics.Insight{Confidence: 0.9})),
		tmpl("c", analytics.PriorityLow, GeneratorFunc(func(context.Context, Input) (*analytics.Insight, error) { return nil, nil })),
	)
	e := NewEngine(p, s, countRules(5), countAlerts{n: 12})
	ctx := context.Background()

	before, err := e.GetInsightMetrics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, before.Templates)
	assert.Equal(t, 5, before.AlertRules)
	assert.Equal(t, 12, before.AlertHistory)
	assert.Zero(t, before.TotalInsights)
	assert.Nil(t, before.LastGenerated)

	_, err = p.GenerateInsights(ctx, "acme", Options{})
	require.NoError(t, err)

	after, err := e.GetInsightMetrics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, after.TotalInsights)
	assert.NotNil(t, after.LastGenerated)
}

func TestEngine_AlertCountError(t *testing.T) {
	e := NewEngine(newTestPipeline(t, nil), nil, nil, countAlerts{err: errors.New("locked")})
	_, err := e.GetInsightMetrics(context.Background())
	assert.Error(t, err)
}
