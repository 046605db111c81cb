package insight

import (
	"cmp"
	"context"
	"slices"
	"strings"

	"github.com/HerbHall/tpminsight/pkg/analytics"
	"github.com/HerbHall/tpminsight/pkg/roles"
	"go.uber.org/zap"
)

// SourceHeuristic marks recommendations produced by the built-in rules.
const SourceHeuristic = "heuristic"

// Recommender attaches follow-up actions to insights. Built-in heuristics
// always apply; an optional provider contributes additional ranked items.
type Recommender struct {
	provider roles.RecommendationProvider
	limit    int
	logger   *zap.Logger
}

// NewRecommender creates a Recommender returning at most limit items per
// insight. provider may be nil.
func NewRecommender(provider roles.RecommendationProvider, limit int, logger *zap.Logger) *Recommender {
	if limit <= 0 {
		limit = DefaultConfig().MaxRecommendations
	}
	return &Recommender{provider: provider, limit: limit, logger: logger}
}

// Recommend returns the merged, de-duplicated and score-ordered
// recommendations for ins. Provider failures are logged and ignored.
func (r *Recommender) Recommend(ctx context.Context, tenantID string, ins *analytics.Insight) []analytics.Recommendation {
	recs := heuristics(ins)

	if r.provider != nil {
		extra, err := r.provider.Recommend(ctx, roles.RecommendationContext{
			TenantID:    tenantID,
			InsightType: ins.Type,
			Title:       ins.Title,
			Summary:     ins.Summary,
			Data:        ins.Data,
			Limit:       r.limit,
		})
		if err != nil {
			r.logger.Warn("recommendation provider failed",
				zap.String("tenant_id", tenantID),
				zap.String("insight_type", ins.Type),
				zap.Error(err),
			)
		}
		recs = append(recs, extra...)
	}

	return rankRecommendations(recs, r.limit)
}

// rankRecommendations drops duplicate actions (keeping the highest score),
// orders by score and truncates to limit.
func rankRecommendations(recs []analytics.Recommendation, limit int) []analytics.Recommendation {
	best := make(map[string]int, len(recs))
	out := make([]analytics.Recommendation, 0, len(recs))
	for _, rec := range recs {
		if strings.TrimSpace(rec.Action) == "" {
			continue
		}
		rec.Score = clamp01(rec.Score)
		key := strings.ToLower(strings.TrimSpace(rec.Action))
		if i, ok := best[key]; ok {
			if rec.Score > out[i].Score {
				out[i] = rec
			}
			continue
		}
		best[key] = len(out)
		out = append(out, rec)
	}
	slices.SortStableFunc(out, func(a, b analytics.Recommendation) int {
		return cmp.Compare(b.Score, a.Score)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func heuristic(action, rationale string, score float64) analytics.Recommendation {
	return analytics.Recommendation{Action: action, Rationale: rationale, Score: score, Source: SourceHeuristic}
}

// heuristics maps an insight to rule-of-thumb follow-ups.
func heuristics(ins *analytics.Insight) []analytics.Recommendation {
	str := func(key string) string {
		s, _ := ins.Data[key].(string)
		return s
	}
	num := func(key string) float64 {
		f, _ := ins.Data[key].(float64)
		return f
	}

	switch ins.Type {
	case TemplateRevenueTrend:
		switch str("direction") {
		case DirectionDecreasing:
			return []analytics.Recommendation{
				heuristic("Review underperforming promotions and reallocate spend", "Revenue is trending down", 0.9),
				heuristic("Check pricing against key competitors", "Falling revenue often follows a price gap", 0.7),
			}
		case DirectionIncreasing:
			return []analytics.Recommendation{
				heuristic("Secure inventory for top-selling products", "Growing revenue raises stock-out risk", 0.7),
			}
		}
	case TemplateChurnRisk:
		if num("percent_change") > 0 {
			return []analytics.Recommendation{
				heuristic("Launch a retention offer for high-risk customers", "Churn is predicted to rise", 0.9),
				heuristic("Have account managers contact at-risk accounts", "Early contact reduces churn", 0.75),
			}
		}
	case TemplateInventoryAnomaly:
		if _, ok := ins.Data["days_to_reorder_level"]; ok || ins.Urgency == LevelHigh {
			return []analytics.Recommendation{
				heuristic("Place a replenishment order", "Stock is at or approaching the reorder level", 0.95),
			}
		}
		return []analytics.Recommendation{
			heuristic("Audit recent stock movements", "Stock readings deviate from the norm", 0.6),
		}
	case TemplatePromotionEffectiveness:
		if num("correlation") < 0.4 {
			return []analytics.Recommendation{
				heuristic("Pause or redesign low-return promotions", "Spend does not translate into revenue", 0.8),
			}
		}
		return []analytics.Recommendation{
			heuristic("Extend the best-performing promotions", "Revenue tracks promotion spend", 0.75),
		}
	case TemplateDemandSeasonality:
		return []analytics.Recommendation{
			heuristic("Schedule promotions ahead of the weekly peak on "+str("peak_day"), "Demand repeats weekly", 0.7),
			heuristic("Align replenishment with the weekly demand cycle", "Avoid stock-outs at peak", 0.6),
		}
	case TemplatePricingOpportunity:
		if c, ok := ins.Data["price_demand_correlation"].(float64); ok && c <= -0.4 {
			return []analytics.Recommendation{
				heuristic("Test targeted discounts on price-sensitive products", "Demand responds to price", 0.7),
			}
		}
		return []analytics.Recommendation{
			heuristic("Trial a modest list-price increase", "Demand shows little price sensitivity", 0.6),
		}
	}
	return nil
}
