package insight

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/HerbHall/tpminsight/internal/insight/correlation"
	"github.com/HerbHall/tpminsight/pkg/analytics"
	"github.com/HerbHall/tpminsight/pkg/roles"
)

// Series metric names read by the built-in templates.
const (
	MetricRevenue        = "revenue"
	MetricChurnRate      = "churn_rate"
	MetricStockLevel     = "stock_level"
	MetricPromotionSpend = "promotion_spend"
	MetricUnitsSold      = "units_sold"
	MetricAveragePrice   = "average_price"
)

// Built-in template names.
const (
	TemplateRevenueTrend           = "revenue_trend"
	TemplateChurnRisk              = "churn_risk"
	TemplateInventoryAnomaly       = "inventory_anomaly"
	TemplatePromotionEffectiveness = "promotion_effectiveness"
	TemplateDemandSeasonality      = "demand_seasonality"
	TemplatePricingOpportunity     = "pricing_opportunity"
)

// Impact and urgency levels.
const (
	LevelLow    = "low"
	LevelMedium = "medium"
	LevelHigh   = "high"
)

// DefaultTemplates returns the built-in templates. reorderLevel is the stock
// level the inventory template projects a stock-out against.
func DefaultTemplates(reorderLevel float64) []Template {
	return []Template{
		{
			Name:        TemplateRevenueTrend,
			Description: "Revenue direction, level shifts and short-term projection",
			Cadence:     analytics.CadenceDaily,
			Priority:    analytics.PriorityHigh,
			Generator:   GeneratorFunc(revenueTrend),
		},
		{
			Name:        TemplateChurnRisk,
			Description: "Predicted churn rate against the current rate",
			Cadence:     analytics.CadenceDaily,
			Priority:    analytics.PriorityHigh,
			Generator:   GeneratorFunc(churnRisk),
		},
		{
			Name:        TemplateInventoryAnomaly,
			Description: "Unusual stock movements and projected stock-outs",
			Cadence:     analytics.CadenceDaily,
			Priority:    analytics.PriorityMedium,
			Generator:   inventoryAnomaly{reorderLevel: reorderLevel},
		},
		{
			Name:        TemplatePromotionEffectiveness,
			Description: "How closely revenue follows promotion spend",
			Cadence:     analytics.CadenceWeekly,
			Priority:    analytics.PriorityMedium,
			Generator:   GeneratorFunc(promotionEffectiveness),
		},
		{
			Name:        TemplateDemandSeasonality,
			Description: "Weekly demand cycles and the expected next cycle",
			Cadence:     analytics.CadenceWeekly,
			Priority:    analytics.PriorityMedium,
			Generator:   GeneratorFunc(demandSeasonality),
		},
		{
			Name:        TemplatePricingOpportunity,
			Description: "Price trend and demand sensitivity to price",
			Cadence:     analytics.CadenceWeekly,
			Priority:    analytics.PriorityLow,
			Generator:   GeneratorFunc(pricingOpportunity),
		},
	}
}

// loadSeries fetches a metric and reports whether it has enough points.
func loadSeries(ctx context.Context, in Input, metric string) ([]analytics.Point, bool, error) {
	series, err := in.Data.Series(ctx, in.TenantID, metric, in.RangeDays)
	if err != nil {
		return nil, false, fmt.Errorf("load %s series: %w", metric, err)
	}
	return series, len(series) >= in.MinPoints, nil
}

func revenueTrend(ctx context.Context, in Input) (*analytics.Insight, error) {
	series, enough, err := loadSeries(ctx, in, MetricRevenue)
	if err != nil || !enough {
		return nil, err
	}
	a := in.Analyzer
	values := analytics.Values(series)
	slope := a.Trend(values)
	direction := a.Direction(slope, values)
	change := percentChange(values[0], values[len(values)-1])

	data := map[string]any{
		"slope":          slope,
		"direction":      direction,
		"percent_change": change,
		"current":        values[len(values)-1],
		"forecast":       a.Forecast(series, in.HorizonDays),
	}
	if shift := a.ChangePoint(values); shift != nil {
		data["level_shift"] = map[string]any{
			"date":      series[shift.Index].Timestamp,
			"direction": shift.Direction,
		}
	}

	urgency := LevelLow
	switch {
	case direction == DirectionDecreasing && change <= -10:
		urgency = LevelHigh
	case direction == DirectionDecreasing:
		urgency = LevelMedium
	}

	return &analytics.Insight{
		Type:       TemplateRevenueTrend,
		Title:      fmt.Sprintf("Revenue is %s", direction),
		Summary:    fmt.Sprintf("Revenue changed %+.1f%% over the last %d days.", change, in.RangeDays),
		Data:       data,
		Confidence: a.TrendConfidence(slope, values),
		Impact:     levelFor(math.Abs(change), 10, 20),
		Urgency:    urgency,
	}, nil
}

func churnRisk(ctx context.Context, in Input) (*analytics.Insight, error) {
	if in.Predictions == nil {
		return nil, nil
	}
	series, err := in.Data.Series(ctx, in.TenantID, MetricChurnRate, in.RangeDays)
	if err != nil {
		return nil, fmt.Errorf("load %s series: %w", MetricChurnRate, err)
	}
	if len(series) == 0 {
		return nil, nil
	}
	predicted, err := in.Predictions.Forecast(ctx, roles.PredictChurn, roles.PredictionParams{
		TenantID:    in.TenantID,
		HorizonDays: in.HorizonDays,
		HistoryDays: in.RangeDays,
	})
	if err != nil {
		return nil, fmt.Errorf("churn prediction: %w", err)
	}
	if len(predicted) == 0 {
		return nil, nil
	}

	current := series[len(series)-1].Value
	expected := mean(predicted)
	change := percentChange(current, expected)

	title := "Churn risk is steady"
	urgency := LevelLow
	switch {
	case change >= 10:
		title = "Churn risk is rising"
		urgency = LevelHigh
	case change > 0:
		title = "Churn risk is edging up"
		urgency = LevelMedium
	case change <= -10:
		title = "Churn risk is falling"
	}

	return &analytics.Insight{
		Type:  TemplateChurnRisk,
		Title: title,
		Summary: fmt.Sprintf("Churn is predicted at %.2f%% over the next %d days against %.2f%% today.",
			expected, in.HorizonDays, current),
		Data: map[string]any{
			"current_rate":   current,
			"predicted_rate": expected,
			"percent_change": change,
			"predicted":      predicted,
		},
		Confidence: in.Analyzer.PredictionConfidence(predicted),
		Impact:     levelFor(expected, 5, 10),
		Urgency:    urgency,
	}, nil
}

type inventoryAnomaly struct {
	reorderLevel float64
}

func (g inventoryAnomaly) Generate(ctx context.Context, in Input) (*analytics.Insight, error) {
	series, enough, err := loadSeries(ctx, in, MetricStockLevel)
	if err != nil || !enough {
		return nil, err
	}
	a := in.Analyzer
	values := analytics.Values(series)
	anomalies := a.Anomalies(series)
	current := values[len(values)-1]

	days, ok := a.StepsToLimit(values, g.reorderLevel)
	stockOut := ok && current > g.reorderLevel && days <= float64(in.HorizonDays)
	below := current <= g.reorderLevel
	if len(anomalies) == 0 && !stockOut && !below {
		return nil, nil
	}

	data := map[string]any{
		"current_level": current,
		"reorder_level": g.reorderLevel,
		"anomalies":     anomalies,
	}
	urgency := LevelLow
	var title, summary string
	switch {
	case below:
		title = "Stock is below the reorder level"
		summary = fmt.Sprintf("Stock stands at %.0f units, under the reorder level of %.0f.", current, g.reorderLevel)
		urgency = LevelHigh
	case stockOut:
		data["days_to_reorder_level"] = days
		title = "Stock will reach the reorder level soon"
		summary = fmt.Sprintf("At the current draw-down stock reaches %.0f units in %.1f days.", g.reorderLevel, days)
		urgency = LevelHigh
		if days > float64(in.HorizonDays)/2 {
			urgency = LevelMedium
		}
	default:
		title = "Unusual stock movements detected"
		summary = fmt.Sprintf("%d stock readings deviate sharply from the %d-day norm.", len(anomalies), in.RangeDays)
		urgency = LevelMedium
	}

	confidence := a.TrendConfidence(a.Trend(values), values)
	if len(anomalies) > 0 {
		var maxZ float64
		for _, p := range anomalies {
			maxZ = math.Max(maxZ, math.Abs(p.ZScore))
		}
		confidence = math.Max(confidence, clamp01(0.5+0.1*maxZ))
	}

	return &analytics.Insight{
		Type:       TemplateInventoryAnomaly,
		Title:      title,
		Summary:    summary,
		Data:       data,
		Confidence: confidence,
		Impact:     levelFor(float64(len(anomalies)), 1, 3),
		Urgency:    urgency,
	}, nil
}

func promotionEffectiveness(ctx context.Context, in Input) (*analytics.Insight, error) {
	spend, enough, err := loadSeries(ctx, in, MetricPromotionSpend)
	if err != nil || !enough {
		return nil, err
	}
	revenue, enough, err := loadSeries(ctx, in, MetricRevenue)
	if err != nil || !enough {
		return nil, err
	}
	s, r := alignTail(analytics.Values(spend), analytics.Values(revenue))
	totalSpend := sum(s)
	if totalSpend == 0 {
		return nil, nil
	}

	a := in.Analyzer
	coef := a.Correlation(s, r)
	strength := correlation.Strength(coef)
	roi := sum(r) / totalSpend

	title := "Promotion spend shows little effect on revenue"
	urgency := LevelMedium
	switch {
	case coef >= 0.4:
		title = "Promotion spend is driving revenue"
		urgency = LevelLow
	case coef <= -0.4:
		title = "Revenue falls as promotion spend rises"
		urgency = LevelHigh
	}

	return &analytics.Insight{
		Type:  TemplatePromotionEffectiveness,
		Title: title,
		Summary: fmt.Sprintf("Revenue and promotion spend show a %s correlation (r=%.2f); each unit of spend returned %.2f in revenue.",
			strength, coef, roi),
		Data: map[string]any{
			"correlation":   coef,
			"strength":      strength,
			"revenue_ratio": roi,
			"spend_slope":   a.Trend(s),
			"revenue_slope": a.Trend(r),
			"points":        len(s),
		},
		Confidence: clamp01(math.Abs(coef) * float64(len(s)) / float64(len(s)+5)),
		Impact:     levelFor(math.Abs(coef), 0.4, 0.7),
		Urgency:    urgency,
	}, nil
}

func demandSeasonality(ctx context.Context, in Input) (*analytics.Insight, error) {
	series, enough, err := loadSeries(ctx, in, MetricUnitsSold)
	if err != nil || !enough {
		return nil, err
	}
	a := in.Analyzer
	values := analytics.Values(series)
	season := a.Seasonality(values)
	if !season.Detected {
		return nil, nil
	}

	data := map[string]any{
		"strength":   season.Strength,
		"lag":        season.Lag,
		"peak_day":   peakWeekday(series).String(),
		"trough_day": troughWeekday(series).String(),
	}
	if in.Predictions != nil {
		predicted, err := in.Predictions.Forecast(ctx, roles.PredictDemand, roles.PredictionParams{
			TenantID:    in.TenantID,
			HorizonDays: in.HorizonDays,
			HistoryDays: in.RangeDays,
		})
		if err != nil {
			return nil, fmt.Errorf("demand prediction: %w", err)
		}
		data["predicted_demand"] = predicted
	} else {
		data["predicted_demand"] = a.Forecast(series, in.HorizonDays)
	}

	return &analytics.Insight{
		Type:  TemplateDemandSeasonality,
		Title: "Demand follows a weekly cycle",
		Summary: fmt.Sprintf("Units sold repeat every %d days (strength %.2f), peaking on %s.",
			season.Lag, season.Strength, data["peak_day"]),
		Data:       data,
		Confidence: season.Strength,
		Impact:     levelFor(season.Strength, 0.5, 0.8),
		Urgency:    LevelLow,
	}, nil
}

func pricingOpportunity(ctx context.Context, in Input) (*analytics.Insight, error) {
	prices, enough, err := loadSeries(ctx, in, MetricAveragePrice)
	if err != nil || !enough {
		return nil, err
	}
	a := in.Analyzer
	values := analytics.Values(prices)
	slope := a.Trend(values)

	data := map[string]any{
		"current_price":   values[len(values)-1],
		"price_slope":     slope,
		"price_direction": a.Direction(slope, values),
	}

	confidence := a.TrendConfidence(slope, values)
	elasticity := math.NaN()
	units, enough, err := loadSeries(ctx, in, MetricUnitsSold)
	if err != nil {
		return nil, err
	}
	if enough {
		p, u := alignTail(values, analytics.Values(units))
		elasticity = a.Correlation(p, u)
		data["price_demand_correlation"] = elasticity
		confidence = clamp01((confidence + math.Abs(elasticity)) / 2)
	}
	if in.Predictions != nil {
		predicted, err := in.Predictions.Forecast(ctx, roles.PredictPrice, roles.PredictionParams{
			TenantID:    in.TenantID,
			HorizonDays: in.HorizonDays,
			HistoryDays: in.RangeDays,
		})
		if err != nil {
			return nil, fmt.Errorf("price prediction: %w", err)
		}
		if len(predicted) > 0 {
			data["predicted_price"] = mean(predicted)
		}
	}

	title := "Prices are holding without a clear demand response"
	summary := "Average price and units sold move independently over the period."
	switch {
	case math.IsNaN(elasticity):
		title = fmt.Sprintf("Average price is %s", data["price_direction"])
		summary = fmt.Sprintf("Average price moved %+.2f per day over the last %d days.", slope, in.RangeDays)
	case elasticity <= -0.4:
		title = "Demand is sensitive to price"
		summary = fmt.Sprintf("Units sold fall as price rises (r=%.2f); targeted discounts should lift volume.", elasticity)
	case elasticity > -0.2:
		title = "Room to raise prices"
		summary = fmt.Sprintf("Units sold barely react to price (r=%.2f); a modest increase should hold volume.", elasticity)
	}

	return &analytics.Insight{
		Type:       TemplatePricingOpportunity,
		Title:      title,
		Summary:    summary,
		Data:       data,
		Confidence: confidence,
		Impact:     LevelMedium,
		Urgency:    LevelLow,
	}, nil
}

// percentChange returns the change from a to b in percent, or 0 when a is 0.
func percentChange(a, b float64) float64 {
	if a == 0 {
		return 0
	}
	return (b - a) / math.Abs(a) * 100
}

// levelFor buckets v against ascending medium and high thresholds.
func levelFor(v, medium, high float64) string {
	switch {
	case v >= high:
		return LevelHigh
	case v >= medium:
		return LevelMedium
	default:
		return LevelLow
	}
}

// alignTail trims two series to their common most recent length.
func alignTail(a, b []float64) ([]float64, []float64) {
	n := min(len(a), len(b))
	return a[len(a)-n:], b[len(b)-n:]
}

func sum(values []float64) float64 {
	var s float64
	for _, v := range values {
		s += v
	}
	return s
}

// weekdayMeans averages values per weekday. Days without observations are
// reported as absent.
func weekdayMeans(series []analytics.Point) (means [7]float64, seen [7]bool) {
	var counts [7]int
	for _, p := range series {
		d := p.Timestamp.Weekday()
		means[d] += p.Value
		counts[d]++
	}
	for d := range means {
		if counts[d] > 0 {
			means[d] /= float64(counts[d])
			seen[d] = true
		}
	}
	return means, seen
}

func peakWeekday(series []analytics.Point) time.Weekday {
	return extremeWeekday(series, func(a, b float64) bool { return a > b })
}

func troughWeekday(series []analytics.Point) time.Weekday {
	return extremeWeekday(series, func(a, b float64) bool { return a < b })
}

func extremeWeekday(series []analytics.Point, better func(a, b float64) bool) time.Weekday {
	means, seen := weekdayMeans(series)
	best := time.Weekday(-1)
	for d := time.Sunday; d <= time.Saturday; d++ {
		if !seen[d] {
			continue
		}
		if best < 0 || better(means[d], means[best]) {
			best = d
		}
	}
	if best < 0 {
		return time.Sunday
	}
	return best
}
