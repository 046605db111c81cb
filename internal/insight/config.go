package insight

import "time"

// Config holds configuration for insight generation.
type Config struct {
	TimeRangeDays          int           `mapstructure:"time_range_days"`
	TemplateTimeout        time.Duration `mapstructure:"template_timeout"`
	MaxParallel            int           `mapstructure:"max_parallel"`
	IncludeRecommendations bool          `mapstructure:"include_recommendations"`
	MaxRecommendations     int           `mapstructure:"max_recommendations"`
	MinPoints              int           `mapstructure:"min_points"`
	ForecastHorizonDays    int           `mapstructure:"forecast_horizon_days"`

	// Statistical parameters.
	SmoothingAlpha       float64 `mapstructure:"smoothing_alpha"`       // Exponential smoothing factor (0-1)
	SeasonalityLag       int     `mapstructure:"seasonality_lag"`       // Points per cycle (7 = weekly on daily data)
	SeasonalityThreshold float64 `mapstructure:"seasonality_threshold"` // Minimum autocorrelation reported as seasonal
	AnomalyK             float64 `mapstructure:"anomaly_k"`             // Standard deviations beyond which a point is anomalous
	StableSlopeRatio     float64 `mapstructure:"stable_slope_ratio"`    // |slope|/|mean| below which a trend is stable
	CUSUMDrift           float64 `mapstructure:"cusum_drift"`
	CUSUMThreshold       float64 `mapstructure:"cusum_threshold"`
	ReorderLevel         float64 `mapstructure:"reorder_level"` // Stock level treated as a stock-out risk

	// Holt-Winters parameters for the local prediction provider.
	HWAlpha float64 `mapstructure:"hw_alpha"`
	HWBeta  float64 `mapstructure:"hw_beta"`
	HWGamma float64 `mapstructure:"hw_gamma"`
}

// DefaultConfig returns sensible defaults for the insight module.
func DefaultConfig() Config {
	return Config{
		TimeRangeDays:          30,
		TemplateTimeout:        10 * time.Second,
		MaxParallel:            4,
		IncludeRecommendations: true,
		MaxRecommendations:     3,
		MinPoints:              7,
		ForecastHorizonDays:    7,

		SmoothingAlpha:       0.3,
		SeasonalityLag:       7,
		SeasonalityThreshold: 0.3,
		AnomalyK:             2.0,
		StableSlopeRatio:     0.001,
		CUSUMDrift:           0.5,
		CUSUMThreshold:       5.0,
		ReorderLevel:         100,

		HWAlpha: 0.3,
		HWBeta:  0.1,
		HWGamma: 0.3,
	}
}

func (c *Config) normalize() {
	d := DefaultConfig()
	if c.TimeRangeDays <= 0 {
		c.TimeRangeDays = d.TimeRangeDays
	}
	if c.TemplateTimeout <= 0 {
		c.TemplateTimeout = d.TemplateTimeout
	}
	if c.MaxParallel <= 0 {
		c.MaxParallel = d.MaxParallel
	}
	if c.MaxRecommendations <= 0 {
		c.MaxRecommendations = d.MaxRecommendations
	}
	if c.MinPoints < 2 {
		c.MinPoints = d.MinPoints
	}
	if c.ForecastHorizonDays <= 0 {
		c.ForecastHorizonDays = d.ForecastHorizonDays
	}
	if c.SeasonalityLag <= 0 {
		c.SeasonalityLag = d.SeasonalityLag
	}
	if c.AnomalyK <= 0 {
		c.AnomalyK = d.AnomalyK
	}
	if c.SmoothingAlpha <= 0 || c.SmoothingAlpha > 1 {
		c.SmoothingAlpha = d.SmoothingAlpha
	}
	if c.SeasonalityThreshold <= 0 {
		c.SeasonalityThreshold = d.SeasonalityThreshold
	}
	if c.CUSUMThreshold <= 0 {
		c.CUSUMDrift, c.CUSUMThreshold = d.CUSUMDrift, d.CUSUMThreshold
	}
}
