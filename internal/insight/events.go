package insight

// Event topics published by the insight module.
const (
	// TopicInsightsGenerated carries a *analytics.InsightReport after it is stored.
	TopicInsightsGenerated = "insight.insights.generated"
)
