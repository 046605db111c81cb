package alert

// Event topics published by the alert module.
const (
	// TopicAlertTriggered carries a *analytics.Alert once it is recorded.
	TopicAlertTriggered = "insight.alert.triggered"
	// TopicActionDelivered carries a Delivery for each dispatched action.
	TopicActionDelivered = "insight.alert.action"
	// TopicUrgentDigest carries a Digest when a tenant's real-time check raised alerts.
	TopicUrgentDigest = "insight.alert.urgent"
)
