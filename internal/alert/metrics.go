package alert

import "github.com/prometheus/client_golang/prometheus"

// Prometheus alert metrics.
var (
	alertsTriggered = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tpminsight_alerts_triggered_total",
			Help: "Alerts raised, by rule and severity.",
		},
		[]string{"rule", "severity"},
	)
	alertsSuppressed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tpminsight_alerts_suppressed_total",
			Help: "Rule firings suppressed by the cooldown window.",
		},
		[]string{"rule"},
	)
	actionDispatches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tpminsight_alert_actions_total",
			Help: "Alert action dispatches, by action and outcome.",
		},
		[]string{"action", "outcome"},
	)
)

func init() {
	prometheus.MustRegister(alertsTriggered)
	prometheus.MustRegister(alertsSuppressed)
	prometheus.MustRegister(actionDispatches)
}
