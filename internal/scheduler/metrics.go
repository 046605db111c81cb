package scheduler

import "github.com/prometheus/client_golang/prometheus"

// Prometheus scheduler metrics.
var (
	tickDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tpminsight_scheduler_tick_duration_seconds",
			Help:    "Duration of one scheduler tick across all tenants.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		},
		[]string{"loop"},
	)
	tenantFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tpminsight_scheduler_tenant_failures_total",
			Help: "Tenant runs that returned an error or panicked.",
		},
		[]string{"loop"},
	)
	skippedTicks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tpminsight_scheduler_skipped_ticks_total",
			Help: "Ticks skipped because the tenant directory failed.",
		},
		[]string{"loop"},
	)
)

func init() {
	prometheus.MustRegister(tickDuration)
	prometheus.MustRegister(tenantFailures)
	prometheus.MustRegister(skippedTicks)
}
