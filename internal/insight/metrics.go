package insight

import "github.com/prometheus/client_golang/prometheus"

// Prometheus insight metrics.
var (
	insightsGenerated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tpminsight_insights_generated_total",
			Help: "Insights produced, by template.",
		},
		[]string{"template"},
	)
	templateFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tpminsight_template_failures_total",
			Help: "Template runs that failed, by template and reason.",
		},
		[]string{"template", "reason"},
	)
	pipelineDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tpminsight_pipeline_duration_seconds",
			Help:    "Duration of a full insight pipeline run for one tenant.",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(insightsGenerated)
	prometheus.MustRegister(templateFailures)
	prometheus.MustRegister(pipelineDuration)
}
