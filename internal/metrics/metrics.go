// Package metrics holds the Prometheus collectors for the retrieval
// pipeline and the sink adapter the stages publish through.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"support-retrieval/internal/domain"
)

// Pipeline Prometheus metrics.
var (
	StageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "support_retrieval",
			Name:      "stage_duration_seconds",
			Help:      "Stage execution duration in seconds",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"stage"},
	)

	StageErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "support_retrieval",
			Name:      "stage_errors_total",
			Help:      "Total stage failures",
		},
		[]string{"namespace"},
	)

	PipelinePoints = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "support_retrieval",
			Name:      "pipeline_data_point",
			Help:      "Last value of each named pipeline data point",
		},
		[]string{"metric_namespace", "name"},
	)
)

// MustRegister registers all pipeline collectors with the given registerer.
func MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(
		StageDuration,
		StageErrors,
		PipelinePoints,
	)
}

var _ domain.MetricsSink = (*PrometheusSink)(nil)

// PrometheusSink publishes pipeline data points into the process-local
// Prometheus collectors. Publishing never fails and never blocks.
type PrometheusSink struct{}

// NewPrometheusSink creates a sink over the package collectors.
func NewPrometheusSink() *PrometheusSink {
	return &PrometheusSink{}
}

// Publish records each data point. Error counts feed the error counter;
// everything else lands in the data point gauge, and latencies also feed
// the stage duration histogram.
func (s *PrometheusSink) Publish(namespace string, points ...domain.DataPoint) {
	for _, p := range points {
		if p.Name == "Errors" || p.Name == "AuditWriteErrors" {
			StageErrors.WithLabelValues(namespace).Add(p.Value)
			continue
		}
		PipelinePoints.WithLabelValues(namespace, p.Name).Set(p.Value)
		if p.Unit == "Milliseconds" {
			StageDuration.WithLabelValues(namespace).Observe(p.Value / 1000)
		}
	}
}
