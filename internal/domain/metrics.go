package domain

// DataPoint is one named numeric measurement.
type DataPoint struct {
	Name  string
	Value float64
	Unit  string
}

// MetricsSink accepts data points fire-and-forget. Implementations must
// never return an error or block the pipeline; a lost metric is cheaper
// than a failed query.
type MetricsSink interface {
	Publish(namespace string, points ...DataPoint)
}

// NopMetricsSink discards all data points.
type NopMetricsSink struct{}

func (NopMetricsSink) Publish(string, ...DataPoint) {}
