package metrics

import (
	"context"
	"net/http"
)

type MetricType int

const (
	Counter MetricType = iota
	Gauge
	Histogram
	Summary
)

// CustomMetric declares a labelled metric before any value is recorded against it.
type CustomMetric struct {
	Name        string
	Description string
	Type        MetricType
	Labels      []string
	// Buckets applies to histograms; prometheus.DefBuckets when empty.
	Buckets []float64
}

// Collector records values for metrics declared through RegisterCustomMetrics and serves
// them over HTTP.
type Collector interface {
	IncrementCounter(ctx context.Context, name string, labels map[string]string, value float64)
	SetGauge(ctx context.Context, name string, labels map[string]string, value float64)
	ObserveHistogram(ctx context.Context, name string, labels map[string]string, value float64)
	ObserveSummary(ctx context.Context, name string, labels map[string]string, value float64)
	RegisterCustomMetrics(metrics ...CustomMetric) error
	GetMetricsHandler() http.Handler
}
