package metrics

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/finch-technologies/storage-manager/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// metricVec is one registered metric. Exactly one of the vectors is set, matching typ.
type metricVec struct {
	typ      MetricType
	counter  *prometheus.CounterVec
	gauge    *prometheus.GaugeVec
	observer prometheus.ObserverVec
}

// PrometheusCollector records metrics on its own registry. Updates to metrics that were
// never registered are dropped.
type PrometheusCollector struct {
	registry  *prometheus.Registry
	namespace string

	mu   sync.RWMutex
	vecs map[string]metricVec
}

var _ Collector = (*PrometheusCollector)(nil)

func NewPrometheusCollector(namespace string) *PrometheusCollector {
	return &PrometheusCollector{
		registry:  prometheus.NewRegistry(),
		namespace: namespace,
		vecs:      make(map[string]metricVec),
	}
}

func (p *PrometheusCollector) lookup(name string, typ MetricType) (metricVec, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	v, ok := p.vecs[name]
	return v, ok && v.typ == typ
}

func (p *PrometheusCollector) IncrementCounter(ctx context.Context, name string, labels map[string]string, value float64) {
	v, ok := p.lookup(name, Counter)
	if !ok {
		return
	}

	c, err := v.counter.GetMetricWith(labels)
	if err != nil {
		log.Errorf("metrics: counter %s: %v", name, err)
		return
	}
	c.Add(value)
}

func (p *PrometheusCollector) SetGauge(ctx context.Context, name string, labels map[string]string, value float64) {
	v, ok := p.lookup(name, Gauge)
	if !ok {
		return
	}

	g, err := v.gauge.GetMetricWith(labels)
	if err != nil {
		log.Errorf("metrics: gauge %s: %v", name, err)
		return
	}
	g.Set(value)
}

func (p *PrometheusCollector) ObserveHistogram(ctx context.Context, name string, labels map[string]string, value float64) {
	p.observe(name, Histogram, labels, value)
}

func (p *PrometheusCollector) ObserveSummary(ctx context.Context, name string, labels map[string]string, value float64) {
	p.observe(name, Summary, labels, value)
}

func (p *PrometheusCollector) observe(name string, typ MetricType, labels map[string]string, value float64) {
	v, ok := p.lookup(name, typ)
	if !ok {
		return
	}

	o, err := v.observer.GetMetricWith(labels)
	if err != nil {
		log.Errorf("metrics: %s: %v", name, err)
		return
	}
	o.Observe(value)
}

func (p *PrometheusCollector) newVec(m CustomMetric) (metricVec, prometheus.Collector, error) {
	switch m.Type {
	case Counter:
		c := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: p.namespace, Name: m.Name, Help: m.Description}, m.Labels)
		return metricVec{typ: Counter, counter: c}, c, nil
	case Gauge:
		g := prometheus.NewGaugeVec(prometheus.GaugeOpts{Namespace: p.namespace, Name: m.Name, Help: m.Description}, m.Labels)
		return metricVec{typ: Gauge, gauge: g}, g, nil
	case Histogram:
		buckets := m.Buckets
		if len(buckets) == 0 {
			buckets = prometheus.DefBuckets
		}
		h := prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: p.namespace, Name: m.Name, Help: m.Description, Buckets: buckets}, m.Labels)
		return metricVec{typ: Histogram, observer: h}, h, nil
	case Summary:
		s := prometheus.NewSummaryVec(prometheus.SummaryOpts{Namespace: p.namespace, Name: m.Name, Help: m.Description}, m.Labels)
		return metricVec{typ: Summary, observer: s}, s, nil
	default:
		return metricVec{}, nil, fmt.Errorf("metric %s: unknown type %d", m.Name, m.Type)
	}
}

// RegisterCustomMetrics registers metrics in order and stops at the first failure.
func (p *PrometheusCollector) RegisterCustomMetrics(metrics ...CustomMetric) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, m := range metrics {
		vec, collector, err := p.newVec(m)
		if err != nil {
			return err
		}
		if err := p.registry.Register(collector); err != nil {
			return fmt.Errorf("register %s: %w", m.Name, err)
		}
		p.vecs[m.Name] = vec
	}

	return nil
}

// Registry exposes the underlying registry, e.g. to gather values in tests.
func (p *PrometheusCollector) Registry() *prometheus.Registry {
	return p.registry
}

func (p *PrometheusCollector) GetMetricsHandler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{
		DisableCompression: true,
	})
}
