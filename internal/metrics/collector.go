package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector wraps a Prometheus registry and provides metric registration
// helpers.
type Collector struct {
	registry *prometheus.Registry
}

// NewCollector creates a new metrics collector with a Prometheus registry
func NewCollector() *Collector {
	return &Collector{
		registry: prometheus.NewRegistry(),
	}
}

// RegisterCounter registers a counter vector with the collector
func (c *Collector) RegisterCounter(name, help string, labels []string) *prometheus.CounterVec {
	return promauto.With(c.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: name,
			Help: help,
		},
		labels,
	)
}

// RegisterPlainCounter registers an unlabeled counter with the collector
func (c *Collector) RegisterPlainCounter(name, help string) prometheus.Counter {
	return promauto.With(c.registry).NewCounter(prometheus.CounterOpts{
		Name: name,
		Help: help,
	})
}

// RegisterGauge registers a gauge vector with the collector
func (c *Collector) RegisterGauge(name, help string, labels []string) *prometheus.GaugeVec {
	return promauto.With(c.registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Name: name,
			Help: help,
		},
		labels,
	)
}

// RegisterPlainGauge registers an unlabeled gauge with the collector
func (c *Collector) RegisterPlainGauge(name, help string) prometheus.Gauge {
	return promauto.With(c.registry).NewGauge(prometheus.GaugeOpts{
		Name: name,
		Help: help,
	})
}

// RegisterHistogram registers a histogram vector with the collector
func (c *Collector) RegisterHistogram(name, help string, labels []string, buckets []float64) *prometheus.HistogramVec {
	opts := prometheus.HistogramOpts{
		Name:    name,
		Help:    help,
		Buckets: buckets,
	}
	if buckets == nil {
		// Default buckets for duration metrics (in seconds)
		opts.Buckets = prometheus.DefBuckets
	}
	return promauto.With(c.registry).NewHistogramVec(opts, labels)
}

// RegisterPlainHistogram registers an unlabeled histogram with the collector
func (c *Collector) RegisterPlainHistogram(name, help string, buckets []float64) prometheus.Histogram {
	opts := prometheus.HistogramOpts{
		Name:    name,
		Help:    help,
		Buckets: buckets,
	}
	if buckets == nil {
		opts.Buckets = prometheus.DefBuckets
	}
	return promauto.With(c.registry).NewHistogram(opts)
}

// GetRegistry returns the Prometheus registry for the HTTP handler
func (c *Collector) GetRegistry() *prometheus.Registry {
	return c.registry
}
