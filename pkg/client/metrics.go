package client

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsConfig configures the client Prometheus metrics.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "pagelink").
	Namespace string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for call duration.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures the client Prometheus metrics.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the call duration histogram buckets.
func WithBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace: "pagelink",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Metrics instruments a Connection.
type Metrics struct {
	callsTotal    *prometheus.CounterVec
	callDuration  *prometheus.HistogramVec
	pushesTotal   *prometheus.CounterVec
	pushesDropped prometheus.Counter
	reconnects    prometheus.Counter
}

// NewMetrics registers the client metrics and returns the instrument set.
// Register it on a Connection with WithMetrics or wire Reconnected into a
// transport's reconnect hook.
func NewMetrics(opts ...MetricsOption) *Metrics {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}
	factory := promauto.With(config.Registry)

	return &Metrics{
		callsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        "calls_total",
			Help:        "Total number of correlated host calls",
			ConstLabels: config.ConstLabels,
		}, []string{"action", "status"}),

		callDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Name:        "call_duration_seconds",
			Help:        "Host call round-trip duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"action"}),

		pushesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        "pushes_total",
			Help:        "Total number of host pushes received",
			ConstLabels: config.ConstLabels,
		}, []string{"action"}),

		pushesDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        "pushes_dropped_total",
			Help:        "Host pushes dropped because the dispatch queue was full",
			ConstLabels: config.ConstLabels,
		}),

		reconnects: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        "reconnects_total",
			Help:        "Total number of transport reconnects",
			ConstLabels: config.ConstLabels,
		}),
	}
}

// Reconnected records one transport reconnect. Suitable as a
// WithReconnectHook callback body.
func (m *Metrics) Reconnected() {
	m.reconnects.Inc()
}

func (m *Metrics) observeCall(action, status string, seconds float64) {
	if m == nil {
		return
	}
	m.callsTotal.WithLabelValues(action, status).Inc()
	m.callDuration.WithLabelValues(action).Observe(seconds)
}

func (m *Metrics) observePush(action string) {
	if m == nil {
		return
	}
	m.pushesTotal.WithLabelValues(action).Inc()
}

func (m *Metrics) observeDrop() {
	if m == nil {
		return
	}
	m.pushesDropped.Inc()
}
