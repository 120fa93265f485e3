// Package metrics exposes Prometheus metrics for hash controllers and the
// sync server.
//
// Metrics collected (namespace "hashsync" by default):
//   - hash_reads_total: hash evaluations by outcome
//   - hash_writes_total: controller writes
//   - hash_changes_total: change notifications
//   - hash_diff_entries_total: diff entries by op
//   - connections_active / connections_total: websocket bridge connections
//   - websocket_errors_total: bridge errors by type
//   - http_requests_total / http_request_duration_seconds: API traffic
//   - store_operations_total: snapshot store calls by op and result
//
// Every Collector owns its registry, so several can live in one process.
// A nil *Collector is valid and records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vango-dev/hashsync/pkg/diff"
	"github.com/vango-dev/hashsync/pkg/hash"
)

// Config configures a Collector.
type Config struct {
	// Namespace is the metrics namespace (default: "hashsync").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for request duration.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry receives the metrics and backs Handler.
	// Default: a new registry.
	Registry *prometheus.Registry
}

// Option configures a Collector.
type Option func(*Config)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) Option {
	return func(c *Config) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) Option {
	return func(c *Config) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) Option {
	return func(c *Config) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) Option {
	return func(c *Config) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry *prometheus.Registry) Option {
	return func(c *Config) {
		c.Registry = registry
	}
}

func defaultConfig() Config {
	return Config{
		Namespace: "hashsync",
		Buckets:   prometheus.DefBuckets,
	}
}

// Collector holds the metrics.
type Collector struct {
	registry *prometheus.Registry

	reads             *prometheus.CounterVec
	writes            prometheus.Counter
	changes           prometheus.Counter
	diffEntries       *prometheus.CounterVec
	connectionsActive prometheus.Gauge
	connectionsTotal  prometheus.Counter
	wsErrors          *prometheus.CounterVec
	requests          *prometheus.CounterVec
	requestDuration   *prometheus.HistogramVec
	storeOps          *prometheus.CounterVec
}

var _ hash.Observer = (*Collector)(nil)

// New creates a Collector and registers its metrics.
func New(opts ...Option) *Collector {
	config := defaultConfig()
	for _, opt := range opts {
		opt(&config)
	}
	if config.Registry == nil {
		config.Registry = prometheus.NewRegistry()
	}
	factory := promauto.With(config.Registry)

	return &Collector{
		registry: config.Registry,

		reads: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "hash_reads_total",
			Help:        "Total number of hash evaluations by outcome",
			ConstLabels: config.ConstLabels,
		}, []string{"outcome"}),

		writes: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "hash_writes_total",
			Help:        "Total number of hash writes",
			ConstLabels: config.ConstLabels,
		}),

		changes: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "hash_changes_total",
			Help:        "Total number of change notifications",
			ConstLabels: config.ConstLabels,
		}),

		diffEntries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "hash_diff_entries_total",
			Help:        "Total number of diff entries by op",
			ConstLabels: config.ConstLabels,
		}, []string{"op"}),

		connectionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "connections_active",
			Help:        "Number of open websocket bridge connections",
			ConstLabels: config.ConstLabels,
		}),

		connectionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "connections_total",
			Help:        "Total number of websocket bridge connections",
			ConstLabels: config.ConstLabels,
		}),

		wsErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "websocket_errors_total",
			Help:        "Total websocket errors by type",
			ConstLabels: config.ConstLabels,
		}, []string{"type"}),

		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "http_requests_total",
			Help:        "Total HTTP requests by route and status class",
			ConstLabels: config.ConstLabels,
		}, []string{"route", "status"}),

		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "http_request_duration_seconds",
			Help:        "HTTP request duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"route"}),

		storeOps: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "store_operations_total",
			Help:        "Total snapshot store operations by op and result",
			ConstLabels: config.ConstLabels,
		}, []string{"op", "result"}),
	}
}

// Registry returns the registry the metrics live in.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// ObserveRead implements hash.Observer.
func (c *Collector) ObserveRead(outcome string) {
	if c == nil {
		return
	}
	c.reads.WithLabelValues(outcome).Inc()
}

// ObserveWrite implements hash.Observer.
func (c *Collector) ObserveWrite() {
	if c == nil {
		return
	}
	c.writes.Inc()
}

// ObserveChange implements hash.Observer.
func (c *Collector) ObserveChange(d diff.Diff) {
	if c == nil {
		return
	}
	c.changes.Inc()
	for op, n := range d.Count() {
		c.diffEntries.WithLabelValues(string(op)).Add(float64(n))
	}
}

// ConnectionOpened records a new bridge connection.
func (c *Collector) ConnectionOpened() {
	if c == nil {
		return
	}
	c.connectionsActive.Inc()
	c.connectionsTotal.Inc()
}

// ConnectionClosed records a closed bridge connection.
func (c *Collector) ConnectionClosed() {
	if c == nil {
		return
	}
	c.connectionsActive.Dec()
}

// WebSocketError records a bridge error. errorType should be a small fixed
// vocabulary ("read", "write", "decode", "rate_limit").
func (c *Collector) WebSocketError(errorType string) {
	if c == nil {
		return
	}
	c.wsErrors.WithLabelValues(errorType).Inc()
}

// StoreOp records the result of a store call.
func (c *Collector) StoreOp(op string, err error) {
	if c == nil {
		return
	}
	c.storeOps.WithLabelValues(op, categorizeError(err)).Inc()
}
