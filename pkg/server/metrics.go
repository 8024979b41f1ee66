package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vango-dev/place/pkg/hub"
	"github.com/vango-dev/place/pkg/snapshot"
)

// MetricsConfig configures the Prometheus metrics.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "place").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for snapshot save duration.
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: a fresh prometheus.Registry.
	Registry *prometheus.Registry
}

// MetricsOption configures the Prometheus metrics.
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

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry *prometheus.Registry) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace: "place",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}
}

// Metrics holds the Prometheus metrics for a place server. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	config   MetricsConfig
	registry *prometheus.Registry
	factory  promauto.Factory

	activeSessions  prometheus.Gauge
	sessionsTotal   prometheus.Counter
	sessionsClosed  *prometheus.CounterVec
	pixelsApplied   prometheus.Counter
	pixelsDropped   prometheus.Counter
	deliveries      prometheus.Counter
	protocolErrors  *prometheus.CounterVec
	snapshotSaves   *prometheus.CounterVec
	snapshotSeconds prometheus.Histogram
}

// NewMetrics creates and registers the server metrics.
//
// Metrics collected:
//   - place_active_sessions: Gauge of connected sessions
//   - place_sessions_total: Counter of accepted sessions
//   - place_sessions_closed_total: Counter of closed sessions by reason
//   - place_pixels_applied_total: Counter of writes applied to the canvas
//   - place_pixels_dropped_total: Counter of out-of-range writes
//   - place_broadcast_deliveries_total: Counter of per-subscriber deliveries
//   - place_protocol_errors_total: Counter of session-closing protocol errors
//   - place_snapshot_saves_total: Counter of snapshot saves by result
//   - place_snapshot_save_duration_seconds: Histogram of save duration
func NewMetrics(opts ...MetricsOption) *Metrics {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}
	if config.Registry == nil {
		config.Registry = prometheus.NewRegistry()
	}
	factory := promauto.With(config.Registry)

	m := &Metrics{
		config:   config,
		registry: config.Registry,
		factory:  factory,

		activeSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "active_sessions",
			Help:        "Number of connected WebSocket sessions",
			ConstLabels: config.ConstLabels,
		}),

		sessionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "sessions_total",
			Help:        "Total number of accepted WebSocket sessions",
			ConstLabels: config.ConstLabels,
		}),

		sessionsClosed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "sessions_closed_total",
			Help:        "Total number of closed sessions by reason",
			ConstLabels: config.ConstLabels,
		}, []string{"reason"}),

		pixelsApplied: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "pixels_applied_total",
			Help:        "Total number of pixel writes applied to the canvas",
			ConstLabels: config.ConstLabels,
		}),

		pixelsDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "pixels_dropped_total",
			Help:        "Total number of out-of-range pixel writes",
			ConstLabels: config.ConstLabels,
		}),

		deliveries: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "broadcast_deliveries_total",
			Help:        "Total number of pixel writes handed to subscribers",
			ConstLabels: config.ConstLabels,
		}),

		protocolErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "protocol_errors_total",
			Help:        "Total number of sessions closed for protocol violations",
			ConstLabels: config.ConstLabels,
		}, []string{"type"}),

		snapshotSaves: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "snapshot_saves_total",
			Help:        "Total number of snapshot saves by result",
			ConstLabels: config.ConstLabels,
		}, []string{"result"}),

		snapshotSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "snapshot_save_duration_seconds",
			Help:        "Snapshot save duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}),
	}
	return m
}

// Registry returns the registry the metrics are registered with.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the Prometheus exposition handler for the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveHub exports the hub's subscriber count and eviction counter.
func (m *Metrics) ObserveHub(h *hub.Hub) {
	if m == nil || h == nil {
		return
	}
	m.factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace:   m.config.Namespace,
		Subsystem:   m.config.Subsystem,
		Name:        "hub_subscribers",
		Help:        "Number of live hub subscriptions",
		ConstLabels: m.config.ConstLabels,
	}, func() float64 { return float64(h.Len()) })

	m.factory.NewCounterFunc(prometheus.CounterOpts{
		Namespace:   m.config.Namespace,
		Subsystem:   m.config.Subsystem,
		Name:        "hub_evictions_total",
		Help:        "Total number of subscribers evicted for falling behind",
		ConstLabels: m.config.ConstLabels,
	}, func() float64 { return float64(h.Stats().Evicted) })
}

// ObserveSave records one snapshot save. It matches snapshot.WithOnSave.
func (m *Metrics) ObserveSave(res snapshot.SaveResult) {
	if m == nil {
		return
	}
	result := "ok"
	if res.Err != nil {
		result = "error"
	}
	m.snapshotSaves.WithLabelValues(result).Inc()
	m.snapshotSeconds.Observe(res.Duration.Seconds())
}

func (m *Metrics) sessionOpened() {
	if m == nil {
		return
	}
	m.sessionsTotal.Inc()
	m.activeSessions.Inc()
}

func (m *Metrics) sessionClosed(reason string) {
	if m == nil {
		return
	}
	m.activeSessions.Dec()
	m.sessionsClosed.WithLabelValues(reason).Inc()
}

func (m *Metrics) protocolError(kind string) {
	if m == nil {
		return
	}
	m.protocolErrors.WithLabelValues(kind).Inc()
}

func (m *Metrics) pixelApplied(delivered int) {
	if m == nil {
		return
	}
	m.pixelsApplied.Inc()
	m.deliveries.Add(float64(delivered))
}

func (m *Metrics) pixelDropped() {
	if m == nil {
		return
	}
	m.pixelsDropped.Inc()
}
