package middleware

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/felixge/httpsnoop"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/fcapolini/markout/pkg/reactive"
)

var _ reactive.Observer = (*Metrics)(nil)

// MetricsConfig configures the Prometheus metrics.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "markout").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for durations.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures the Prometheus metrics.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the histogram buckets.
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
		Namespace: "markout",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Metrics holds the collectors of one server. All methods are safe on a nil
// receiver, so callers can leave metrics disabled.
type Metrics struct {
	refreshDuration  prometheus.Histogram
	propagations     prometheus.Counter
	propagatedValues prometheus.Counter
	callbacksFlushed prometheus.Counter
	evalErrors       *prometheus.CounterVec
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	liveSessions     prometheus.Gauge
	patchesSent      prometheus.Counter
	wsErrors         *prometheus.CounterVec
}

// Prometheus registers the markout collectors and returns them. Registering
// twice on the same registry panics, as with promauto.
func Prometheus(opts ...MetricsOption) *Metrics {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}
	factory := promauto.With(config.Registry)

	counter := func(name, help string) prometheus.Counter {
		return factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        name,
			Help:        help,
			ConstLabels: config.ConstLabels,
		})
	}

	return &Metrics{
		refreshDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "refresh_duration_seconds",
			Help:        "Duration of scope refresh passes in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}),

		propagations:     counter("propagations_total", "Total number of push propagations"),
		propagatedValues: counter("propagated_values_total", "Total number of values reached by push propagation"),
		callbacksFlushed: counter("callbacks_flushed_total", "Total number of pending callbacks delivered"),

		evalErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "eval_errors_total",
			Help:        "Total number of failed value evaluations",
			ConstLabels: config.ConstLabels,
		}, []string{"error_type"}),

		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "http_requests_total",
			Help:        "Total number of HTTP requests by route and status",
			ConstLabels: config.ConstLabels,
		}, []string{"route", "method", "status"}),

		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "http_request_duration_seconds",
			Help:        "HTTP request duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"route", "method"}),

		liveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "live_sessions",
			Help:        "Number of open live WebSocket sessions",
			ConstLabels: config.ConstLabels,
		}),

		patchesSent: counter("patches_sent_total", "Total number of DOM patches sent to clients"),

		wsErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "websocket_errors_total",
			Help:        "Total WebSocket errors by type",
			ConstLabels: config.ConstLabels,
		}, []string{"type"}),
	}
}

// RefreshDone implements reactive.Observer.
func (m *Metrics) RefreshDone(_ string, d time.Duration) {
	if m != nil {
		m.refreshDuration.Observe(d.Seconds())
	}
}

// Propagated implements reactive.Observer.
func (m *Metrics) Propagated(fanout int) {
	if m != nil {
		m.propagations.Inc()
		m.propagatedValues.Add(float64(fanout))
	}
}

// Flushed implements reactive.Observer.
func (m *Metrics) Flushed(n int) {
	if m != nil {
		m.callbacksFlushed.Add(float64(n))
	}
}

// EvalFailed implements reactive.Observer.
func (m *Metrics) EvalFailed(_, _ string, err error) {
	if m != nil {
		m.evalErrors.WithLabelValues(categorizeError(err)).Inc()
	}
}

// SessionOpened records a new live session.
func (m *Metrics) SessionOpened() {
	if m != nil {
		m.liveSessions.Inc()
	}
}

// SessionClosed records the end of a live session.
func (m *Metrics) SessionClosed() {
	if m != nil {
		m.liveSessions.Dec()
	}
}

// PatchesSent records patches delivered to a client.
func (m *Metrics) PatchesSent(n int) {
	if m != nil && n > 0 {
		m.patchesSent.Add(float64(n))
	}
}

// WebSocketError records a WebSocket failure of the given kind.
func (m *Metrics) WebSocketError(kind string) {
	if m != nil {
		m.wsErrors.WithLabelValues(kind).Inc()
	}
}

// HTTP counts and times requests. The route label is the chi route pattern,
// or "unmatched" when no route handled the request.
func (m *Metrics) HTTP(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		snoop := httpsnoop.CaptureMetrics(next, w, r)
		route := routePattern(r)
		m.httpDuration.WithLabelValues(route, r.Method).Observe(snoop.Duration.Seconds())
		m.httpRequests.WithLabelValues(route, r.Method, strconv.Itoa(snoop.Code)).Inc()
	})
}

func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

// categorizeError keeps error labels low-cardinality.
func categorizeError(err error) string {
	if err == nil {
		return "none"
	}
	msg := strings.ToLower(err.Error())
	switch {
	case errors.Is(err, reactive.ErrPanic):
		return "panic"
	case errors.Is(err, reactive.ErrNotFound), strings.Contains(msg, "not found"):
		return "not_found"
	case strings.Contains(msg, "not a number"), strings.Contains(msg, "unsupported type"):
		return "type"
	case strings.Contains(msg, "argument"):
		return "arity"
	default:
		return "internal"
	}
}
