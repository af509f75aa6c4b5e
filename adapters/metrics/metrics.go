// Package metrics provides Prometheus metrics collection for the inventory shell.
package metrics

import (
	"strconv"
	"strings"
	"time"

	"github.com/inventorius/inventorius-web/domain/inventory"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "inventorius"

// Collector holds all Prometheus metrics for the shell and API client.
// A nil *Collector is valid and records nothing.
type Collector struct {
	// Inventory API client metrics
	APIRequestsTotal    *prometheus.CounterVec
	APIRequestDuration  *prometheus.HistogramVec
	APIRequestsInFlight prometheus.Gauge
	APIErrors           *prometheus.CounterVec
	APIProblems         *prometheus.CounterVec

	// Page metrics
	PageRenders  *prometheus.CounterVec
	PageDuration *prometheus.HistogramVec

	// Search metrics
	SearchesSuperseded prometheus.Counter

	// Config metrics
	ConfigReloads      prometheus.Counter
	ConfigReloadErrors prometheus.Counter
	ConfigLastReload   prometheus.Gauge
}

// New creates a collector registered with the default Prometheus registry.
func New() *Collector {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a new metrics collector with a custom registry.
// Useful for testing to avoid global state.
func NewWithRegistry(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		APIRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_requests_total",
				Help:      "Total number of requests sent to the inventory API",
			},
			[]string{"method", "route", "status"},
		),
		APIRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "api_request_duration_seconds",
				Help:      "Inventory API request duration in seconds",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "route"},
		),
		APIRequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "api_requests_in_flight",
				Help:      "Number of inventory API requests currently in flight",
			},
		),
		APIErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_errors_total",
				Help:      "Total number of inventory API transport failures",
			},
			[]string{"type"},
		),
		APIProblems: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_problems_total",
				Help:      "Total number of problem documents returned by the inventory API",
			},
			[]string{"type"},
		),
		PageRenders: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "page_renders_total",
				Help:      "Total number of pages rendered by the shell",
			},
			[]string{"page", "status"},
		),
		PageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "page_duration_seconds",
				Help:      "Page handling duration in seconds, including API calls",
				Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"page"},
		),
		SearchesSuperseded: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "searches_superseded_total",
				Help:      "Total number of search results discarded because a newer query was issued",
			},
		),
		ConfigReloads: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "config_reloads_total",
				Help:      "Total number of successful config reloads",
			},
		),
		ConfigReloadErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "config_reload_errors_total",
				Help:      "Total number of config reload errors",
			},
		),
		ConfigLastReload: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "config_last_reload_timestamp",
				Help:      "Unix timestamp of last successful config reload",
			},
		),
	}
}

// ObserveAPICall records a completed inventory API request.
func (c *Collector) ObserveAPICall(method, path string, status int, d time.Duration) {
	if c == nil {
		return
	}
	route := RouteLabel(path)
	c.APIRequestsTotal.WithLabelValues(method, route, StatusClass(status)).Inc()
	c.APIRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// APICallStarted marks a request as in flight and returns the function that
// ends it.
func (c *Collector) APICallStarted() func() {
	if c == nil {
		return func() {}
	}
	c.APIRequestsInFlight.Inc()
	return c.APIRequestsInFlight.Dec
}

// APIError records a transport failure.
func (c *Collector) APIError(kind string) {
	if c == nil {
		return
	}
	c.APIErrors.WithLabelValues(kind).Inc()
}

// APIProblem records a problem document returned by the API.
func (c *Collector) APIProblem(problemType string) {
	if c == nil {
		return
	}
	if problemType == "" {
		problemType = "unknown"
	}
	c.APIProblems.WithLabelValues(problemType).Inc()
}

// ObservePage records a rendered page.
func (c *Collector) ObservePage(page string, status int, d time.Duration) {
	if c == nil {
		return
	}
	c.PageRenders.WithLabelValues(page, StatusClass(status)).Inc()
	c.PageDuration.WithLabelValues(page).Observe(d.Seconds())
}

// SearchSuperseded records a discarded stale search.
func (c *Collector) SearchSuperseded() {
	if c == nil {
		return
	}
	c.SearchesSuperseded.Inc()
}

// ConfigReloaded records the outcome of a config reload.
func (c *Collector) ConfigReloaded(err error) {
	if c == nil {
		return
	}
	if err != nil {
		c.ConfigReloadErrors.Inc()
		return
	}
	c.ConfigReloads.Inc()
	c.ConfigLastReload.SetToCurrentTime()
}

// StatusClass maps a status code to 2xx/3xx/4xx/5xx.
func StatusClass(status int) string {
	if status < 100 || status > 599 {
		return "unknown"
	}
	return strconv.Itoa(status/100) + "xx"
}

// RouteLabel reduces cardinality by replacing resource identifiers in a path.
// e.g., /api/bin/BIN000001/contents -> /api/bin/{id}/contents
func RouteLabel(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		if _, ok := inventory.KindOf(seg); ok {
			segments[i] = "{id}"
		}
	}
	return strings.Join(segments, "/")
}
