/*
Package metrics exposes engine and HTTP metrics to Prometheus.

PURPOSE:
  Collector implements rental.MetricsCollector on a private registry, so
  tests and multiple servers in one process never collide on the default
  registerer. Instrument wraps the HTTP router and labels requests by chi
  route pattern, not raw path, to keep cardinality bounded.

METRICS:
  rental_operation_duration_seconds{operation,outcome}  histogram
  rental_operations_total{operation,outcome}            counter
  rental_operation_retries_total{operation}              counter
  rental_contention_total{operation}                     counter
  rental_invariant_drift_books                           gauge
  http_in_flight_requests                                gauge
  http_requests_total{method,route,status}               counter
  http_request_duration_seconds{method,route,status}     histogram

SEE ALSO:
  - rental/options.go: Metric names
  - api/server.go: Wiring
*/
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/warp/book-rental/rental"
)

// Collector implements rental.MetricsCollector.
type Collector struct {
	registry *prometheus.Registry

	opDuration *prometheus.HistogramVec
	operations *prometheus.CounterVec
	retries    *prometheus.CounterVec
	contention *prometheus.CounterVec
	drift      prometheus.Gauge

	httpInFlight        prometheus.Gauge
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

var _ rental.MetricsCollector = (*Collector)(nil)

// NewCollector creates the collector and its registry, including the Go
// runtime and process collectors.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		opDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    rental.MetricOperationDuration,
			Help:    "Duration of rental engine operations including retries.",
			Buckets: []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{rental.LogAttrOperation, rental.LogAttrOutcome}),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: rental.MetricOperations,
			Help: "Rental engine operations by outcome.",
		}, []string{rental.LogAttrOperation, rental.LogAttrOutcome}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: rental.MetricRetries,
			Help: "Transaction retries after a concurrent modification.",
		}, []string{rental.LogAttrOperation}),
		contention: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: rental.MetricContention,
			Help: "Operations that gave up after exhausting retries.",
		}, []string{rental.LogAttrOperation}),
		drift: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: rental.MetricInvariantDrift,
			Help: "Books whose stock disagrees with copies minus open rentals at the last check.",
		}),
		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "http_in_flight_requests",
			Help: "In-flight HTTP requests.",
		}),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "route", "status"}),
		httpRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.opDuration, c.operations, c.retries, c.contention, c.drift,
		c.httpInFlight, c.httpRequestsTotal, c.httpRequestDuration,
	)
	return c
}

// Registry returns the registry the collector writes to.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

func (c *Collector) RecordDuration(metric string, d time.Duration, labels map[string]string) {
	if metric != rental.MetricOperationDuration {
		return
	}
	if h, err := c.opDuration.GetMetricWith(prometheus.Labels(labels)); err == nil {
		h.Observe(d.Seconds())
	}
}

func (c *Collector) IncrementCounter(metric string, labels map[string]string) {
	var vec *prometheus.CounterVec
	switch metric {
	case rental.MetricOperations:
		vec = c.operations
	case rental.MetricRetries:
		vec = c.retries
	case rental.MetricContention:
		vec = c.contention
	default:
		return
	}
	if counter, err := vec.GetMetricWith(prometheus.Labels(labels)); err == nil {
		counter.Inc()
	}
}

func (c *Collector) RecordValue(metric string, value float64, _ map[string]string) {
	if metric == rental.MetricInvariantDrift {
		c.drift.Set(value)
	}
}

// Instrument records in-flight, count and latency for every request.
func (c *Collector) Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.httpInFlight.Inc()
		defer c.httpInFlight.Dec()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := strconv.Itoa(sw.code)
		c.httpRequestDuration.WithLabelValues(r.Method, route, status).Observe(time.Since(start).Seconds())
		c.httpRequestsTotal.WithLabelValues(r.Method, route, status).Inc()
	})
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
