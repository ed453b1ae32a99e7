// Package metrics exposes Prometheus instrumentation for the weights
// service: an HTTP middleware recording request counts and latency, and
// the /metrics handler serving the registry.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service's Prometheus collectors behind a dedicated
// registry so tests can create isolated instances.
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// New creates a Metrics instance with its own registry, including the
// standard Go runtime and process collectors.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	factory := promauto.With(registry)
	return &Metrics{
		registry: registry,
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "weights_http_requests_total",
				Help: "Total number of HTTP requests by method, route, and status code",
			},
			[]string{"method", "route", "status"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "weights_http_request_duration_seconds",
				Help:    "HTTP request processing duration",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
			},
			[]string{"method", "route"},
		),
	}
}

// Handler returns the HTTP handler serving the metrics registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// routeContextKey carries the matched-route holder through the request
// context. Middleware layers between Middleware and CaptureRoute copy
// the request, so the matched pattern cannot travel outward on the
// request itself; the shared holder survives those copies.
type routeContextKey struct{}

// Middleware records request count and duration for every request that
// passes through it. The route label uses the matched pattern, not the
// raw path, to keep label cardinality bounded. When intermediate
// middleware copies the request, pair this with [Metrics.CaptureRoute]
// directly around the mux so the pattern reaches this layer.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		holder := new(string)
		r = r.WithContext(context.WithValue(r.Context(), routeContextKey{}, holder))

		next.ServeHTTP(recorder, r)

		route := *holder
		if route == "" {
			// No CaptureRoute shim installed; the mux sat directly
			// inside and set the pattern on our own request copy.
			route = r.Pattern
		}
		if route == "" {
			route = "unmatched"
		}
		m.requestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// CaptureRoute copies the pattern the mux matched into the holder that
// [Metrics.Middleware] installed further out. It must wrap the mux
// directly, inside any middleware that replaces the request.
func (m *Metrics) CaptureRoute(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r)
		if holder, ok := r.Context().Value(routeContextKey{}).(*string); ok {
			*holder = r.Pattern
		}
	})
}

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
