// Package observability collects Prometheus metrics for the host.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics aggregates the host's Prometheus collectors.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	extensionLoads     *prometheus.CounterVec
	installDuration    prometheus.Histogram
	subscriptionChecks *prometheus.CounterVec
}

// NewMetrics initializes the registry and base metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "helios_http_requests_total",
		Help: "HTTP requests by route and status.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "helios_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	loads := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "helios_extension_loads_total",
		Help: "Startup extension load attempts by result.",
	}, []string{"extension", "result"})
	installs := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "helios_extension_install_duration_seconds",
		Help:    "Duration of the extension install pipeline.",
		Buckets: prometheus.DefBuckets,
	})
	subs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "helios_subscription_checks_total",
		Help: "Entitlement verifications by result.",
	}, []string{"result"})
	registry.MustRegister(requests, duration, loads, installs, subs)
	return &Metrics{
		registry:           registry,
		handler:            promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:      requests,
		requestDuration:    duration,
		extensionLoads:     loads,
		installDuration:    installs,
		subscriptionChecks: subs,
	}
}

// Handler returns the http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveExtensionLoad records one startup load attempt.
func (m *Metrics) ObserveExtensionLoad(extension string, ok bool) {
	if m == nil {
		return
	}
	result := "loaded"
	if !ok {
		result = "skipped"
	}
	m.extensionLoads.WithLabelValues(extension, result).Inc()
}

// ObserveInstall records an install pipeline duration.
func (m *Metrics) ObserveInstall(d time.Duration) {
	if m == nil {
		return
	}
	m.installDuration.Observe(d.Seconds())
}

// ObserveSubscriptionCheck records one entitlement verification outcome.
func (m *Metrics) ObserveSubscriptionCheck(result string) {
	if m == nil {
		return
	}
	m.subscriptionChecks.WithLabelValues(result).Inc()
}

// Middleware records metrics for every HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// Registerer exposes the registry for custom metric registration.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
