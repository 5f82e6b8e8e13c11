// Package metrics provides Prometheus metrics for the agent.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autodeploy_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "autodeploy_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// Upstream calls: generator, github, gist, vercel
	upstreamCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autodeploy_upstream_calls_total",
			Help: "Total number of calls to third-party APIs",
		},
		[]string{"service", "operation", "outcome"},
	)

	upstreamCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "autodeploy_upstream_call_duration_seconds",
			Help:    "Latency of calls to third-party APIs",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"service", "operation"},
	)

	workflowTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autodeploy_workflow_transitions_total",
			Help: "Workflow state transitions",
		},
		[]string{"from", "to"},
	)

	filesPushed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "autodeploy_files_pushed_total",
			Help: "Files uploaded to source repositories",
		},
	)

	activeSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "autodeploy_active_sessions",
			Help: "Number of live workflow sessions",
		},
	)
)

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordHTTPRequest records a served request.
func RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordUpstreamCall records one call to a third-party API.
func RecordUpstreamCall(service, operation string, duration time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	upstreamCallsTotal.WithLabelValues(service, operation, outcome).Inc()
	upstreamCallDuration.WithLabelValues(service, operation).Observe(duration.Seconds())
}

// RecordTransition records a workflow step change.
func RecordTransition(from, to string) {
	workflowTransitions.WithLabelValues(from, to).Inc()
}

// RecordFilePushed counts one uploaded file.
func RecordFilePushed() {
	filesPushed.Inc()
}

// SetActiveSessions sets the live session gauge.
func SetActiveSessions(n int) {
	activeSessions.Set(float64(n))
}
