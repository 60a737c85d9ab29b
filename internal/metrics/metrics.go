// Package metrics exposes Prometheus collectors for the service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ocrway"

var (
	// Admission outcomes: admitted, unauthenticated, per_minute, per_day, error
	AdmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "admission",
			Name:      "decisions_total",
			Help:      "Total admission decisions by outcome",
		},
		[]string{"outcome"},
	)

	// Requests by route and status
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 120},
		},
		[]string{"method", "route"},
	)

	// Backend dispatch latency (backend = tesseract | vlm)
	DispatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "duration_seconds",
			Help:      "Backend processing duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"backend", "status"},
	)

	// Slots currently held on the understanding gate
	GateInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "vlm",
			Name:      "gate_in_flight",
			Help:      "Remote understanding calls currently holding a gate slot",
		},
	)

	// Callers waiting for a gate slot
	GateWaiting = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "vlm",
			Name:      "gate_waiting",
			Help:      "Remote understanding calls waiting for a gate slot",
		},
	)

	BatchItemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "batch",
			Name:      "items_total",
			Help:      "Batch items processed by outcome",
		},
		[]string{"status"},
	)
)

// RecordAdmission records an admission decision
func RecordAdmission(outcome string) {
	AdmissionsTotal.WithLabelValues(outcome).Inc()
}

// RecordRequest records an HTTP request
func RecordRequest(method, route, status string, durationSec float64) {
	RequestsTotal.WithLabelValues(method, route, status).Inc()
	RequestDuration.WithLabelValues(method, route).Observe(durationSec)
}

// RecordDispatch records a backend call
func RecordDispatch(backend, status string, durationSec float64) {
	DispatchDuration.WithLabelValues(backend, status).Observe(durationSec)
}

// RecordBatchItem records one batch item outcome
func RecordBatchItem(success bool) {
	status := "success"
	if !success {
		status = "failure"
	}
	BatchItemsTotal.WithLabelValues(status).Inc()
}

// Handler returns the Prometheus scrape handler
func Handler() http.Handler {
	return promhttp.Handler()
}
