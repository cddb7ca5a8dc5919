// Package metrics exposes Prometheus collectors for the TCP server and the
// business handlers behind it.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	openConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "posd",
			Subsystem: "tcp",
			Name:      "open_connections",
			Help:      "Current number of accepted terminal connections.",
		},
	)

	requests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "posd",
			Subsystem: "tcp",
			Name:      "requests_total",
			Help:      "Total number of routed requests.",
		},
		[]string{"action", "status"},
	)

	requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "posd",
			Subsystem: "tcp",
			Name:      "request_duration_seconds",
			Help:      "Duration of request dispatch including persistence calls.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"action"},
	)

	activeSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "posd",
			Subsystem: "session",
			Name:      "active_sessions",
			Help:      "Number of live authenticated sessions.",
		},
	)

	protocolErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "posd",
			Subsystem: "tcp",
			Name:      "protocol_errors_total",
			Help:      "Connections dropped for framing violations.",
		},
	)
)

func init() {
	Registry.MustRegister(openConnections, requests, requestDuration, activeSessions, protocolErrors)
}

// ConnOpened records an accepted connection.
func ConnOpened() { openConnections.Inc() }

// ConnClosed records a closed connection.
func ConnClosed() { openConnections.Dec() }

// ObserveRequest records one dispatched request.
func ObserveRequest(action string, success bool, elapsed time.Duration) {
	status := "ok"
	if !success {
		status = "error"
	}
	requests.WithLabelValues(action, status).Inc()
	requestDuration.WithLabelValues(action).Observe(elapsed.Seconds())
}

// SetActiveSessions reports the current session count.
func SetActiveSessions(n int) { activeSessions.Set(float64(n)) }

// ProtocolError counts a connection dropped for a framing violation.
func ProtocolError() { protocolErrors.Inc() }

// Handler serves the registry in Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
