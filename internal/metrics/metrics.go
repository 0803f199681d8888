// Package metrics exposes depot's Prometheus instrumentation: request
// counts plus storage usage and quota gauges for monitoring capacity
// pressure.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	requests   *prometheus.CounterVec
	usageBytes prometheus.Gauge
	limitBytes prometheus.Gauge
	full       prometheus.Gauge
}

// New creates a Metrics value with its own registry so tests can run many
// servers in one process without duplicate-registration panics.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "depot",
			Name:      "http_requests_total",
			Help:      "HTTP requests served, by method and status code.",
		}, []string{"method", "code"}),
		usageBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "depot",
			Name:      "storage_usage_bytes",
			Help:      "Aggregate byte size of all stored artifacts.",
		}),
		limitBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "depot",
			Name:      "storage_limit_bytes",
			Help:      "Configured storage quota in bytes; zero means unlimited.",
		}),
		full: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "depot",
			Name:      "storage_full",
			Help:      "1 when the quota denies even a zero-byte addition.",
		}),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		m.requests,
		m.usageBytes,
		m.limitBytes,
		m.full,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRequest counts one served HTTP request.
func (m *Metrics) ObserveRequest(method string, status int) {
	m.requests.WithLabelValues(method, strconv.Itoa(status)).Inc()
}

// SetStorage updates the storage gauges from the store's current state.
func (m *Metrics) SetStorage(usage, limit int64, full bool) {
	m.usageBytes.Set(float64(usage))
	m.limitBytes.Set(float64(limit))
	if full {
		m.full.Set(1)
	} else {
		m.full.Set(0)
	}
}
