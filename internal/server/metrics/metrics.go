// Package metrics holds the Prometheus collectors of the server and the
// /metrics handler exposing them.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "vipclub"

// Revocation lookup sources.
const (
	LookupCacheHit      = "cache_hit"
	LookupCacheNegative = "cache_negative"
	LookupDurable       = "durable"
)

// Metrics holds all Prometheus collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	GRPCRequestsTotal *prometheus.CounterVec

	AuthOutcomesTotal      *prometheus.CounterVec
	RevocationLookupsTotal *prometheus.CounterVec
	RevocationsTotal       prometheus.Counter
	RevocationsPurgedTotal prometheus.Counter

	BarcodeRendersTotal *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them, together with the
// Go runtime and process collectors, on registry.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		GRPCRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "grpc_requests_total",
				Help:      "Total number of gRPC requests",
			},
			[]string{"method", "code"},
		),
		AuthOutcomesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "auth_outcomes_total",
				Help:      "Authentication attempts by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		RevocationLookupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "revocation_lookups_total",
				Help:      "Revocation lookups by answering source",
			},
			[]string{"source"},
		),
		RevocationsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "revocations_total",
				Help:      "Tokens revoked through logout",
			},
		),
		RevocationsPurgedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "revocations_purged_total",
				Help:      "Expired revocation records removed",
			},
		),
		BarcodeRendersTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "barcode_renders_total",
				Help:      "Barcode images served by source",
			},
			[]string{"source"},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.GRPCRequestsTotal,
		m.AuthOutcomesTotal,
		m.RevocationLookupsTotal,
		m.RevocationsTotal,
		m.RevocationsPurgedTotal,
		m.BarcodeRendersTotal,
	)

	return m
}

// Handler serves the registry in the Prometheus exposition format.
func Handler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})
}

func (m *Metrics) AuthOutcome(operation, outcome string) {
	if m == nil {
		return
	}
	m.AuthOutcomesTotal.WithLabelValues(operation, outcome).Inc()
}

func (m *Metrics) RevocationLookup(source string) {
	if m == nil {
		return
	}
	m.RevocationLookupsTotal.WithLabelValues(source).Inc()
}

func (m *Metrics) Revoked() {
	if m == nil {
		return
	}
	m.RevocationsTotal.Inc()
}

func (m *Metrics) Purged(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.RevocationsPurgedTotal.Add(float64(n))
}

func (m *Metrics) BarcodeRender(source string) {
	if m == nil {
		return
	}
	m.BarcodeRendersTotal.WithLabelValues(source).Inc()
}

func (m *Metrics) GRPCRequest(method, code string) {
	if m == nil {
		return
	}
	m.GRPCRequestsTotal.WithLabelValues(method, code).Inc()
}

func (m *Metrics) HTTPRequest(method, route, status string, seconds float64) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, route, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(seconds)
}
