// Package metrics provides Prometheus metrics for mementod
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for mementod
type Metrics struct {
	// HTTP request metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// gRPC request metrics
	GrpcRequestsTotal    *prometheus.CounterVec
	GrpcRequestDuration  *prometheus.HistogramVec
	GrpcRequestsInFlight prometheus.Gauge

	// Catalog metrics
	CatalogOperationsTotal   *prometheus.CounterVec
	CatalogOperationDuration *prometheus.HistogramVec
	CatalogSnapshotsTotal    prometheus.Gauge
	CatalogResourcesTotal    prometheus.Gauge

	// Navigation metrics
	SelectionsTotal        *prometheus.CounterVec
	CorruptTimestampsTotal prometheus.Counter

	// Server metrics
	ServerUptimeSeconds prometheus.Gauge
	ServerStartTime     time.Time
}

// NewMetrics creates the metrics and registers them with reg. A nil reg uses
// the default Prometheus registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	m := &Metrics{
		ServerStartTime: time.Now(),
	}

	m.HTTPRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mementod_http_requests_total",
			Help: "Total number of Memento HTTP requests",
		},
		[]string{"route", "status"},
	)

	m.HTTPRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mementod_http_request_duration_seconds",
			Help:    "Duration of Memento HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	m.HTTPRequestsInFlight = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "mementod_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	m.GrpcRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mementod_grpc_requests_total",
			Help: "Total number of gRPC requests",
		},
		[]string{"method", "status"},
	)

	m.GrpcRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mementod_grpc_request_duration_seconds",
			Help:    "Duration of gRPC requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	m.GrpcRequestsInFlight = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "mementod_grpc_requests_in_flight",
			Help: "Number of gRPC requests currently being processed",
		},
	)

	m.CatalogOperationsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mementod_catalog_operations_total",
			Help: "Total number of snapshot catalog operations",
		},
		[]string{"operation", "status"},
	)

	m.CatalogOperationDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mementod_catalog_operation_duration_seconds",
			Help:    "Duration of snapshot catalog operations in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"operation"},
	)

	m.CatalogSnapshotsTotal = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "mementod_catalog_snapshots_total",
			Help: "Total number of snapshots in the catalog",
		},
	)

	m.CatalogResourcesTotal = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "mementod_catalog_resources_total",
			Help: "Total number of distinct resources in the catalog",
		},
	)

	m.SelectionsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mementod_selections_total",
			Help: "Datetime negotiations by outcome",
		},
		[]string{"outcome"},
	)

	m.CorruptTimestampsTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "mementod_corrupt_timestamps_total",
			Help: "Snapshots skipped during navigation because their timestamp did not parse",
		},
	)

	m.ServerUptimeSeconds = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "mementod_server_uptime_seconds",
			Help: "Server uptime in seconds",
		},
	)

	return m
}

// RunUptime updates the uptime gauge every interval until ctx is done
func (m *Metrics) RunUptime(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.ServerUptimeSeconds.Set(time.Since(m.ServerStartTime).Seconds())
		}
	}
}

// RecordHTTPRequest records a completed HTTP request
func (m *Metrics) RecordHTTPRequest(route string, status string, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(route, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(route).Observe(duration.Seconds())
}

// RecordGrpcRequest records a gRPC request with its status
func (m *Metrics) RecordGrpcRequest(method string, status string, duration time.Duration) {
	m.GrpcRequestsTotal.WithLabelValues(method, status).Inc()
	m.GrpcRequestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordCatalogOperation records a catalog operation
func (m *Metrics) RecordCatalogOperation(operation string, status string, duration time.Duration) {
	m.CatalogOperationsTotal.WithLabelValues(operation, status).Inc()
	m.CatalogOperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordSelection counts one datetime negotiation and the corrupt timestamps
// it had to skip
func (m *Metrics) RecordSelection(outcome string, corrupt int) {
	m.SelectionsTotal.WithLabelValues(outcome).Inc()
	if corrupt > 0 {
		m.CorruptTimestampsTotal.Add(float64(corrupt))
	}
}

// UpdateCatalogStats updates catalog size gauges
func (m *Metrics) UpdateCatalogStats(snapshots, resources int64) {
	m.CatalogSnapshotsTotal.Set(float64(snapshots))
	m.CatalogResourcesTotal.Set(float64(resources))
}
