// Package prometheus is the concrete Prometheus-backed implementation of
// pkg/metrics.GatewayMetrics, grounded on the teacher's
// pkg/metrics/prometheus package (NewCacheMetrics, NewNFSMetrics): a
// struct of promauto-registered collectors behind a constructor that
// takes an explicit *prometheus.Registry, so the caller controls whether
// metrics exist at all.
package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/VacuolePaoo/gatewaygui/pkg/metrics"
)

// gatewayMetrics is the Prometheus implementation of metrics.GatewayMetrics.
type gatewayMetrics struct {
	bytesTotal      *prometheus.CounterVec
	messagesTotal   *prometheus.CounterVec
	latencyMS       *prometheus.HistogramVec
	connections     prometheus.Gauge
	cacheOpsTotal   *prometheus.CounterVec
	cacheOpBytes    *prometheus.HistogramVec
	cacheBytesGauge prometheus.Gauge
}

// New registers a full set of gateway collectors against reg and returns
// a metrics.GatewayMetrics backed by them. Pass a fresh
// prometheus.NewRegistry() (or prometheus.DefaultRegisterer wrapped in a
// *prometheus.Registry) from the caller; passing nil is not supported —
// callers that want metrics disabled should use metrics.NoOp instead.
func New(reg *prometheus.Registry) metrics.GatewayMetrics {
	return &gatewayMetrics{
		bytesTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_transport_bytes_total",
				Help: "Total bytes moved by transport and direction.",
			},
			[]string{"transport", "direction"},
		),
		messagesTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_messages_total",
				Help: "Total control/token messages processed by transport, kind, and outcome.",
			},
			[]string{"transport", "kind", "outcome"},
		),
		latencyMS: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gateway_operation_latency_milliseconds",
				Help:    "Latency of gateway operations in milliseconds.",
				Buckets: []float64{0.5, 1, 5, 10, 30, 50, 100, 250, 500, 1000, 5000},
			},
			[]string{"operation"},
		),
		connections: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "gateway_quic_connections",
				Help: "Current number of live QUIC peer connections.",
			},
		),
		cacheOpsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_cache_operations_total",
				Help: "Total cache operations by kind (put, get_hit, get_miss, evict).",
			},
			[]string{"op"},
		),
		cacheOpBytes: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gateway_cache_operation_bytes",
				Help:    "Distribution of bytes moved per cache operation.",
				Buckets: []float64{1024, 16384, 131072, 1048576, 10485760, 104857600},
			},
			[]string{"op"},
		),
		cacheBytesGauge: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "gateway_cache_bytes",
				Help: "Current cache byte usage against its eviction budget.",
			},
		),
	}
}

func (m *gatewayMetrics) RecordBytes(transport, direction string, n uint64) {
	m.bytesTotal.WithLabelValues(transport, direction).Add(float64(n))
}

func (m *gatewayMetrics) RecordMessage(transport, kind, outcome string) {
	m.messagesTotal.WithLabelValues(transport, kind, outcome).Inc()
}

func (m *gatewayMetrics) RecordLatencyMS(operation string, ms float64) {
	m.latencyMS.WithLabelValues(operation).Observe(ms)
}

func (m *gatewayMetrics) SetConnections(n int) {
	m.connections.Set(float64(n))
}

func (m *gatewayMetrics) RecordCacheOp(op string, bytes uint64) {
	m.cacheOpsTotal.WithLabelValues(op).Inc()
	if bytes > 0 {
		m.cacheOpBytes.WithLabelValues(op).Observe(float64(bytes))
	}
}

func (m *gatewayMetrics) SetCacheBytes(n uint64) {
	m.cacheBytesGauge.Set(float64(n))
}

var _ metrics.GatewayMetrics = (*gatewayMetrics)(nil)
