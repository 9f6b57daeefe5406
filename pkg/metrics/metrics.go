// Package metrics defines the gateway's optional Prometheus exposition
// surface, following the teacher's "nil-safe interface + registered
// constructor" pattern (pkg/metrics in the teacher repo): callers accept
// a possibly-nil GatewayMetrics and skip recording when it is nil, so
// Prometheus wiring is entirely zero-cost when disabled.
package metrics

import "time"

// GatewayMetrics is implemented by a concrete metrics backend (currently
// only the Prometheus one in pkg/metrics/prometheus). A nil GatewayMetrics
// is valid and every call site using it must check for nil first, or use
// the NoOp implementation below.
type GatewayMetrics interface {
	// RecordBytes records bytes transferred in the given direction
	// ("sent" or "received") over the given transport ("quic" or "udp").
	RecordBytes(transport, direction string, n uint64)

	// RecordMessage records one control/token message of the given kind
	// having been processed, with its outcome ("ok" or "error").
	RecordMessage(transport, kind, outcome string)

	// RecordLatencyMS records a round-trip latency sample in milliseconds
	// for the named operation.
	RecordLatencyMS(operation string, ms float64)

	// SetConnections reports the current number of live QUIC connections.
	SetConnections(n int)

	// RecordCacheOp records a cache operation ("put", "get_hit",
	// "get_miss", "evict") and, where meaningful, the byte delta.
	RecordCacheOp(op string, bytes uint64)

	// SetCacheBytes reports the cache's current byte usage.
	SetCacheBytes(n uint64)
}

// NoOp is a GatewayMetrics that discards every observation. Use it as the
// default instead of a nil interface when a concrete value is required.
type NoOp struct{}

func (NoOp) RecordBytes(string, string, uint64)     {}
func (NoOp) RecordMessage(string, string, string)   {}
func (NoOp) RecordLatencyMS(string, float64)        {}
func (NoOp) SetConnections(int)                     {}
func (NoOp) RecordCacheOp(string, uint64)           {}
func (NoOp) SetCacheBytes(uint64)                   {}

var _ GatewayMetrics = NoOp{}

// since is a small helper call sites use to turn a start time into
// milliseconds without importing time themselves.
func since(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}

// Since reports the elapsed milliseconds since start.
func Since(start time.Time) float64 { return since(start) }
