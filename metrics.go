package authcore

import (
	"sync/atomic"
	"time"
)

// MetricID identifies a specific counter or histogram in the in-process
// metrics system.
type MetricID uint16

const (
	// MetricLoginSuccess is an exported constant or variable used by the authentication core.
	MetricLoginSuccess MetricID = iota
	// MetricLoginFailure is an exported constant or variable used by the authentication core.
	MetricLoginFailure
	// MetricLoginRateLimited is an exported constant or variable used by the authentication core.
	MetricLoginRateLimited
	// MetricRefreshSuccess is an exported constant or variable used by the authentication core.
	MetricRefreshSuccess
	// MetricRefreshFailure is an exported constant or variable used by the authentication core.
	MetricRefreshFailure
	// MetricRefreshReuseDetected is an exported constant or variable used by the authentication core.
	MetricRefreshReuseDetected
	// MetricRefreshRateLimited is an exported constant or variable used by the authentication core.
	MetricRefreshRateLimited
	// MetricLogout is an exported constant or variable used by the authentication core.
	MetricLogout
	// MetricLogoutAll is an exported constant or variable used by the authentication core.
	MetricLogoutAll
	// MetricFamilyCreated is an exported constant or variable used by the authentication core.
	MetricFamilyCreated
	// MetricFamilyRevoked is an exported constant or variable used by the authentication core.
	MetricFamilyRevoked
	// MetricHashUpgraded is an exported constant or variable used by the authentication core.
	MetricHashUpgraded
	// MetricVerifyLatency is an exported constant or variable used by the authentication core.
	MetricVerifyLatency

	metricIDCount
)

// Cache-line padding keeps hot counters from false sharing.
type paddedCounter struct {
	value uint64
	_     [64 - 8]byte
}

const latencyBucketCount = 8

var latencyBucketBoundsMs = [latencyBucketCount - 1]int64{5, 10, 25, 50, 100, 250, 500}

type latencyHistogram struct {
	buckets [latencyBucketCount]paddedCounter
}

// Metrics holds atomic counters and optional latency histograms.
//
// Metrics instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Metrics struct {
	enabled       bool
	latencyOn     bool
	counters      [metricIDCount]paddedCounter
	verifyLatency latencyHistogram
}

// MetricsSnapshot is a point-in-time deep copy of all metrics.
//
// MetricsSnapshot instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics creates a [Metrics] instance configured by the given
// [MetricsConfig]. When Enabled is false, all operations are no-ops.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:   cfg.Enabled,
		latencyOn: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

// Inc describes the inc operation and its observable behavior.
//
// Inc may return an error when input validation, dependency calls, or security checks fail.
// Inc does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe describes the observe operation and its observable behavior.
//
// Observe may return an error when input validation, dependency calls, or security checks fail.
// Observe does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.latencyOn || id != MetricVerifyLatency {
		return
	}
	atomic.AddUint64(&m.verifyLatency.buckets[bucketIndex(d)].value, 1)
}

// Value describes the value operation and its observable behavior.
//
// Value may return an error when input validation, dependency calls, or security checks fail.
// Value does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || !m.enabled || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot describes the snapshot operation and its observable behavior.
//
// Snapshot may return an error when input validation, dependency calls, or security checks fail.
// Snapshot does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, metricIDCount),
		Histograms: make(map[MetricID][]uint64),
	}
	if m == nil || !m.enabled {
		return snap
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		snap.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.latencyOn {
		buckets := make([]uint64, latencyBucketCount)
		for i := range buckets {
			buckets[i] = atomic.LoadUint64(&m.verifyLatency.buckets[i].value)
		}
		snap.Histograms[MetricVerifyLatency] = buckets
	}

	return snap
}

func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()
	for i, bound := range latencyBucketBoundsMs {
		if ms <= bound {
			return i
		}
	}
	return latencyBucketCount - 1
}
