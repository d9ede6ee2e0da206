package authcore

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMetricsDisabledIsNoOp(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: false})

	m.Inc(MetricLoginSuccess)
	m.Observe(MetricVerifyLatency, time.Millisecond)

	if got := m.Value(MetricLoginSuccess); got != 0 {
		t.Fatalf("disabled metrics must stay zero, got %d", got)
	}
	snap := m.Snapshot()
	if len(snap.Counters) != 0 || len(snap.Histograms) != 0 {
		t.Fatalf("disabled metrics must snapshot empty, got %+v", snap)
	}
}

func TestMetricsCountersAndSnapshot(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})

	for i := 0; i < 3; i++ {
		m.Inc(MetricLoginSuccess)
	}
	m.Inc(MetricRefreshReuseDetected)
	m.Observe(MetricVerifyLatency, 3*time.Millisecond)
	m.Observe(MetricVerifyLatency, 40*time.Millisecond)
	m.Observe(MetricVerifyLatency, 2*time.Second)

	if got := m.Value(MetricLoginSuccess); got != 3 {
		t.Fatalf("expected 3, got %d", got)
	}

	snap := m.Snapshot()
	if snap.Counters[MetricLoginSuccess] != 3 {
		t.Fatalf("snapshot counter mismatch: %d", snap.Counters[MetricLoginSuccess])
	}
	if snap.Counters[MetricRefreshReuseDetected] != 1 {
		t.Fatalf("snapshot counter mismatch: %d", snap.Counters[MetricRefreshReuseDetected])
	}

	buckets := snap.Histograms[MetricVerifyLatency]
	if len(buckets) != latencyBucketCount {
		t.Fatalf("expected %d buckets, got %d", latencyBucketCount, len(buckets))
	}
	if buckets[0] != 1 {
		t.Fatalf("3ms observation belongs in bucket 0, got %v", buckets)
	}
	if buckets[3] != 1 {
		t.Fatalf("40ms observation belongs in bucket 3, got %v", buckets)
	}
	if buckets[latencyBucketCount-1] != 1 {
		t.Fatalf("2s observation belongs in the overflow bucket, got %v", buckets)
	}

	// The snapshot is detached from live state.
	snap.Counters[MetricLoginSuccess] = 999
	buckets[0] = 999
	fresh := m.Snapshot()
	if fresh.Counters[MetricLoginSuccess] != 3 {
		t.Fatal("mutating a snapshot must not affect live counters")
	}
	if fresh.Histograms[MetricVerifyLatency][0] != 1 {
		t.Fatal("mutating a snapshot must not affect live histograms")
	}
}

func TestMetricsIgnoresUnknownIDs(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})

	m.Inc(metricIDCount + 10)
	m.Observe(MetricLoginSuccess, time.Millisecond)

	snap := m.Snapshot()
	for id, v := range snap.Counters {
		if v != 0 {
			t.Fatalf("counter %d unexpectedly non-zero", id)
		}
	}
	for _, v := range snap.Histograms[MetricVerifyLatency] {
		if v != 0 {
			t.Fatal("non-latency IDs must not feed the latency histogram")
		}
	}
}

func TestEngineMetricsTrackOperations(t *testing.T) {
	cfg := testConfig(t)

	engine, store, done := buildTestEngine(t, cfg, func(b *Builder) {
		b.WithMetricsEnabled(true)
	})
	defer done()

	seedUser(t, store, cfg, "alice@example.com", "hunter2!")

	ctx := context.Background()
	pair, err := engine.Login(ctx, Credential{
		Strategy:   StrategyPassword,
		Identifier: "alice@example.com",
		Secret:     "hunter2!",
	})
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	if _, err := engine.Login(ctx, Credential{
		Strategy:   StrategyPassword,
		Identifier: "alice@example.com",
		Secret:     "wrong",
	}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}

	if _, err := engine.Refresh(ctx, pair.RefreshToken); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if _, err := engine.Refresh(ctx, pair.RefreshToken); !errors.Is(err, ErrRefreshReuse) {
		t.Fatalf("expected ErrRefreshReuse, got %v", err)
	}

	snap := engine.MetricsSnapshot()
	if snap.Counters[MetricLoginSuccess] != 1 {
		t.Fatalf("login success counter: %d", snap.Counters[MetricLoginSuccess])
	}
	if snap.Counters[MetricLoginFailure] != 1 {
		t.Fatalf("login failure counter: %d", snap.Counters[MetricLoginFailure])
	}
	if snap.Counters[MetricFamilyCreated] != 1 {
		t.Fatalf("family created counter: %d", snap.Counters[MetricFamilyCreated])
	}
	if snap.Counters[MetricRefreshSuccess] != 1 {
		t.Fatalf("refresh success counter: %d", snap.Counters[MetricRefreshSuccess])
	}
	if snap.Counters[MetricRefreshReuseDetected] != 1 {
		t.Fatalf("reuse detected counter: %d", snap.Counters[MetricRefreshReuseDetected])
	}
	if snap.Counters[MetricFamilyRevoked] != 1 {
		t.Fatalf("family revoked counter: %d", snap.Counters[MetricFamilyRevoked])
	}
}
