package sessionauth

import (
	"sync"
	"testing"
	"time"
)

func TestMetricsCounters(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	m.Inc(MetricLoginSuccess)
	m.Inc(MetricLoginSuccess)
	m.Inc(MetricRefreshReplay)

	if got := m.Value(MetricLoginSuccess); got != 2 {
		t.Fatalf("login success = %d, want 2", got)
	}
	if got := m.Value(MetricRefreshReplay); got != 1 {
		t.Fatalf("refresh replay = %d, want 1", got)
	}
	if got := m.Value(MetricLogout); got != 0 {
		t.Fatalf("untouched counter = %d, want 0", got)
	}
}

func TestMetricsDisabled(t *testing.T) {
	m := NewMetrics(MetricsConfig{})

	m.Inc(MetricLoginSuccess)
	if got := m.Value(MetricLoginSuccess); got != 0 {
		t.Fatalf("disabled counter = %d, want 0", got)
	}

	snap := m.Snapshot()
	if len(snap.Histograms) != 0 {
		t.Fatal("disabled metrics produced histograms")
	}
}

func TestMetricsNilReceiver(t *testing.T) {
	var m *Metrics

	m.Inc(MetricLoginSuccess)
	m.Observe(MetricValidateLatency, time.Millisecond)
	if m.Value(MetricLoginSuccess) != 0 {
		t.Fatal("nil metrics returned a value")
	}
	if m.Enabled() || m.LatencyEnabled() {
		t.Fatal("nil metrics reported enabled")
	}
	_ = m.Snapshot()
}

func TestLatencyHistogramBuckets(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})

	samples := []struct {
		d      time.Duration
		bucket int
	}{
		{time.Millisecond, 0},
		{5 * time.Millisecond, 0},
		{8 * time.Millisecond, 1},
		{20 * time.Millisecond, 2},
		{40 * time.Millisecond, 3},
		{90 * time.Millisecond, 4},
		{200 * time.Millisecond, 5},
		{400 * time.Millisecond, 6},
		{2 * time.Second, 7},
	}
	for _, s := range samples {
		m.Observe(MetricValidateLatency, s.d)
	}

	snap := m.Snapshot()
	buckets, ok := snap.Histograms[MetricValidateLatency]
	if !ok {
		t.Fatal("latency histogram missing from snapshot")
	}

	want := make([]uint64, histBucketCount)
	for _, s := range samples {
		want[s.bucket]++
	}
	for i := range want {
		if buckets[i] != want[i] {
			t.Fatalf("bucket %d = %d, want %d", i, buckets[i], want[i])
		}
	}
}

func TestObserveIgnoredWithoutHistograms(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	m.Observe(MetricValidateLatency, time.Millisecond)
	snap := m.Snapshot()
	if len(snap.Histograms) != 0 {
		t.Fatal("histogram recorded while disabled")
	}
}

func TestMetricsConcurrentIncrements(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	const goroutines = 8
	const perGoroutine = 1000

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				m.Inc(MetricValidateSuccess)
			}
		}()
	}
	wg.Wait()

	if got := m.Value(MetricValidateSuccess); got != goroutines*perGoroutine {
		t.Fatalf("counter = %d, want %d", got, goroutines*perGoroutine)
	}
}
