package metrics

import "testing"

func TestCountersIncrementIndependently(t *testing.T) {
	m := New(10)
	m.AssessmentsStarted.Inc()
	m.AssessmentsStarted.Inc()
	m.ReceiptVerifications.Inc()

	snap := m.Snapshot()
	if snap.AssessmentsStarted != 2 {
		t.Errorf("AssessmentsStarted = %d, want 2", snap.AssessmentsStarted)
	}
	if snap.ReceiptVerifications != 1 {
		t.Errorf("ReceiptVerifications = %d, want 1", snap.ReceiptVerifications)
	}
	if snap.AssessmentsCompleted != 0 || snap.ReceiptVerificationFailures != 0 {
		t.Errorf("unrelated counters moved: %+v", snap)
	}
}

func TestLatencyPercentilesEmpty(t *testing.T) {
	m := New(10)
	p := m.LatencyPercentiles()
	if p.N != 0 || p.P50 != 0 || p.P90 != 0 || p.P99 != 0 {
		t.Errorf("empty percentiles = %+v, want all zero", p)
	}
}

func TestLatencyPercentilesComputed(t *testing.T) {
	m := New(100)
	for i := 1; i <= 100; i++ {
		m.ObserveVerifyLatency(float64(i))
	}
	p := m.LatencyPercentiles()
	if p.N != 100 {
		t.Fatalf("N = %d, want 100", p.N)
	}
	if p.P50 <= 0 || p.P50 > 100 {
		t.Errorf("P50 = %v out of expected range", p.P50)
	}
	if p.P99 < p.P90 || p.P90 < p.P50 {
		t.Errorf("percentiles not monotonic: p50=%v p90=%v p99=%v", p.P50, p.P90, p.P99)
	}
}

func TestLatencyRingBufferWraps(t *testing.T) {
	m := New(3)
	m.ObserveVerifyLatency(1)
	m.ObserveVerifyLatency(2)
	m.ObserveVerifyLatency(3)
	m.ObserveVerifyLatency(4) // should overwrite the oldest (1)

	m.latMu.Lock()
	samples := append([]float64(nil), m.lat...)
	m.latMu.Unlock()

	if len(samples) != 3 {
		t.Fatalf("ring buffer len = %d, want 3", len(samples))
	}
	for _, s := range samples {
		if s == 1 {
			t.Errorf("oldest sample (1) should have been evicted, got %v", samples)
		}
	}
}

func TestRegistryIsPrivateNotGlobal(t *testing.T) {
	m1 := New(10)
	m2 := New(10)
	if m1.Registry() == m2.Registry() {
		t.Error("two Metrics instances share a registry, want independent private registries")
	}
}
