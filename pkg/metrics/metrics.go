// Package metrics implements the service's counters and latency
// histogram (SPEC_FULL.md §4.12). Counters live as atomic.Int64 fields
// for cheap hot-path increments and are mirrored into prometheus.Counters
// registered on a private registry, so tests can construct isolated
// instances instead of sharing the global default registry.
package metrics

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is the service's counter and latency state. The zero value is
// not usable; construct with New.
type Metrics struct {
	AssessmentsStarted         counter
	AssessmentsCompleted       counter
	ReceiptVerifications       counter
	ReceiptVerificationFailures counter

	registry *prometheus.Registry

	latMu  sync.Mutex
	lat    []float64
	latCap int
	latPos int
}

// New constructs a Metrics instance backed by a fresh, private
// prometheus.Registry, with a verify-latency ring buffer holding the last
// latencyCap samples.
func New(latencyCap int) *Metrics {
	if latencyCap <= 0 {
		latencyCap = 1000
	}
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		latCap:   latencyCap,
	}
	m.AssessmentsStarted.register(m.registry, "assessments_started", "Tickets whose build was started.")
	m.AssessmentsCompleted.register(m.registry, "assessments_completed", "Tickets successfully built.")
	m.ReceiptVerifications.register(m.registry, "receipt_verifications", "Total /verify calls.")
	m.ReceiptVerificationFailures.register(m.registry, "receipt_verification_failures", "/verify calls that failed with a handler or storage error (not valid=false verdicts).")
	return m
}

// Registry exposes the private prometheus.Registry for the /metrics
// handler (promhttp.HandlerFor).
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveVerifyLatency records one /verify call's latency in milliseconds
// into the ring buffer.
func (m *Metrics) ObserveVerifyLatency(ms float64) {
	m.latMu.Lock()
	defer m.latMu.Unlock()
	if len(m.lat) < m.latCap {
		m.lat = append(m.lat, ms)
	} else {
		m.lat[m.latPos] = ms
		m.latPos = (m.latPos + 1) % m.latCap
	}
}

// Percentiles holds the p50/p90/p99 of the current latency ring buffer
// contents, in milliseconds.
type Percentiles struct {
	P50 float64 `json:"p50_ms"`
	P90 float64 `json:"p90_ms"`
	P99 float64 `json:"p99_ms"`
	N   int     `json:"sample_count"`
}

// LatencyPercentiles sorts a copy of the current ring buffer and reports
// p50/p90/p99, for /metrics.json.
func (m *Metrics) LatencyPercentiles() Percentiles {
	m.latMu.Lock()
	samples := make([]float64, len(m.lat))
	copy(samples, m.lat)
	m.latMu.Unlock()

	if len(samples) == 0 {
		return Percentiles{}
	}
	sort.Float64s(samples)
	return Percentiles{
		P50: percentile(samples, 0.50),
		P90: percentile(samples, 0.90),
		P99: percentile(samples, 0.99),
		N:   len(samples),
	}
}

func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	idx := int(p * float64(len(sorted)-1))
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// counter pairs an atomic.Int64 with the prometheus.Counter it mirrors
// into, so hot-path code increments one cheap field and Prometheus
// scraping stays in sync.
type counter struct {
	value atomic.Int64
	promC prometheus.Counter
}

func (c *counter) register(reg *prometheus.Registry, name, help string) {
	c.promC = prometheus.NewCounter(prometheus.CounterOpts{Name: name, Help: help})
	reg.MustRegister(c.promC)
}

// Inc increments the counter by one, updating both the in-process value
// and the mirrored Prometheus series.
func (c *counter) Inc() {
	c.value.Add(1)
	c.promC.Inc()
}

// Load returns the current counter value.
func (c *counter) Load() int64 {
	return c.value.Load()
}

// Snapshot is the /metrics.json counter payload.
type Snapshot struct {
	AssessmentsStarted          int64       `json:"assessments_started"`
	AssessmentsCompleted        int64       `json:"assessments_completed"`
	ReceiptVerifications        int64       `json:"receipt_verifications"`
	ReceiptVerificationFailures int64       `json:"receipt_verification_failures"`
	VerifyLatency               Percentiles `json:"verify_latency"`
}

// Snapshot reports the current counters and latency percentiles together.
func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		AssessmentsStarted:          m.AssessmentsStarted.Load(),
		AssessmentsCompleted:        m.AssessmentsCompleted.Load(),
		ReceiptVerifications:        m.ReceiptVerifications.Load(),
		ReceiptVerificationFailures: m.ReceiptVerificationFailures.Load(),
		VerifyLatency:               m.LatencyPercentiles(),
	}
}
