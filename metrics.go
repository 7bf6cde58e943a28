package userauth

import (
	"sort"
	"sync/atomic"
	"time"
)

// MetricID identifies one Manager counter.
type MetricID uint16

const (
	MetricRegisterSuccess MetricID = iota
	MetricRegisterDuplicate
	MetricLoginSuccess
	MetricLoginFailure
	MetricSessionResolved
	MetricSessionRejected
	MetricLogout
	MetricPasswordResetRequest
	MetricPasswordResetUnknownEmail
	MetricPasswordResetConfirmSuccess
	MetricPasswordResetConfirmFailure
	MetricPasswordRehash
	MetricStoreUnavailable
	// MetricLoginLatency only carries a histogram.
	MetricLoginLatency
	metricIDCount
)

// HistogramBounds are the inclusive upper bounds of the login latency
// buckets. One extra overflow bucket follows the last bound.
var HistogramBounds = [...]time.Duration{
	5 * time.Millisecond,
	10 * time.Millisecond,
	25 * time.Millisecond,
	50 * time.Millisecond,
	100 * time.Millisecond,
	250 * time.Millisecond,
	500 * time.Millisecond,
}

const latencyBuckets = len(HistogramBounds) + 1

// counterCell sits alone on a cache line so hot counters updated from
// different cores do not contend.
type counterCell struct {
	n atomic.Uint64
	_ [56]byte
}

// Metrics holds lock-free counters for Manager outcomes. A nil or disabled
// Metrics is a no-op.
type Metrics struct {
	on      bool
	latency bool
	cells   [metricIDCount]counterCell
	hist    [latencyBuckets]atomic.Uint64
}

// MetricsSnapshot is a point-in-time copy of all counters.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		on:      cfg.Enabled,
		latency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

func (m *Metrics) Enabled() bool { return m != nil && m.on }

func (m *Metrics) LatencyEnabled() bool { return m != nil && m.latency }

func (m *Metrics) Inc(id MetricID) {
	if m.Enabled() && id < metricIDCount {
		m.cells[id].n.Add(1)
	}
}

// Observe records d in the login latency histogram. Other ids are ignored.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if id != MetricLoginLatency || !m.LatencyEnabled() {
		return
	}
	i := sort.Search(len(HistogramBounds), func(i int) bool { return d <= HistogramBounds[i] })
	m.hist[i].Add(1)
}

func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return m.cells[id].n.Load()
}

// Snapshot copies every counter. The histogram is present only when latency
// recording is on; MetricLoginLatency never appears in Counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	s := MetricsSnapshot{
		Counters:   map[MetricID]uint64{},
		Histograms: map[MetricID][]uint64{},
	}
	if !m.Enabled() {
		return s
	}

	for id := range metricIDCount {
		if id != MetricLoginLatency {
			s.Counters[id] = m.cells[id].n.Load()
		}
	}
	if m.latency {
		buckets := make([]uint64, latencyBuckets)
		for i := range buckets {
			buckets[i] = m.hist[i].Load()
		}
		s.Histograms[MetricLoginLatency] = buckets
	}
	return s
}
