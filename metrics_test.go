package userauth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/userauth/store/memory"
)

func TestMetricsNilAndDisabledAreInert(t *testing.T) {
	var nilMetrics *Metrics
	for name, m := range map[string]*Metrics{
		"nil":      nilMetrics,
		"disabled": NewMetrics(MetricsConfig{EnableLatencyHistograms: true}),
	} {
		t.Run(name, func(t *testing.T) {
			m.Inc(MetricLogout)
			m.Observe(MetricLoginLatency, time.Second)

			if m.Enabled() || m.LatencyEnabled() {
				t.Fatal("expected metrics to report disabled")
			}
			if got := m.Value(MetricLogout); got != 0 {
				t.Fatalf("Value = %d, want 0", got)
			}
			snap := m.Snapshot()
			if len(snap.Counters) != 0 || len(snap.Histograms) != 0 {
				t.Fatalf("expected empty snapshot, got %+v", snap)
			}
		})
	}
}

func TestMetricsCountsPerID(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	for range 3 {
		m.Inc(MetricLoginFailure)
	}
	m.Inc(MetricPasswordRehash)
	m.Inc(metricIDCount)
	m.Inc(metricIDCount + 7)

	snap := m.Snapshot()
	if snap.Counters[MetricLoginFailure] != 3 || snap.Counters[MetricPasswordRehash] != 1 {
		t.Fatalf("unexpected counters: %v", snap.Counters)
	}
	if _, ok := snap.Counters[MetricLoginLatency]; ok {
		t.Fatal("latency id must not appear as a counter")
	}
	if len(snap.Counters) != int(metricIDCount)-1 {
		t.Fatalf("expected every counter id in snapshot, got %d", len(snap.Counters))
	}
	if got := m.Value(metricIDCount); got != 0 {
		t.Fatalf("out of range Value = %d, want 0", got)
	}
}

func TestMetricsParallelIncrements(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	const workers, each = 16, 5000
	var wg sync.WaitGroup
	for range workers {
		wg.Go(func() {
			for range each {
				m.Inc(MetricSessionResolved)
				m.Inc(MetricSessionRejected)
			}
		})
	}
	wg.Wait()

	for _, id := range []MetricID{MetricSessionResolved, MetricSessionRejected} {
		if got := m.Value(id); got != workers*each {
			t.Fatalf("metric %d = %d, want %d", id, got, workers*each)
		}
	}
}

func TestMetricsLatencyBuckets(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})

	tests := []struct {
		d      time.Duration
		bucket int
	}{
		{0, 0},
		{5 * time.Millisecond, 0},
		{5*time.Millisecond + 1, 1},
		{30 * time.Millisecond, 3},
		{250 * time.Millisecond, 5},
		{500 * time.Millisecond, 6},
		{2 * time.Second, 7},
		{time.Hour, 7},
	}
	want := make([]uint64, len(HistogramBounds)+1)
	for _, tt := range tests {
		m.Observe(MetricLoginLatency, tt.d)
		want[tt.bucket]++
	}
	m.Observe(MetricLoginSuccess, time.Millisecond)

	got := m.Snapshot().Histograms[MetricLoginLatency]
	if len(got) != len(want) {
		t.Fatalf("expected %d buckets, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("bucket %d = %d, want %d (all: %v)", i, got[i], want[i], got)
		}
	}
}

func TestMetricsLatencyNeedsFlag(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	m.Observe(MetricLoginLatency, time.Millisecond)

	if m.LatencyEnabled() {
		t.Fatal("latency should be off without EnableLatencyHistograms")
	}
	if _, ok := m.Snapshot().Histograms[MetricLoginLatency]; ok {
		t.Fatal("expected no histogram")
	}
}

func TestManagerMetricsTrackOutcomes(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, testConfig(), memory.New())

	user, _ := m.Register(ctx, "a@x.com", "pw1")
	tok, _ := m.Login(ctx, "a@x.com", "pw1")
	_, _ = m.ResolveSession(ctx, tok)
	_, _ = m.ResolveSession(ctx, "bogus")
	_ = m.Logout(ctx, user.ID)
	r, _ := m.RequestPasswordReset(ctx, "a@x.com")
	_ = m.ConfirmPasswordReset(ctx, r, "pw2")
	_ = m.ConfirmPasswordReset(ctx, r, "pw3")

	snap := m.MetricsSnapshot()
	want := map[MetricID]uint64{
		MetricRegisterSuccess:             1,
		MetricLoginSuccess:                1,
		MetricSessionResolved:             1,
		MetricSessionRejected:             1,
		MetricLogout:                      1,
		MetricPasswordResetRequest:        1,
		MetricPasswordResetConfirmSuccess: 1,
		MetricPasswordResetConfirmFailure: 1,
		MetricStoreUnavailable:            0,
	}
	for id, v := range want {
		if snap.Counters[id] != v {
			t.Fatalf("metric %d expected %d, got %d", id, v, snap.Counters[id])
		}
	}

	var observed uint64
	for _, n := range snap.Histograms[MetricLoginLatency] {
		observed += n
	}
	if observed != 1 {
		t.Fatalf("expected one login latency observation, got %d", observed)
	}
}
