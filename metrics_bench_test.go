package userauth

import (
	"testing"
	"time"
)

func BenchmarkMetrics(b *testing.B) {
	b.Run("inc", func(b *testing.B) {
		m := NewMetrics(MetricsConfig{Enabled: true})
		b.ReportAllocs()
		for b.Loop() {
			m.Inc(MetricLoginSuccess)
		}
	})

	b.Run("inc_off", func(b *testing.B) {
		var m *Metrics
		b.ReportAllocs()
		for b.Loop() {
			m.Inc(MetricLoginSuccess)
		}
	})

	b.Run("inc_contended", func(b *testing.B) {
		m := NewMetrics(MetricsConfig{Enabled: true})
		b.ReportAllocs()
		b.RunParallel(func(pb *testing.PB) {
			for pb.Next() {
				m.Inc(MetricSessionResolved)
			}
		})
	})

	b.Run("observe", func(b *testing.B) {
		m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})
		d := 120 * time.Millisecond
		b.ReportAllocs()
		for b.Loop() {
			m.Observe(MetricLoginLatency, d)
		}
	})

	b.Run("snapshot", func(b *testing.B) {
		m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})
		m.Inc(MetricRegisterSuccess)
		m.Observe(MetricLoginLatency, time.Millisecond)
		b.ReportAllocs()
		for b.Loop() {
			_ = m.Snapshot()
		}
	})
}
