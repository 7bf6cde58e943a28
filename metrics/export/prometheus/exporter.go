package prometheus

import (
	"errors"
	"net/http"

	"github.com/MrEthical07/userauth"
	"github.com/MrEthical07/userauth/metrics/export/internaldefs"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var ErrNilSource = errors.New("nil metrics source")

// Source is satisfied by *userauth.Manager.
type Source interface {
	MetricsSnapshot() userauth.MetricsSnapshot
	AuditDropped() uint64
}

type counterDesc struct {
	id   userauth.MetricID
	desc *prom.Desc
}

type histogramDesc struct {
	id   userauth.MetricID
	desc *prom.Desc
}

// Exporter is a prometheus.Collector that reads a Manager snapshot on every
// scrape. Counters missing from the snapshot (metrics disabled) are skipped.
type Exporter struct {
	source       Source
	counters     []counterDesc
	histograms   []histogramDesc
	auditDropped *prom.Desc
	bounds       []float64
}

var _ prom.Collector = (*Exporter)(nil)

func NewExporter(source Source) (*Exporter, error) {
	if source == nil {
		return nil, ErrNilSource
	}

	e := &Exporter{
		source:     source,
		counters:   make([]counterDesc, 0, len(internaldefs.CounterDefs)),
		histograms: make([]histogramDesc, 0, len(internaldefs.HistogramDefs)),
		bounds:     internaldefs.UpperBoundsSeconds(),
	}
	for _, def := range internaldefs.CounterDefs {
		e.counters = append(e.counters, counterDesc{
			id:   def.ID,
			desc: prom.NewDesc(def.Name, def.Help, nil, nil),
		})
	}
	for _, def := range internaldefs.HistogramDefs {
		e.histograms = append(e.histograms, histogramDesc{
			id:   def.ID,
			desc: prom.NewDesc(def.Name, def.Help, nil, nil),
		})
	}
	e.auditDropped = prom.NewDesc(internaldefs.AuditDropped.Name, internaldefs.AuditDropped.Help, nil, nil)
	return e, nil
}

func (e *Exporter) Describe(ch chan<- *prom.Desc) {
	for _, c := range e.counters {
		ch <- c.desc
	}
	for _, h := range e.histograms {
		ch <- h.desc
	}
	ch <- e.auditDropped
}

func (e *Exporter) Collect(ch chan<- prom.Metric) {
	snapshot := e.source.MetricsSnapshot()

	for _, c := range e.counters {
		v, ok := snapshot.Counters[c.id]
		if !ok {
			continue
		}
		ch <- prom.MustNewConstMetric(c.desc, prom.CounterValue, float64(v))
	}

	for _, h := range e.histograms {
		raw, ok := snapshot.Histograms[h.id]
		if !ok {
			continue
		}
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(raw))
		buckets := make(map[float64]uint64, len(e.bounds))
		for i, bound := range e.bounds {
			buckets[bound] = cumulative[i]
		}
		// Observation sums are not tracked; only bucket counts are exact.
		ch <- prom.MustNewConstHistogram(h.desc, cumulative[len(cumulative)-1], 0, buckets)
	}

	ch <- prom.MustNewConstMetric(e.auditDropped, prom.CounterValue, float64(e.source.AuditDropped()))
}

// Handler serves only this exporter's series from a private registry. Use
// Register to add the exporter to a shared registry instead.
func (e *Exporter) Handler() http.Handler {
	reg := prom.NewRegistry()
	reg.MustRegister(e)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// Register adds the exporter to reg.
func (e *Exporter) Register(reg prom.Registerer) error {
	return reg.Register(e)
}
