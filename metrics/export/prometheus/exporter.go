package prometheus

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aurorafin/identity/internal/metrics"
)

// Source is the view of the engine the exporter needs. *identity.Engine
// satisfies it.
type Source interface {
	MetricsSnapshot() map[metrics.ID]uint64
	AuditDropped() uint64
}

// Exporter is a prometheus.Collector over an engine's counter snapshot.
// Counters are read fresh on every scrape; the exporter holds no state of
// its own.
type Exporter struct {
	source Source
	descs  map[metrics.ID]*prometheus.Desc
}

// New builds an Exporter for the given source.
func New(source Source) *Exporter {
	descs := make(map[metrics.ID]*prometheus.Desc, len(metrics.IDs()))
	for _, id := range metrics.IDs() {
		descs[id] = prometheus.NewDesc(
			"identity_"+id.String()+"_total",
			"Engine counter "+id.String()+".",
			nil, nil,
		)
	}
	return &Exporter{source: source, descs: descs}
}

// Describe implements prometheus.Collector.
func (e *Exporter) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range e.descs {
		ch <- d
	}
}

// Collect implements prometheus.Collector.
func (e *Exporter) Collect(ch chan<- prometheus.Metric) {
	snapshot := e.source.MetricsSnapshot()
	for id, d := range e.descs {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(snapshot[id]))
	}
}

// Handler registers the exporter on a fresh registry and returns a scrape
// handler for it. The audit drop counter rides along as a gauge so
// dispatcher backpressure is visible without a separate endpoint.
func Handler(source Source) http.Handler {
	reg := prometheus.NewRegistry()
	reg.MustRegister(New(source))
	reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "identity_audit_dropped_total",
		Help: "Audit events dropped by the async dispatcher.",
	}, func() float64 {
		return float64(source.AuditDropped())
	}))
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
