// Package metrics exposes Prometheus counters for poll cycles.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/sergeygrin4/fb-job-parser-service/internal/types"
)

const namespace = "fbparser"

type Metrics struct {
	CyclesTotal       *prometheus.CounterVec
	CycleDuration     prometheus.Histogram
	LastCycleUnix     prometheus.Gauge
	SourcesPolled     prometheus.Gauge
	ItemsTotal        *prometheus.CounterVec
	SourceErrorsTotal *prometheus.CounterVec
	AlertsTotal       prometheus.Counter
	DedupeSize        prometheus.Gauge
}

// NewRegistry returns a registry carrying the Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// New registers all metrics with reg. A nil reg uses a private registry so tests
// can build several pipelines without duplicate registration panics.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		CyclesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Poll cycles by outcome",
		}, []string{"outcome"}),
		CycleDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Wall time of a poll cycle",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
		LastCycleUnix: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_cycle_timestamp_seconds",
			Help:      "Unix time the last cycle finished",
		}),
		SourcesPolled: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sources",
			Help:      "Sources returned by the registry in the last cycle",
		}),
		ItemsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_total",
			Help:      "Items by pipeline stage",
		}, []string{"stage"}),
		SourceErrorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_errors_total",
			Help:      "Source failures by kind",
		}, []string{"kind"}),
		AlertsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_total",
			Help:      "Operator alerts raised",
		}),
		DedupeSize: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dedupe_fingerprints",
			Help:      "Fingerprints held by the dedupe store",
		}),
	}
}

func (m *Metrics) ObserveCycle(r types.CycleResult) {
	outcome := "ok"
	switch {
	case r.Panic != "":
		outcome = "panic"
	case r.RegistryError != "" || r.SourceErrors > 0:
		outcome = "degraded"
	}

	m.CyclesTotal.WithLabelValues(outcome).Inc()
	m.CycleDuration.Observe(r.Duration().Seconds())
	m.LastCycleUnix.Set(float64(r.FinishedAt.Unix()))
	m.SourcesPolled.Set(float64(r.Sources))

	m.ItemsTotal.WithLabelValues("fetched").Add(float64(r.Fetched))
	m.ItemsTotal.WithLabelValues("skipped").Add(float64(r.Skipped))
	m.ItemsTotal.WithLabelValues("filtered_in").Add(float64(r.FilteredIn))
	m.ItemsTotal.WithLabelValues("deduplicated").Add(float64(r.Deduplicated))
	m.ItemsTotal.WithLabelValues("delivered").Add(float64(r.Delivered))
	m.ItemsTotal.WithLabelValues("downstream_duplicate").Add(float64(r.DownstreamDuplicates))
	m.ItemsTotal.WithLabelValues("failed").Add(float64(r.Failed))
}

func (m *Metrics) SourceError(kind types.FailureKind) {
	m.SourceErrorsTotal.WithLabelValues(string(kind)).Inc()
}
