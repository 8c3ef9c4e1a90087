package observability

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "seaice_drift"

// Metrics holds the Prometheus counters, histograms, and gauges for a drift run.
type Metrics struct {
	DatasetsProcessed prometheus.Counter
	DatasetFailures   *prometheus.CounterVec   // labels: stage
	StageDuration     *prometheus.HistogramVec // labels: stage
	CurrentStage      prometheus.Gauge

	// Mask cache lookups.
	MaskCache *prometheus.CounterVec // labels: result={hit,miss}

	// Per-dataset results, labels: dataset, relationship={siconc,sivol}.
	SlopeRatio *prometheus.GaugeVec
	Error      *prometheus.GaugeVec

	registry *prometheus.Registry
}

// NewMetrics creates all run metrics on a dedicated registry so they can be
// exported as a textfile at the end of the run.
func NewMetrics() *Metrics {
	m := newMetrics()
	m.registry = prometheus.NewRegistry()
	m.registry.MustRegister(
		m.DatasetsProcessed,
		m.DatasetFailures,
		m.StageDuration,
		m.CurrentStage,
		m.MaskCache,
		m.SlopeRatio,
		m.Error,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		DatasetsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "datasets_processed_total",
			Help:      "Datasets that completed every stage.",
		}),
		DatasetFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dataset_failures_total",
			Help:      "Datasets dropped from the run, by failing stage.",
		}, []string{"stage"}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Time spent per dataset in each pipeline stage.",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 30, 120},
		}, []string{"stage"}),
		CurrentStage: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "current_stage",
			Help:      "Ordinal of the stage the pipeline is in.",
		}),
		MaskCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mask_cache_total",
			Help:      "Spatial mask cache lookups by result.",
		}, []string{"result"}),
		SlopeRatio: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "slope_ratio",
			Help:      "Dataset slope divided by reference slope.",
		}, []string{"dataset", "relationship"}),
		Error: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "relative_error",
			Help:      "Combined relative error against the reference.",
		}, []string{"dataset", "relationship"}),
	}
}

// WriteTextfile writes every registered metric in the Prometheus text
// format, for pickup by a node exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if m.registry == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

// Handler serves the run registry for live scraping. Unregistered test
// metrics serve an empty registry.
func (m *Metrics) Handler() http.Handler {
	reg := m.registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
