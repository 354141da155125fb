package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// reconciliation pipeline.
type Metrics struct {
	FacilitiesClassified *prometheus.CounterVec // labels: reason
	PipelineRunning      prometheus.Gauge
	RunDuration          prometheus.Histogram
	CorrectionsWritten   prometheus.Gauge

	// Geocoding metrics.
	GeocodeAttempts  *prometheus.CounterVec   // labels: provider, outcome={success,no_match,error}
	GeocodeDuration  *prometheus.HistogramVec // labels: provider
	GeocodeCache     *prometheus.CounterVec   // labels: result={hit,miss}
	GeocodeAnomalies prometheus.Counter
}

// NewMetrics creates and registers all pipeline metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		FacilitiesClassified: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "facility_etl",
			Name:      "facilities_classified_total",
			Help:      "Facilities classified per run, by reason.",
		}, []string{"reason"}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "facility_etl",
			Name:      "pipeline_running",
			Help:      "1 while a reconciliation run is active, 0 otherwise.",
		}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "facility_etl",
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete reconciliation run.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
		CorrectionsWritten: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "facility_etl",
			Name:      "corrections_written",
			Help:      "Rows in the combined corrections table after the last run.",
		}),
		GeocodeAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "facility_etl",
			Name:      "geocode_attempts_total",
			Help:      "Geocoding attempts by provider and outcome.",
		}, []string{"provider", "outcome"}),
		GeocodeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "facility_etl",
			Name:      "geocode_duration_seconds",
			Help:      "Duration of a single provider geocode call.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"provider"}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "facility_etl",
			Name:      "geocode_cache_total",
			Help:      "Geocoding cache lookups by result.",
		}, []string{"result"}),
		GeocodeAnomalies: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "facility_etl",
			Name:      "geocode_anomalies_total",
			Help:      "Geocoded coordinates that still fall outside the region bounding box.",
		}),
	}

	prometheus.MustRegister(
		m.FacilitiesClassified,
		m.PipelineRunning,
		m.RunDuration,
		m.CorrectionsWritten,
		m.GeocodeAttempts,
		m.GeocodeDuration,
		m.GeocodeCache,
		m.GeocodeAnomalies,
	)

	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		FacilitiesClassified: prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "facility_etl", Name: "facilities_classified_total"}, []string{"reason"}),
		PipelineRunning:      prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "facility_etl", Name: "pipeline_running"}),
		RunDuration:          prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "facility_etl", Name: "run_duration_seconds"}),
		CorrectionsWritten:   prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "facility_etl", Name: "corrections_written"}),
		GeocodeAttempts:      prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "facility_etl", Name: "geocode_attempts_total"}, []string{"provider", "outcome"}),
		GeocodeDuration:      prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: "facility_etl", Name: "geocode_duration_seconds"}, []string{"provider"}),
		GeocodeCache:         prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "facility_etl", Name: "geocode_cache_total"}, []string{"result"}),
		GeocodeAnomalies:     prometheus.NewCounter(prometheus.CounterOpts{Namespace: "facility_etl", Name: "geocode_anomalies_total"}),
	}
}
