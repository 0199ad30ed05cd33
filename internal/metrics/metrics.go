// Package metrics exposes Prometheus metrics for predictions and training.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prediction outcomes.
const (
	OutcomeHit   = "hit"
	OutcomeMiss  = "miss"
	OutcomeError = "error"
)

// Training results.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Metrics holds the collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	predictions        *prometheus.CounterVec
	predictionDuration *prometheus.HistogramVec
	trainingRuns       *prometheus.CounterVec
	indexedRecords     prometheus.Gauge
}

// New registers all collectors, plus the Go runtime and process
// collectors, on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		predictions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bookkeeper_predictions_total",
				Help: "Category predictions by voting policy and outcome",
			},
			[]string{"policy", "outcome"},
		),
		predictionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bookkeeper_prediction_duration_seconds",
				Help:    "Time to embed a query, search the index and vote",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"policy"},
		),
		trainingRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bookkeeper_training_runs_total",
				Help: "Full retrains by result",
			},
			[]string{"result"},
		),
		indexedRecords: factory.NewGauge(prometheus.GaugeOpts{
			Name: "bookkeeper_indexed_records",
			Help: "Records currently in the vector index",
		}),
	}
}

// ObservePrediction records one prediction.
func (m *Metrics) ObservePrediction(policy, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.predictions.WithLabelValues(policy, outcome).Inc()
	m.predictionDuration.WithLabelValues(policy).Observe(d.Seconds())
}

// ObserveTraining records one training run.
func (m *Metrics) ObserveTraining(result string) {
	if m == nil {
		return
	}
	m.trainingRuns.WithLabelValues(result).Inc()
}

// SetIndexedRecords records the current index size.
func (m *Metrics) SetIndexedRecords(n int) {
	if m == nil {
		return
	}
	m.indexedRecords.Set(float64(n))
}

// Registry returns the registry holding every collector.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
