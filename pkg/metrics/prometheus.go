// Package metrics records engine and pipeline telemetry with Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "marketpulse"

// Recorder implements the engine, registry and pipeline metric ports.
type Recorder struct {
	trainings      *prometheus.CounterVec
	trainDuration  *prometheus.HistogramVec
	predictions    *prometheus.CounterVec
	predictLatency prometheus.Histogram
	fallbacks      prometheus.Counter
	saveRefused    prometheus.Counter
	registry       *prometheus.CounterVec
	messages       *prometheus.CounterVec
	errorsTotal    *prometheus.CounterVec
}

// New registers the collectors on reg. A nil reg uses the default registerer,
// which is what /metrics serves.
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Recorder{
		trainings: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trainings_total",
			Help:      "Training runs by resulting mode and outcome",
		}, []string{"mode", "outcome"}),
		trainDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "training_duration_seconds",
			Help:      "Duration of training runs",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}, []string{"mode"}),
		predictions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "predictions_total",
			Help:      "Forecasts produced by horizon",
		}, []string{"horizon"}),
		predictLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "prediction_duration_seconds",
			Help:      "Duration of forecast walks",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
		fallbacks: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inference_fallbacks_total",
			Help:      "Forecast steps that fell back to the rolling mean",
		}),
		saveRefused: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "artifact_save_refused_total",
			Help:      "Artifact saves refused because the new model validated worse",
		}),
		registry: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registry_lookups_total",
			Help:      "State registry lookups by result",
		}, []string{"result"}),
		messages: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_total",
			Help:      "Kafka messages handled or published by topic",
		}, []string{"topic"}),
		errorsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Errors by component and kind",
		}, []string{"component", "kind"}),
	}
}

func (r *Recorder) RecordTraining(mode string, d time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	r.trainings.WithLabelValues(mode, outcome).Inc()
	r.trainDuration.WithLabelValues(mode).Observe(d.Seconds())
}

func (r *Recorder) RecordPrediction(days int, d time.Duration) {
	r.predictions.WithLabelValues(horizonLabel(days)).Inc()
	r.predictLatency.Observe(d.Seconds())
}

func (r *Recorder) RecordInferenceFallback() { r.fallbacks.Inc() }

func (r *Recorder) RecordSaveRefused() { r.saveRefused.Inc() }

func (r *Recorder) RecordRegistry(hit bool) {
	if hit {
		r.registry.WithLabelValues("hit").Inc()
		return
	}
	r.registry.WithLabelValues("miss").Inc()
}

func (r *Recorder) RecordMessage(topic string) {
	r.messages.WithLabelValues(topic).Inc()
}

func (r *Recorder) RecordError(component, kind string) {
	r.errorsTotal.WithLabelValues(component, kind).Inc()
}

// horizonLabel buckets horizons so the label set stays small.
func horizonLabel(days int) string {
	switch {
	case days <= 7:
		return "week"
	case days <= 14:
		return "fortnight"
	default:
		return "month"
	}
}
