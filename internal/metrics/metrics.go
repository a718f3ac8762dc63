// Package metrics exposes Prometheus instrumentation for ingestion runs.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the pipeline's collectors. A nil *Metrics is valid and
// records nothing, so callers never need to guard their calls.
type Metrics struct {
	registry *prometheus.Registry

	imagesProcessed     *prometheus.CounterVec
	detectionsPersisted prometheus.Counter
	inferenceSeconds    prometheus.Histogram
}

// New creates and registers the pipeline collectors on a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		imagesProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "imagepipe_images_processed_total",
			Help: "Images handled during ingestion, by outcome.",
		}, []string{"outcome"}),
		detectionsPersisted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "imagepipe_detections_persisted_total",
			Help: "Detection records committed to the store.",
		}),
		inferenceSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "imagepipe_inference_duration_seconds",
			Help:    "Wall time of detector calls.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
	}

	registry.MustRegister(m.imagesProcessed, m.detectionsPersisted, m.inferenceSeconds)
	return m
}

// ObserveImage records one finished image by outcome
// (persisted, skipped, or a failure reason).
func (m *Metrics) ObserveImage(outcome string) {
	if m == nil {
		return
	}
	m.imagesProcessed.WithLabelValues(outcome).Inc()
}

// AddDetections records committed detection rows.
func (m *Metrics) AddDetections(n int) {
	if m == nil {
		return
	}
	m.detectionsPersisted.Add(float64(n))
}

// ObserveInference records the duration of one detector call in seconds.
func (m *Metrics) ObserveInference(seconds float64) {
	if m == nil {
		return
	}
	m.inferenceSeconds.Observe(seconds)
}

// Handler returns the scrape endpoint for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
