// Package metrics counts exports on a private prometheus registry. The CLI
// is short-lived, so the registry is dumped in the node-exporter textfile
// format instead of being scraped.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Export outcomes.
const (
	OutcomeSuccess     = "success"
	OutcomeConfigError = "config_error"
	OutcomeFSError     = "fs_error"
	OutcomeError       = "error"
)

// Recorder holds the exporter's collectors.
type Recorder struct {
	registry     *prometheus.Registry
	exports      *prometheus.CounterVec
	datasets     prometheus.Counter
	persons      prometheus.Counter
	placeholders prometheus.Counter
	duration     prometheus.Histogram
}

// New registers the collectors on a fresh registry.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		exports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "crater",
			Name:      "exports_total",
			Help:      "Crate exports by outcome.",
		}, []string{"outcome"}),
		datasets: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "crater",
			Name:      "datasets_total",
			Help:      "Dataset entities written.",
		}),
		persons: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "crater",
			Name:      "persons_total",
			Help:      "Distinct person entities written.",
		}),
		placeholders: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "crater",
			Name:      "placeholders_total",
			Help:      "Dataset properties filled with a placeholder.",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "crater",
			Name:      "export_duration_seconds",
			Help:      "Wall time of an export.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	r.registry.MustRegister(r.exports, r.datasets, r.persons, r.placeholders, r.duration)
	return r
}

// ObserveExport records one finished export.
func (r *Recorder) ObserveExport(outcome string, d time.Duration) {
	r.exports.WithLabelValues(outcome).Inc()
	r.duration.Observe(d.Seconds())
}

// AddEntities records the entities written by a successful export.
func (r *Recorder) AddEntities(datasets, persons, placeholders int) {
	r.datasets.Add(float64(datasets))
	r.persons.Add(float64(persons))
	r.placeholders.Add(float64(placeholders))
}

// Exports returns the export counter for outcome.
func (r *Recorder) Exports(outcome string) prometheus.Counter {
	return r.exports.WithLabelValues(outcome)
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// WriteTextfile dumps the registry to path atomically.
func (r *Recorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}
