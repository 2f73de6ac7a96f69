// Package metrics holds the Prometheus instruments of a compression run.
//
// A CLI run is short lived, so nothing is served over HTTP. The instruments
// live in their own Registry and are written once, in the node_exporter
// textfile format, when the run ends (see WriteTextfile).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry holds every squeeze metric.
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

// File outcome labels for FilesTotal.
const (
	OutcomeEncoded = "encoded"
	OutcomeCopied  = "copied"
	OutcomeSkipped = "skipped"
	OutcomeFailed  = "failed"
)

// Batch metrics
var (
	FilesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "squeeze_files_total",
			Help: "Files handled by the batch, by outcome",
		},
		[]string{"outcome"},
	)

	FileDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "squeeze_file_duration_seconds",
			Help:    "Wall time spent on one file",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"format"},
	)

	BytesIn = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "squeeze_input_bytes_total",
			Help: "Bytes read from input files that were written to output",
		},
	)

	BytesOut = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "squeeze_output_bytes_total",
			Help: "Bytes written to output files",
		},
	)

	BatchStopped = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "squeeze_batch_stopped",
			Help: "1 when the last batch was halted by a stop request",
		},
	)
)

// Search metrics
var (
	TrialsPerFile = factory.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "squeeze_trials_per_file",
			Help:    "Trial encodes made for one file, method tuning included",
			Buckets: prometheus.LinearBuckets(1, 1, 18),
		},
	)

	BestEffortTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "squeeze_best_effort_total",
			Help: "Files whose target was unreachable at minimum quality",
		},
	)

	ScaledTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "squeeze_scaled_total",
			Help: "Files resized before the quality search",
		},
	)
)

// WriteTextfile writes the current values of Registry to path, replacing it
// atomically.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, Registry)
}
