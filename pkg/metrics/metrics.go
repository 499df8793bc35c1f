// Package metrics provides Prometheus metrics for the pricelens pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RunsTotal tracks pipeline runs by supplier and status
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pricelens",
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Total number of pipeline runs by supplier and status",
		},
		[]string{"supplier", "status"},
	)

	// RunDuration tracks pipeline run duration in seconds
	RunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pricelens",
			Subsystem: "pipeline",
			Name:      "run_duration_seconds",
			Help:      "Duration of pipeline runs in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"supplier"},
	)

	// ProductsExtracted tracks extracted products by supplier and method
	ProductsExtracted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pricelens",
			Subsystem: "extraction",
			Name:      "products_total",
			Help:      "Total number of products extracted by supplier and method",
		},
		[]string{"supplier", "method"},
	)

	// RunConfidence tracks the 0-100 confidence of completed runs
	RunConfidence = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "pricelens",
			Subsystem: "extraction",
			Name:      "run_confidence",
			Help:      "Confidence score of completed extraction runs",
			Buckets:   []float64{0, 10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		},
	)

	// TemplateMutations tracks learning mutations applied to templates
	TemplateMutations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pricelens",
			Subsystem: "template",
			Name:      "mutations_total",
			Help:      "Total number of learning mutations applied to templates",
		},
		[]string{"supplier"},
	)

	// TemplatesPruned tracks templates removed by the maintenance job
	TemplatesPruned = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "pricelens",
			Subsystem: "template",
			Name:      "pruned_total",
			Help:      "Total number of stale templates pruned",
		},
	)
)

// RecordRun records one pipeline run
func RecordRun(supplier, status string, durationSeconds float64) {
	RunsTotal.WithLabelValues(supplier, status).Inc()
	RunDuration.WithLabelValues(supplier).Observe(durationSeconds)
}

// RecordExtraction records the product count and confidence of one run
func RecordExtraction(supplier, method string, products int, confidence float64) {
	ProductsExtracted.WithLabelValues(supplier, method).Add(float64(products))
	RunConfidence.Observe(confidence)
}

// RecordPrune records templates removed by maintenance
func RecordPrune(count int) {
	TemplatesPruned.Add(float64(count))
}
