package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all custom Prometheus metrics for the application
type Metrics struct {
	// Document generation
	DocumentsGenerated *prometheus.CounterVec
	RenderErrors       *prometheus.CounterVec

	// Record store
	RecordSaves   prometheus.Counter
	RecordsSwept  prometheus.Counter
	SweepFailures prometheus.Counter
}

var globalMetrics *Metrics

// InitMetrics initializes the Prometheus metrics
func InitMetrics() *Metrics {
	metrics := &Metrics{
		// Generated documents by output format (counter - only goes up)
		DocumentsGenerated: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "labrecord_documents_generated_total",
			Help: "Total number of documents generated by format",
		}, []string{"format"}), // "docx" or "pdf"

		RenderErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "labrecord_render_errors_total",
			Help: "Total number of failed document renders by format",
		}, []string{"format"}),

		RecordSaves: promauto.NewCounter(prometheus.CounterOpts{
			Name: "labrecord_record_saves_total",
			Help: "Total number of record upserts processed",
		}),

		RecordsSwept: promauto.NewCounter(prometheus.CounterOpts{
			Name: "labrecord_records_swept_total",
			Help: "Total number of expired records deleted by the sweep",
		}),

		SweepFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "labrecord_sweep_failures_total",
			Help: "Total number of sweep runs that reported an error",
		}),
	}

	globalMetrics = metrics
	return metrics
}

// GetMetrics returns the global metrics instance (may be nil if not initialized)
func GetMetrics() *Metrics {
	return globalMetrics
}
