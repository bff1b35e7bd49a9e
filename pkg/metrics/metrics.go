// Package metrics holds the Prometheus collectors for report generation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Report metrics
	ReportsStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "deep_research_reports_started_total",
			Help: "Total number of report runs started",
		},
	)

	ReportsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deep_research_reports_completed_total",
			Help: "Total number of report runs finished, by status",
		},
		[]string{"status"},
	)

	ReportDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "deep_research_report_duration_seconds",
			Help:    "Report run duration in seconds",
			Buckets: []float64{5, 15, 30, 60, 120, 300, 600, 1200},
		},
		[]string{"status"},
	)

	PlanIterations = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "deep_research_plan_iterations",
			Help:    "Number of plans generated per report run",
			Buckets: []float64{1, 2, 3, 4, 5},
		},
	)

	// Section metrics
	SectionsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deep_research_sections_processed_total",
			Help: "Sections processed, by kind (research, final) and outcome",
		},
		[]string{"kind", "outcome"},
	)

	// Collaborator metrics
	GenerationCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deep_research_generation_calls_total",
			Help: "Text generation calls, by provider and status",
		},
		[]string{"provider", "status"},
	)

	GenerationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "deep_research_generation_duration_seconds",
			Help:    "Text generation latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider"},
	)

	SearchCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deep_research_search_calls_total",
			Help: "Search provider calls, by provider and status",
		},
		[]string{"provider", "status"},
	)

	SearchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "deep_research_search_duration_seconds",
			Help:    "Search provider latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider"},
	)

	ArchivedChunks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "deep_research_archived_chunks_total",
			Help: "Source chunks written to the vector archive",
		},
	)

	// Job metrics
	ActiveJobs = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "deep_research_active_jobs",
			Help: "Report jobs currently running",
		},
	)
)
