package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// JobsTotal counts processed jobs by final outcome.
	JobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vyloc_jobs_total",
			Help: "Total number of processed localization jobs",
		},
		[]string{"outcome"},
	)

	// JobDuration tracks end-to-end job processing time in seconds.
	JobDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "vyloc_job_duration_seconds",
			Help:    "Duration of localization jobs in seconds",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10), // 500ms to ~4m
		},
	)

	// TargetsTotal counts per-target outcomes by language.
	TargetsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vyloc_targets_total",
			Help: "Total number of localized targets",
		},
		[]string{"language", "status"},
	)

	// WorkersActive tracks the number of currently active workers.
	WorkersActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vyloc_workers_active",
			Help: "Number of currently active worker goroutines",
		},
	)

	// SubscribersActive tracks live websocket subscriptions.
	SubscribersActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vyloc_ws_subscribers_active",
			Help: "Number of currently connected websocket subscribers",
		},
	)
)
