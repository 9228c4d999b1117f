package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// APIRequestsTotal counts calls to the C12 API by endpoint and HTTP status code.
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "c12sim_api_requests_total",
			Help: "Total number of requests sent to the C12 simulator API",
		},
		[]string{"endpoint", "code"},
	)

	// APIRequestDuration tracks C12 API latency in seconds.
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "c12sim_api_request_duration_seconds",
			Help:    "Duration of C12 simulator API requests in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
		},
		[]string{"endpoint"},
	)

	// JobPollsTotal counts status polls issued while waiting for results.
	JobPollsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "c12sim_job_polls_total",
			Help: "Total number of job polls issued while waiting for results",
		},
	)

	// JobsSubmittedTotal counts started jobs per backend.
	JobsSubmittedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "c12sim_jobs_submitted_total",
			Help: "Total number of jobs started on the C12 simulator",
		},
		[]string{"backend"},
	)

	// JobsCompletedTotal counts jobs observed in a terminal state.
	JobsCompletedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "c12sim_jobs_completed_total",
			Help: "Total number of jobs observed in a terminal state",
		},
		[]string{"status"},
	)

	// WatchersActive tracks the number of watcher goroutines currently polling a job.
	WatchersActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "c12sim_watchers_active",
			Help: "Number of watcher goroutines currently polling a job",
		},
	)
)
