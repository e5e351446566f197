package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(jobsProcessedTotal, jobRetriesTotal, jobsInDeadLetter, jobDurationSeconds)
}

var jobsProcessedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "pipeline_jobs_processed_total",
		Help: "Total number of pipeline jobs that reached a terminal status.",
	},
	[]string{"status"}, // 'completed', 'failed', 'canceled'
)

var jobRetriesTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "pipeline_job_retries_total",
		Help: "Total number of job retry attempts after a step failure.",
	},
)

var jobsInDeadLetter = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "pipeline_jobs_dead_letter",
		Help: "Current number of jobs parked in the dead-letter queue.",
	},
)

var jobDurationSeconds = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "pipeline_job_duration_seconds",
		Help:    "End-to-end job duration from claim to terminal status.",
		Buckets: []float64{5, 15, 30, 60, 120, 300, 600, 1200, 1800},
	},
)

func IncJobProcessed(status string) {
	jobsProcessedTotal.WithLabelValues(norm(status)).Inc()
}

func IncJobRetry() {
	jobRetriesTotal.Inc()
}

func SetDeadLetterDepth(n int) {
	jobsInDeadLetter.Set(float64(n))
}

func ObserveJobDuration(seconds float64) {
	jobDurationSeconds.Observe(seconds)
}
