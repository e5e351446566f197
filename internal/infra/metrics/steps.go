package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(stepDurationSeconds, stepFailuresTotal)
}

var stepDurationSeconds = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "pipeline_step_duration_seconds",
		Help:    "Per-step execution latency distribution.",
		Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	},
	[]string{"step", "success"},
)

var stepFailuresTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "pipeline_step_failures_total",
		Help: "Step failures by step name and error code.",
	},
	[]string{"step", "code"},
)

func ObserveStep(step string, seconds float64, success bool) {
	stepDurationSeconds.WithLabelValues(norm(step), strconv.FormatBool(success)).Observe(seconds)
}

func IncStepFailure(step, code string) {
	stepFailuresTotal.WithLabelValues(norm(step), norm(code)).Inc()
}
