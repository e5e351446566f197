package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(queueDepth, queueRequeuedTotal)
}

var queueDepth = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "pipeline_queue_depth",
		Help: "Current number of jobs waiting in the ready queue.",
	},
)

var queueRequeuedTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "pipeline_queue_requeued_total",
		Help: "Jobs returned to the ready queue after a worker lease expired.",
	},
)

func SetQueueDepth(n int64) {
	queueDepth.Set(float64(n))
}

func AddRequeued(n int) {
	queueRequeuedTotal.Add(float64(n))
}
