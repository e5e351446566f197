package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(creditsReservedTotal, creditsSpentTotal, creditsRefundedTotal)
}

var creditsReservedTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "credits_reserved_total",
		Help: "Total credits placed on hold for submitted jobs.",
	},
)

var creditsSpentTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "credits_spent_total",
		Help: "Total credits converted from hold to spend on job completion.",
	},
)

var creditsRefundedTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "credits_refunded_total",
		Help: "Total credits returned to users after early job failures.",
	},
)

func AddCreditsReserved(n int64) { creditsReservedTotal.Add(float64(n)) }
func AddCreditsSpent(n int64)    { creditsSpentTotal.Add(float64(n)) }
func AddCreditsRefunded(n int64) { creditsRefundedTotal.Add(float64(n)) }
