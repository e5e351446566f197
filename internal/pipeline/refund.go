package pipeline

import "canvascast/internal/domain/model"

// DefaultRefundThreshold is the progress percent at which downstream
// third-party costs (TTS, image generation) have been incurred. Failures at
// or past it are not refunded.
const DefaultRefundThreshold = 30

// RefundPolicy decides whether a failed or canceled job's reserved credits
// are returned. The decision is a progress-percent comparison; status-based
// checks derive from the same stage table, so the two representations cannot
// disagree.
type RefundPolicy struct {
	ThresholdPercent int
}

func NewRefundPolicy(threshold int) RefundPolicy {
	if threshold <= 0 {
		threshold = DefaultRefundThreshold
	}
	return RefundPolicy{ThresholdPercent: threshold}
}

// ShouldRefund reports refund eligibility at the given progress. Strictly
// below the threshold is eligible: 29 yes, 30 no. A job that already
// completed is never refundable regardless of the recorded percent.
func (p RefundPolicy) ShouldRefund(status model.JobStatus, progressPercent int) bool {
	if status == model.JobStatusReady {
		return false
	}
	return progressPercent < p.ThresholdPercent
}

// RefundAmount returns the full reservation when eligible, otherwise zero.
// There are no partial refunds.
func (p RefundPolicy) RefundAmount(reservedCredits int, status model.JobStatus, progressPercent int) int {
	if p.ShouldRefund(status, progressPercent) {
		return reservedCredits
	}
	return 0
}
