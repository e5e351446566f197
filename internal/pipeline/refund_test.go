package pipeline

import (
	"testing"

	"canvascast/internal/domain/model"
)

func TestRefundPolicy_ExactBoundary(t *testing.T) {
	t.Parallel()

	p := NewRefundPolicy(DefaultRefundThreshold)

	if !p.ShouldRefund(model.JobStatusVoiceGen, 29) {
		t.Fatalf("expected 29%% to be refund-eligible")
	}
	if p.ShouldRefund(model.JobStatusVoiceGen, 30) {
		t.Fatalf("expected 30%% to NOT be refund-eligible (strict <)")
	}
}

func TestRefundPolicy_Amounts(t *testing.T) {
	t.Parallel()

	p := NewRefundPolicy(DefaultRefundThreshold)

	if got := p.RefundAmount(5, model.JobStatusScripting, 15); got != 5 {
		t.Fatalf("expected full refund of 5, got %d", got)
	}
	if got := p.RefundAmount(5, model.JobStatusRendering, 80); got != 0 {
		t.Fatalf("expected no refund at 80%%, got %d", got)
	}
}

func TestRefundPolicy_NoRefundForCompletedJob(t *testing.T) {
	t.Parallel()

	p := NewRefundPolicy(DefaultRefundThreshold)
	if p.ShouldRefund(model.JobStatusReady, 0) {
		t.Fatalf("a completed job must never be refund-eligible")
	}
}

func TestRefundPolicy_ZeroThresholdDefaults(t *testing.T) {
	t.Parallel()

	p := NewRefundPolicy(0)
	if p.ThresholdPercent != DefaultRefundThreshold {
		t.Fatalf("expected default threshold %d, got %d", DefaultRefundThreshold, p.ThresholdPercent)
	}
}

// The stage table and the refund threshold must agree: every stage the policy
// deems refundable ends below the threshold, and the first non-refundable
// stage starts at or above it.
func TestRefundPolicy_ConsistentWithStageTable(t *testing.T) {
	t.Parallel()

	p := NewRefundPolicy(DefaultRefundThreshold)
	for _, s := range Steps() {
		eligible := p.ShouldRefund(s.Status, s.ProgressEnd)
		if eligible != (s.ProgressEnd < DefaultRefundThreshold) {
			t.Fatalf("step %s at %d%%: eligibility %v disagrees with threshold", s.Name, s.ProgressEnd, eligible)
		}
	}
}
