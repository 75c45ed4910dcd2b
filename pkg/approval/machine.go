// Package approval implements the plan approval lifecycle. A plan moves
// DRAFT -> SUBMITTED -> APPROVED -> EXECUTED, or SUBMITTED -> REJECTED;
// every other move is invalid. Plans created while the write gate is down
// carry a no-real-write guarantee that the guarded writer enforces.
package approval

import (
	"errors"
	"fmt"

	"github.com/liye-os/kernel/pkg/contracts"
)

var (
	// ErrInvalidTransition wraps ErrValidation so callers can match either.
	ErrInvalidTransition = fmt.Errorf("%w: invalid plan transition", contracts.ErrValidation)
	ErrPlanNotFound      = errors.New("plan not found")
	// ErrGuaranteeViolated means a real write was attempted under an
	// active no-real-write guarantee. The write never reaches the
	// platform; the attempt itself is the violation.
	ErrGuaranteeViolated = errors.New("no-real-write guarantee violated")
)

// transitions is the closed set of legal moves. REJECTED and EXECUTED are
// terminal.
var transitions = map[contracts.PlanStatus][]contracts.PlanStatus{
	contracts.PlanDraft:     {contracts.PlanSubmitted},
	contracts.PlanSubmitted: {contracts.PlanApproved, contracts.PlanRejected},
	contracts.PlanApproved:  {contracts.PlanExecuted},
}

// CanTransition reports whether from -> to is a legal move.
func CanTransition(from, to contracts.PlanStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// VerifyGuarantee checks a plan document against the no-real-write
// invariant. It returns one line per violation; an empty slice means the
// plan honors its guarantee.
func VerifyGuarantee(plan *contracts.ActionPlan) []string {
	if !plan.Guarantee.NoRealWrite {
		return nil
	}

	var violations []string
	if plan.Guarantee.WriteCallsAttempted != 0 {
		violations = append(violations, fmt.Sprintf(
			"write_calls_attempted is %d, must stay 0 under no_real_write",
			plan.Guarantee.WriteCallsAttempted))
	}
	for _, action := range plan.Actions {
		if isWriteClass(action) && !action.DryRunOnly {
			violations = append(violations, fmt.Sprintf(
				"action %s is write-class but not marked dry_run_only", action.ActionID))
		}
	}
	return violations
}
