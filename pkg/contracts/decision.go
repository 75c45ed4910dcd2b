// Package contracts defines the shared data model of the decision kernel:
// decision requests and responses, evidence packages, explanations, action
// proposals, execution outcomes, and approval plans. Types here are plain
// data; behavior lives in the packages that produce and consume them.
package contracts

import (
	"fmt"
)

// Decision is the governed verdict for a request.
type Decision string

const (
	DecisionAllow   Decision = "ALLOW"
	DecisionBlock   Decision = "BLOCK"
	DecisionDegrade Decision = "DEGRADE"
	DecisionUnknown Decision = "UNKNOWN"
)

// ParseDecision maps a raw string to a Decision, failing on anything
// outside the closed enum.
func ParseDecision(s string) (Decision, error) {
	switch Decision(s) {
	case DecisionAllow, DecisionBlock, DecisionDegrade, DecisionUnknown:
		return Decision(s), nil
	}
	return "", fmt.Errorf("%w: unrecognized decision %q", ErrValidation, s)
}

// OK reports whether the decision permits the caller to proceed.
// ALLOW and DEGRADE are both "proceed" verdicts; DEGRADE signals that a
// fallback path produced the answer.
func (d Decision) OK() bool {
	return d == DecisionAllow || d == DecisionDegrade
}

// ProposedAction is one action the caller intends to take.
type ProposedAction struct {
	ActionType string                 `json:"action_type"`
	Tool       string                 `json:"tool"`
	Arguments  map[string]interface{} `json:"arguments,omitempty"`
}

// DecisionRequest is the immutable input to a policy evaluation.
type DecisionRequest struct {
	Task            string           `json:"task"`
	ProposedActions []ProposedAction `json:"proposed_actions"`
	TenantID        string           `json:"tenant_id"`
}

// OriginMock is the origin recorded when the mock fallback produced the
// verdict instead of the real policy source.
const OriginMock = "liye_os.mock"

// DecisionResponse carries the frozen response fields of a governed
// decision. Field set and semantics are part of the external contract and
// must not drift.
type DecisionResponse struct {
	OK             bool     `json:"ok"`
	Decision       Decision `json:"decision"`
	Origin         string   `json:"origin"`
	OriginProof    bool     `json:"origin_proof"`
	MockUsed       bool     `json:"mock_used"`
	PolicyVersion  string   `json:"policy_version"`
	TraceID        string   `json:"trace_id"`
	FallbackReason string   `json:"fallback_reason,omitempty"`
	VerdictSummary string   `json:"verdict_summary,omitempty"`
}

// Validate enforces the multi-field consistency invariants of the frozen
// response contract. mock_used must be true exactly when all of the
// following hold: origin is "liye_os.mock", origin_proof is false, the
// decision is DEGRADE, and fallback_reason is non-empty. ok must be true
// exactly when the decision is ALLOW or DEGRADE.
func (r *DecisionResponse) Validate() error {
	if _, err := ParseDecision(string(r.Decision)); err != nil {
		return err
	}
	if r.OK != r.Decision.OK() {
		return fmt.Errorf("%w: ok=%v inconsistent with decision=%s", ErrValidation, r.OK, r.Decision)
	}

	mockConsistent := r.Origin == OriginMock &&
		!r.OriginProof &&
		r.Decision == DecisionDegrade &&
		r.FallbackReason != ""
	if r.MockUsed != mockConsistent {
		return fmt.Errorf("%w: mock_used=%v inconsistent with origin=%q origin_proof=%v decision=%s fallback_reason=%q",
			ErrValidation, r.MockUsed, r.Origin, r.OriginProof, r.Decision, r.FallbackReason)
	}
	if !r.MockUsed && r.Origin == OriginMock {
		return fmt.Errorf("%w: origin %q requires mock_used=true", ErrValidation, OriginMock)
	}
	return nil
}
