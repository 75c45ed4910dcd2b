package contracts

// PlanStatus is the approval lifecycle of an action plan.
type PlanStatus string

const (
	PlanDraft     PlanStatus = "DRAFT"
	PlanSubmitted PlanStatus = "SUBMITTED"
	PlanApproved  PlanStatus = "APPROVED"
	PlanRejected  PlanStatus = "REJECTED"
	PlanExecuted  PlanStatus = "EXECUTED"
)

// PlanAction is one action inside an approval plan.
type PlanAction struct {
	ActionID   string                 `json:"action_id"`
	ActionType string                 `json:"action_type"`
	Tool       string                 `json:"tool"`
	Arguments  map[string]interface{} `json:"arguments,omitempty"`
	DryRunOnly bool                   `json:"dry_run_only"`
}

// Guarantee is the plan-level zero-real-write attestation. With the global
// write-gate disabled, NoRealWrite must be true and WriteCallsAttempted
// must stay 0 for the life of the plan.
type Guarantee struct {
	NoRealWrite         bool `json:"no_real_write"`
	WriteCallsAttempted int  `json:"write_calls_attempted"`
}

// ActionPlan groups proposed actions under the approval state machine.
type ActionPlan struct {
	PlanID    string       `json:"plan_id"`
	TraceID   string       `json:"trace_id"`
	TenantID  string       `json:"tenant_id"`
	Actions   []PlanAction `json:"actions"`
	Guarantee Guarantee    `json:"GUARANTEE"`
	Status    PlanStatus   `json:"status"`

	// Decision is the overall decision recorded against the plan. A
	// refused real-write attempt under the guarantee degrades it; once
	// degraded it never recovers for the life of the plan.
	Decision Decision `json:"decision,omitempty"`
}
