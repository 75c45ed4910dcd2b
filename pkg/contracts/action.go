package contracts

import "time"

// ExecutionMode says how far a proposal may proceed without a human.
type ExecutionMode string

const (
	// ModeSuggestOnly records the recommendation but never executes.
	ModeSuggestOnly ExecutionMode = "suggest_only"
	// ModeAutoIfSafe executes automatically when every gate passes.
	ModeAutoIfSafe ExecutionMode = "auto_if_safe"
)

// ExecutionStatus is the closed set of terminal executor states.
type ExecutionStatus string

const (
	StatusSuggestOnly     ExecutionStatus = "SUGGEST_ONLY"
	StatusDryRun          ExecutionStatus = "DRY_RUN"
	StatusAutoExecuted    ExecutionStatus = "AUTO_EXECUTED"
	StatusFailed          ExecutionStatus = "FAILED"
	StatusBlocked         ExecutionStatus = "BLOCKED"
	StatusDenyUnsupported ExecutionStatus = "DENY_UNSUPPORTED_ACTION"
)

// ActionProposal is one gated recommendation, created per explanation
// recommendation and immutable once recorded.
type ActionProposal struct {
	ProposalID    string                 `json:"proposal_id"`
	ActionID      string                 `json:"action_id"`
	TraceID       string                 `json:"trace_id"`
	ObservationID string                 `json:"observation_id"`
	CauseID       string                 `json:"cause_id"`
	Scope         string                 `json:"scope"`
	ExecutionMode ExecutionMode          `json:"execution_mode"`
	RuleVersion   string                 `json:"rule_version"`
	Params        map[string]interface{} `json:"params,omitempty"`
}

// EligibilityResult is a structured eligibility verdict, never an error.
// Reasons carries one human-readable line per failed comparison.
type EligibilityResult struct {
	Eligible bool     `json:"eligible"`
	Reasons  []string `json:"reasons,omitempty"`
}

// SafetyResult is a structured safety verdict, never an error.
type SafetyResult struct {
	Safe       bool     `json:"safe"`
	Violations []string `json:"violations,omitempty"`
}

// RollbackPayload records exactly what changed, sufficient to reverse an
// executed action. TTL-bound; past ExpiresAt, rollback availability is a
// downstream concern.
type RollbackPayload struct {
	ActionID    string                 `json:"action_id"`
	Method      string                 `json:"method"`
	TTLHours    int                    `json:"ttl_hours"`
	CreatedAt   time.Time              `json:"created_at"`
	ExpiresAt   time.Time              `json:"expires_at"`
	TraceID     string                 `json:"trace_id"`
	RuleVersion string                 `json:"rule_version"`
	Changed     map[string]interface{} `json:"changed,omitempty"`
}

// ActionOutcomeEvent is one entry in the append-only outcome feed. Every
// terminal executor path except a raw internal panic emits one; a denial
// is itself an auditable fact, with Success left nil.
type ActionOutcomeEvent struct {
	EventID       string                 `json:"event_id"`
	TraceID       string                 `json:"trace_id"`
	ObservationID string                 `json:"observation_id"`
	ActionID      string                 `json:"action_id"`
	CauseID       string                 `json:"cause_id"`
	Status        ExecutionStatus        `json:"status"`
	ExecutionMode ExecutionMode          `json:"execution_mode"`
	BeforeMetrics map[string]float64     `json:"before_metrics,omitempty"`
	AfterMetrics  map[string]float64     `json:"after_metrics,omitempty"`
	Success       *bool                  `json:"success"`
	Notes         string                 `json:"notes,omitempty"`
	DurationMs    int64                  `json:"duration_ms"`
	Timestamp     time.Time              `json:"timestamp"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
}

// ExecutionResult is the terminal outcome of one executor run.
type ExecutionResult struct {
	Status          ExecutionStatus     `json:"status"`
	DryRun          bool                `json:"dry_run"`
	Eligibility     *EligibilityResult  `json:"eligibility,omitempty"`
	Safety          *SafetyResult       `json:"safety,omitempty"`
	RollbackPayload *RollbackPayload    `json:"rollback_payload,omitempty"`
	OutcomeEvent    *ActionOutcomeEvent `json:"outcome_event"`
	Notes           string              `json:"notes,omitempty"`
	DurationMs      int64               `json:"duration_ms"`
}
