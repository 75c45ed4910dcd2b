package approval

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/liye-os/kernel/pkg/audit"
	"github.com/liye-os/kernel/pkg/contracts"
)

// Manager owns the plan lifecycle. Plans live in memory; the audit trail
// is the durable record of what was approved and what was attempted.
type Manager struct {
	mu           sync.Mutex
	plans        map[string]*contracts.ActionPlan
	writeEnabled bool
	auditLog     audit.Logger
}

// NewManager creates a Manager. writeEnabled false means every plan is
// created under the no-real-write guarantee.
func NewManager(writeEnabled bool, auditLog audit.Logger) *Manager {
	if auditLog == nil {
		auditLog = audit.Nop{}
	}
	return &Manager{
		plans:        make(map[string]*contracts.ActionPlan),
		writeEnabled: writeEnabled,
		auditLog:     auditLog,
	}
}

// isWriteClass treats anything not explicitly read-only as a write. An
// unknown action type must never slip past the guarantee.
func isWriteClass(action contracts.PlanAction) bool {
	return action.ActionType != "read"
}

// CreateDraft registers a new plan in DRAFT. With the write gate down, the
// guarantee is attached and every write-class action is forced to dry-run
// regardless of what the caller asked for.
func (m *Manager) CreateDraft(_ context.Context, traceID, tenantID string, actions []contracts.PlanAction) (*contracts.ActionPlan, error) {
	if len(actions) == 0 {
		return nil, fmt.Errorf("%w: plan needs at least one action", contracts.ErrValidation)
	}

	plan := &contracts.ActionPlan{
		PlanID:   uuid.New().String(),
		TraceID:  traceID,
		TenantID: tenantID,
		Actions:  make([]contracts.PlanAction, len(actions)),
		Status:   contracts.PlanDraft,
	}
	copy(plan.Actions, actions)

	if !m.writeEnabled {
		plan.Guarantee = contracts.Guarantee{NoRealWrite: true}
		for i := range plan.Actions {
			if isWriteClass(plan.Actions[i]) {
				plan.Actions[i].DryRunOnly = true
			}
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.plans[plan.PlanID] = plan
	return clonePlan(plan), nil
}

// Get returns a copy of the plan.
func (m *Manager) Get(planID string) (*contracts.ActionPlan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	plan, ok := m.plans[planID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPlanNotFound, planID)
	}
	return clonePlan(plan), nil
}

// Submit moves DRAFT -> SUBMITTED.
func (m *Manager) Submit(ctx context.Context, planID string) (*contracts.ActionPlan, error) {
	return m.transition(ctx, planID, contracts.PlanSubmitted)
}

// Approve moves SUBMITTED -> APPROVED.
func (m *Manager) Approve(ctx context.Context, planID string) (*contracts.ActionPlan, error) {
	return m.transition(ctx, planID, contracts.PlanApproved)
}

// Reject moves SUBMITTED -> REJECTED. Terminal.
func (m *Manager) Reject(ctx context.Context, planID string) (*contracts.ActionPlan, error) {
	return m.transition(ctx, planID, contracts.PlanRejected)
}

func (m *Manager) transition(_ context.Context, planID string, to contracts.PlanStatus) (*contracts.ActionPlan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	plan, ok := m.plans[planID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPlanNotFound, planID)
	}
	if !CanTransition(plan.Status, to) {
		return nil, fmt.Errorf("%w: %s -> %s for plan %s",
			ErrInvalidTransition, plan.Status, to, planID)
	}
	plan.Status = to
	return clonePlan(plan), nil
}

// Execute runs every action of an APPROVED plan through run and, if all
// succeed, moves the plan to EXECUTED. Under the guarantee, a write-class
// action that somehow lost its dry-run flag fails closed before run is
// called.
func (m *Manager) Execute(ctx context.Context, planID string, run func(ctx context.Context, action contracts.PlanAction) error) (*contracts.ActionPlan, error) {
	m.mu.Lock()
	plan, ok := m.plans[planID]
	if !ok {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrPlanNotFound, planID)
	}
	if plan.Status != contracts.PlanApproved {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: plan %s is %s, execution requires %s",
			ErrInvalidTransition, planID, plan.Status, contracts.PlanApproved)
	}
	actions := make([]contracts.PlanAction, len(plan.Actions))
	copy(actions, plan.Actions)
	guaranteed := plan.Guarantee.NoRealWrite
	m.mu.Unlock()

	for _, action := range actions {
		if guaranteed && isWriteClass(action) && !action.DryRunOnly {
			return nil, fmt.Errorf("%w: action %s is write-class but not dry-run",
				ErrGuaranteeViolated, action.ActionID)
		}
		if err := run(ctx, action); err != nil {
			return nil, fmt.Errorf("plan %s: action %s: %w", planID, action.ActionID, err)
		}
	}

	return m.transition(ctx, planID, contracts.PlanExecuted)
}

// RecordWriteAttempt is called by the guarded writer before any real write.
// Under the guarantee the attempt is refused before dispatch, so
// write_calls_attempted stays 0 for the life of the plan; the violation
// degrades the plan's overall decision and is recorded in the audit trail.
func (m *Manager) RecordWriteAttempt(ctx context.Context, planID, operation string) error {
	m.mu.Lock()
	plan, ok := m.plans[planID]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrPlanNotFound, planID)
	}
	if !plan.Guarantee.NoRealWrite {
		plan.Guarantee.WriteCallsAttempted++
		m.mu.Unlock()
		return nil
	}
	plan.Decision = contracts.DecisionDegrade
	traceID := plan.TraceID
	m.mu.Unlock()

	if err := m.auditLog.Record(ctx, audit.EventGuaranteeViolation, operation, planID,
		map[string]any{
			"trace_id": traceID,
			"decision": string(contracts.DecisionDegrade),
		}); err != nil {
		return fmt.Errorf("audit guarantee violation: %w", err)
	}
	return fmt.Errorf("%w: %s on plan %s", ErrGuaranteeViolated, operation, planID)
}

func clonePlan(plan *contracts.ActionPlan) *contracts.ActionPlan {
	out := *plan
	out.Actions = make([]contracts.PlanAction, len(plan.Actions))
	copy(out.Actions, plan.Actions)
	return &out
}
