package executor

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/liye-os/kernel/pkg/audit"
	"github.com/liye-os/kernel/pkg/config"
	"github.com/liye-os/kernel/pkg/contracts"
	"github.com/liye-os/kernel/pkg/gate"
	"github.com/liye-os/kernel/pkg/store"
)

// Executor runs a proposal through the full gate chain and, only when every
// gate passes and the mode allows it, dispatches the handler. Every terminal
// path, including each denial, appends exactly one ActionOutcomeEvent to the
// feed; a run that leaves no event did not happen.
type Executor struct {
	controls *config.Controls
	profiles *gate.ProfileSet
	counters gate.CounterStore
	handlers *Registry
	feed     store.OutcomeFeed
	auditLog audit.Logger
	logger   *slog.Logger

	// writeEnabled false forces every dispatch into dry-run, regardless of
	// the proposal's execution mode. This is the kernel's write gate.
	writeEnabled bool
	clock        func() time.Time
}

// New wires an Executor. clock is injectable for tests; nil means UTC wall
// clock. A nil logger discards.
func New(controls *config.Controls, profiles *gate.ProfileSet, counters gate.CounterStore,
	handlers *Registry, feed store.OutcomeFeed, auditLog audit.Logger,
	logger *slog.Logger, writeEnabled bool, clock func() time.Time) *Executor {
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if auditLog == nil {
		auditLog = audit.Nop{}
	}
	return &Executor{
		controls:     controls,
		profiles:     profiles,
		counters:     counters,
		handlers:     handlers,
		feed:         feed,
		auditLog:     auditLog,
		logger:       logger,
		writeEnabled: writeEnabled,
		clock:        clock,
	}
}

// ReloadControls publishes a new control snapshot and records the swap in
// the audit trail with the content hashes of both the displaced and the new
// snapshot. It is the kernel's only swap path; it returns the snapshot that
// was displaced.
func (e *Executor) ReloadControls(ctx context.Context, next *config.ControlSnapshot) (*config.ControlSnapshot, error) {
	prev, err := e.controls.Swap(next)
	if err != nil {
		return nil, err
	}

	prevHash, err := prev.ContentHash()
	if err != nil {
		return prev, fmt.Errorf("hash displaced snapshot: %w", err)
	}
	nextHash, err := next.ContentHash()
	if err != nil {
		return prev, fmt.Errorf("hash published snapshot: %w", err)
	}
	if err := e.auditLog.Record(ctx, audit.EventControlSwap, "control_snapshot", next.Version,
		map[string]any{
			"previous_version":      prev.Version,
			"previous_content_hash": prevHash,
			"content_hash":          nextHash,
		}); err != nil {
		return prev, fmt.Errorf("audit control swap: %w", err)
	}

	e.logger.Info("control snapshot swapped",
		"previous_version", prev.Version, "version", next.Version)
	return prev, nil
}

// outcome collects everything a terminal path needs to report.
type outcome struct {
	status      contracts.ExecutionStatus
	success     *bool
	notes       string
	dryRun      bool
	eligibility *contracts.EligibilityResult
	safety      *contracts.SafetyResult
	rollback    *contracts.RollbackPayload
}

func boolPtr(b bool) *bool { return &b }

// Execute gates and possibly runs one proposal. The returned result is
// always non-nil when err is nil; a gate denial is a valid result, not an
// error.
func (e *Executor) Execute(ctx context.Context, proposal contracts.ActionProposal, signals map[string]float64) (*contracts.ExecutionResult, error) {
	start := e.clock()
	snapshot := e.controls.Current()

	// 1. Allow-list check. Runs before the kill switch so an unsupported
	// action is always reported as unsupported rather than suspended.
	if !snapshot.ActionAllowed(proposal.ActionID) {
		notes := fmt.Sprintf("action %q is not in the executable catalog (supported: %s)",
			proposal.ActionID, strings.Join(snapshot.Catalog(), ", "))
		e.recordDenial(ctx, proposal, string(contracts.StatusDenyUnsupported), notes)
		return e.finish(ctx, proposal, signals, start, outcome{
			status: contracts.StatusDenyUnsupported, notes: notes,
		})
	}

	// 2. Kill switch. Suspends execution without rejecting the proposal.
	if snapshot.KillSwitch {
		notes := "kill switch engaged; recording suggestion only"
		e.recordDenial(ctx, proposal, string(contracts.StatusSuggestOnly), notes)
		return e.finish(ctx, proposal, signals, start, outcome{
			status: contracts.StatusSuggestOnly, notes: notes,
		})
	}

	// 3. Eligibility thresholds from the active profile.
	profile, err := e.profiles.Get(snapshot.DefaultProfile)
	if err != nil {
		return e.finish(ctx, proposal, signals, start, outcome{
			status: contracts.StatusFailed, success: boolPtr(false),
			notes: fmt.Sprintf("profile lookup failed: %v", err),
		})
	}
	eligibility := gate.CheckEligibility(profile, signals)
	if !eligibility.Eligible {
		notes := "not eligible: " + strings.Join(eligibility.Reasons, "; ")
		e.recordDenial(ctx, proposal, string(contracts.StatusSuggestOnly), notes)
		return e.finish(ctx, proposal, signals, start, outcome{
			status: contracts.StatusSuggestOnly, notes: notes, eligibility: &eligibility,
		})
	}

	// 4. Safety caps against the live counters.
	limits := snapshot.SafetyLimits()
	daily, err := e.counters.DailyCount(ctx, proposal.Scope)
	if err != nil {
		return e.finish(ctx, proposal, signals, start, outcome{
			status: contracts.StatusFailed, success: boolPtr(false),
			notes: fmt.Sprintf("counter read failed: %v", err),
		})
	}
	safety := gate.CheckSafety(itemCount(proposal), daily, limits)
	if !safety.Safe {
		notes := "blocked by safety caps: " + strings.Join(safety.Violations, "; ")
		e.recordDenial(ctx, proposal, string(contracts.StatusBlocked), notes)
		return e.finish(ctx, proposal, signals, start, outcome{
			status: contracts.StatusBlocked, notes: notes,
			eligibility: &eligibility, safety: &safety,
		})
	}

	// 5. Cooldown per scope.
	last, found, err := e.counters.LastExecution(ctx, proposal.Scope)
	if err != nil {
		return e.finish(ctx, proposal, signals, start, outcome{
			status: contracts.StatusFailed, success: boolPtr(false),
			notes: fmt.Sprintf("counter read failed: %v", err),
		})
	}
	if found {
		if remaining := gate.CooldownRemaining(last, limits.CooldownWindow, e.clock()); remaining > 0 {
			notes := fmt.Sprintf("cooldown active for scope %s, %s remaining",
				proposal.Scope, remaining.Round(time.Second))
			e.recordDenial(ctx, proposal, string(contracts.StatusBlocked), notes)
			return e.finish(ctx, proposal, signals, start, outcome{
				status: contracts.StatusBlocked, notes: notes,
				eligibility: &eligibility, safety: &safety,
			})
		}
	}

	// 6. Execution mode gate. Everything so far passed; without auto_if_safe
	// the run still stops here.
	if proposal.ExecutionMode != contracts.ModeAutoIfSafe {
		notes := fmt.Sprintf("execution mode %q does not permit automatic execution", proposal.ExecutionMode)
		return e.finish(ctx, proposal, signals, start, outcome{
			status: contracts.StatusSuggestOnly, notes: notes,
			eligibility: &eligibility, safety: &safety,
		})
	}

	// 7. Handler lookup. The allow-list is operator config; a listed action
	// with no registered handler is a deployment fault, reported as FAILED.
	handler, ok := e.handlers.Get(proposal.ActionID)
	if !ok {
		return e.finish(ctx, proposal, signals, start, outcome{
			status: contracts.StatusFailed, success: boolPtr(false),
			notes: fmt.Sprintf("no handler registered for allowed action %q", proposal.ActionID),
		})
	}

	// 8. Dry-run decision. The write gate overrides everything.
	dryRun := !e.writeEnabled

	// 9. Capacity reservation. Only real executions consume daily quota,
	// and the increment is the atomic cap check; a lost race is a block.
	if !dryRun {
		_, applied, err := e.counters.IncrDailyBelow(ctx, proposal.Scope, limits.MaxDailyPerScope)
		if err != nil {
			return e.finish(ctx, proposal, signals, start, outcome{
				status: contracts.StatusFailed, success: boolPtr(false),
				notes: fmt.Sprintf("counter increment failed: %v", err),
			})
		}
		if !applied {
			notes := fmt.Sprintf("daily per-scope cap of %d reached for scope %s",
				limits.MaxDailyPerScope, proposal.Scope)
			e.recordDenial(ctx, proposal, string(contracts.StatusBlocked), notes)
			return e.finish(ctx, proposal, signals, start, outcome{
				status: contracts.StatusBlocked, notes: notes,
				eligibility: &eligibility, safety: &safety,
			})
		}
	}

	// 10. Dispatch under the execution timeout. Errors, timeouts, and
	// panics all land in FAILED; there is no retry.
	result, err := e.dispatch(ctx, handler, HandlerRequest{
		Proposal: proposal,
		Signals:  signals,
		DryRun:   dryRun,
	}, snapshot.ExecutionTimeout())
	if err != nil {
		e.logger.Error("handler dispatch failed",
			"action_id", proposal.ActionID, "scope", proposal.Scope, "error", err)
		return e.finish(ctx, proposal, signals, start, outcome{
			status: contracts.StatusFailed, success: boolPtr(false), dryRun: dryRun,
			notes:       fmt.Sprintf("handler failed: %v", err),
			eligibility: &eligibility, safety: &safety,
		})
	}

	// 11. Terminal success. A dry run synthesizes the same rollback payload
	// a real execution would produce, so the undo plan can be reviewed
	// before the write gate comes up.
	now := e.clock()
	rollback := &contracts.RollbackPayload{
		ActionID:    proposal.ActionID,
		Method:      result.RollbackMethod,
		TTLHours:    snapshot.RollbackTTLHours,
		CreatedAt:   now,
		ExpiresAt:   now.Add(time.Duration(snapshot.RollbackTTLHours) * time.Hour),
		TraceID:     proposal.TraceID,
		RuleVersion: proposal.RuleVersion,
		Changed:     result.Changed,
	}
	if dryRun {
		return e.finish(ctx, proposal, signals, start, outcome{
			status: contracts.StatusDryRun, success: boolPtr(true), dryRun: true,
			notes: result.Message, eligibility: &eligibility, safety: &safety,
			rollback: rollback,
		})
	}

	if err := e.counters.RecordExecution(ctx, proposal.Scope, now); err != nil {
		e.logger.Error("cooldown record failed", "scope", proposal.Scope, "error", err)
	}
	if err := e.auditLog.Record(ctx, audit.EventExecution, proposal.ActionID, proposal.Scope,
		map[string]any{"trace_id": proposal.TraceID, "proposal_id": proposal.ProposalID}); err != nil {
		e.logger.Error("audit record failed", "action_id", proposal.ActionID, "error", err)
	}

	return e.finish(ctx, proposal, signals, start, outcome{
		status: contracts.StatusAutoExecuted, success: boolPtr(true),
		notes: result.Message, eligibility: &eligibility, safety: &safety,
		rollback: rollback,
	})
}

// dispatch runs the handler in its own goroutine so a handler that ignores
// its context cannot stall the executor past the timeout. A panic inside
// the handler is converted to an error.
func (e *Executor) dispatch(ctx context.Context, handler ActionHandler, req HandlerRequest, timeout time.Duration) (*HandlerResult, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type reply struct {
		result *HandlerResult
		err    error
	}
	ch := make(chan reply, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- reply{err: fmt.Errorf("handler %s panicked: %v", handler.ID(), r)}
			}
		}()
		result, err := handler.Execute(ctx, req)
		ch <- reply{result: result, err: err}
	}()

	select {
	case r := <-ch:
		return r.result, r.err
	case <-ctx.Done():
		return nil, fmt.Errorf("handler %s: %w", handler.ID(), ctx.Err())
	}
}

// finish appends the outcome event and assembles the result. A feed append
// failure is returned as an error alongside the result; the caller decides
// whether a missing event invalidates the run.
func (e *Executor) finish(ctx context.Context, proposal contracts.ActionProposal,
	signals map[string]float64, start time.Time, o outcome) (*contracts.ExecutionResult, error) {

	now := e.clock()
	duration := now.Sub(start).Milliseconds()

	event := &contracts.ActionOutcomeEvent{
		EventID:       uuid.New().String(),
		TraceID:       proposal.TraceID,
		ObservationID: proposal.ObservationID,
		ActionID:      proposal.ActionID,
		CauseID:       proposal.CauseID,
		Status:        o.status,
		ExecutionMode: proposal.ExecutionMode,
		BeforeMetrics: signals,
		Success:       o.success,
		Notes:         o.notes,
		DurationMs:    duration,
		Timestamp:     now,
		Metadata: map[string]any{
			"proposal_id":  proposal.ProposalID,
			"rule_version": proposal.RuleVersion,
			"scope":        proposal.Scope,
		},
	}

	result := &contracts.ExecutionResult{
		Status:          o.status,
		DryRun:          o.dryRun,
		Eligibility:     o.eligibility,
		Safety:          o.safety,
		RollbackPayload: o.rollback,
		OutcomeEvent:    event,
		Notes:           o.notes,
		DurationMs:      duration,
	}

	if err := e.feed.Append(ctx, event); err != nil {
		return result, fmt.Errorf("outcome feed append: %w", err)
	}
	return result, nil
}

func (e *Executor) recordDenial(ctx context.Context, proposal contracts.ActionProposal, status, notes string) {
	err := e.auditLog.Record(ctx, audit.EventGateDenial, proposal.ActionID, proposal.Scope,
		map[string]any{
			"trace_id":    proposal.TraceID,
			"proposal_id": proposal.ProposalID,
			"status":      status,
			"notes":       notes,
		})
	if err != nil {
		e.logger.Error("audit record failed", "action_id", proposal.ActionID, "error", err)
	}
}

// itemCount derives how many items one run would touch. Batch proposals
// carry an items list; everything else counts as one.
func itemCount(proposal contracts.ActionProposal) int {
	if items, ok := proposal.Params["items"].([]any); ok {
		return len(items)
	}
	return 1
}
