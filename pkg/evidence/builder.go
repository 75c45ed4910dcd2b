// Package evidence produces immutable, hash-sealed evidence packages from
// finalized decisions. Generation is atomic with decision finalization: if
// a package cannot be built or stored, the decision must not be reported as
// a success. A governance failure is never "logged and ignored".
package evidence

import (
	"fmt"
	"regexp"
	"sort"
	"time"

	"github.com/liye-os/kernel/pkg/canonicalize"
	"github.com/liye-os/kernel/pkg/contracts"
)

var (
	traceIDPattern  = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._:-]{7,127}$`)
	hexHashPattern  = regexp.MustCompile(`^[0-9a-f]{64}$`)
	shortSHAPattern = regexp.MustCompile(`^[0-9a-f]{7,40}$`)
)

// Clock provides the decision time. Injected so tests and replay-sensitive
// callers control the recorded instant.
type Clock interface {
	Now() time.Time
}

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now().UTC() }

// Builder assembles evidence packages for one executor identity.
type Builder struct {
	system  string
	version string // short git SHA of the running executor
	clock   Clock
}

// NewBuilder creates a Builder. version must be a 7-40 character hex short
// SHA; it is validated at build time, not here, so construction never
// fails. If clock is nil, wall-clock UTC is used.
func NewBuilder(system, version string, clock Clock) *Builder {
	c := clock
	if c == nil {
		c = wallClock{}
	}
	return &Builder{system: system, version: version, clock: c}
}

// Build seals a finalized decision into an evidence package.
//
// inputs_hash covers {task, proposed_actions sorted by tool}; outputs_hash
// covers {decision, verdict_summary}; package_hash covers everything except
// the integrity block and is computed last.
func (b *Builder) Build(resp *contracts.DecisionResponse, req *contracts.DecisionRequest) (*contracts.EvidencePackage, error) {
	if resp == nil || req == nil {
		return nil, fmt.Errorf("%w: decision and request are required", contracts.ErrValidation)
	}
	if err := resp.Validate(); err != nil {
		return nil, err
	}

	inputsHash, err := hashInputs(req)
	if err != nil {
		return nil, err
	}
	outputsHash, err := hashOutputs(resp)
	if err != nil {
		return nil, err
	}

	pkg := &contracts.EvidencePackage{
		Version:      contracts.EvidenceFormatVersion,
		TraceID:      resp.TraceID,
		Decision:     resp.Decision,
		DecisionTime: b.clock.Now().UTC(),
		PolicyRef:    resp.PolicyVersion,
		InputsHash:   inputsHash,
		OutputsHash:  outputsHash,
		Executor: contracts.ExecutorInfo{
			System:  b.system,
			Version: b.version,
		},
	}

	packageHash, err := canonicalize.Hash(pkg.Body())
	if err != nil {
		return nil, fmt.Errorf("evidence: package hash failed: %w", err)
	}
	pkg.Integrity = contracts.Integrity{
		Algorithm:   contracts.HashAlgorithm,
		PackageHash: packageHash,
	}

	if err := Validate(pkg); err != nil {
		return nil, err
	}
	return pkg, nil
}

// hashInputs canonicalizes the decision request with proposed actions
// sorted by tool, so callers that enumerate the same actions in different
// orders produce the same inputs hash.
func hashInputs(req *contracts.DecisionRequest) (string, error) {
	actions := make([]contracts.ProposedAction, len(req.ProposedActions))
	copy(actions, req.ProposedActions)
	sort.SliceStable(actions, func(i, j int) bool { return actions[i].Tool < actions[j].Tool })

	h, err := canonicalize.Hash(struct {
		Task            string                     `json:"task"`
		ProposedActions []contracts.ProposedAction `json:"proposed_actions"`
	}{Task: req.Task, ProposedActions: actions})
	if err != nil {
		return "", fmt.Errorf("evidence: inputs hash failed: %w", err)
	}
	return h, nil
}

func hashOutputs(resp *contracts.DecisionResponse) (string, error) {
	h, err := canonicalize.Hash(struct {
		Decision       contracts.Decision `json:"decision"`
		VerdictSummary string             `json:"verdict_summary"`
	}{Decision: resp.Decision, VerdictSummary: resp.VerdictSummary})
	if err != nil {
		return "", fmt.Errorf("evidence: outputs hash failed: %w", err)
	}
	return h, nil
}

// Validate checks every structural invariant of a sealed package. Used by
// the builder before handing a package to storage and by replay before
// trusting a stored one.
func Validate(pkg *contracts.EvidencePackage) error {
	if pkg.Version == "" {
		return fmt.Errorf("%w: version is required", contracts.ErrValidation)
	}
	if !traceIDPattern.MatchString(pkg.TraceID) {
		return fmt.Errorf("%w: trace_id %q does not match required pattern", contracts.ErrValidation, pkg.TraceID)
	}
	if _, err := contracts.ParseDecision(string(pkg.Decision)); err != nil {
		return err
	}
	if pkg.DecisionTime.IsZero() {
		return fmt.Errorf("%w: decision_time is required", contracts.ErrValidation)
	}
	if pkg.PolicyRef == "" {
		return fmt.Errorf("%w: policy_ref is required", contracts.ErrValidation)
	}
	if !hexHashPattern.MatchString(pkg.InputsHash) {
		return fmt.Errorf("%w: inputs_hash must be 64 hex chars", contracts.ErrValidation)
	}
	if !hexHashPattern.MatchString(pkg.OutputsHash) {
		return fmt.Errorf("%w: outputs_hash must be 64 hex chars", contracts.ErrValidation)
	}
	if pkg.Executor.System == "" {
		return fmt.Errorf("%w: executor.system is required", contracts.ErrValidation)
	}
	if !shortSHAPattern.MatchString(pkg.Executor.Version) {
		return fmt.Errorf("%w: executor.version must be a short git SHA", contracts.ErrValidation)
	}
	if pkg.Integrity.Algorithm != contracts.HashAlgorithm {
		return fmt.Errorf("%w: integrity.algorithm must be %q", contracts.ErrValidation, contracts.HashAlgorithm)
	}
	if !hexHashPattern.MatchString(pkg.Integrity.PackageHash) {
		return fmt.Errorf("%w: integrity.package_hash must be 64 hex chars", contracts.ErrValidation)
	}
	return nil
}
