// Package replay re-proves the integrity of stored evidence packages
// offline. Replay is strictly read-only: it never repairs, rewrites, or
// backfills a malformed package; any defect is reported and the package is
// left exactly as found. Packages are immutable once written, so replay
// may run concurrently with live traffic without locking.
package replay

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/liye-os/kernel/pkg/canonicalize"
	"github.com/liye-os/kernel/pkg/contracts"
	"github.com/liye-os/kernel/pkg/evidence"
)

// requiredFields are the top-level keys a stored package must carry.
// A missing field is a validation failure, never silently defaulted.
var requiredFields = []string{
	"version", "trace_id", "decision", "decision_time", "policy_ref",
	"inputs_hash", "outputs_hash", "executor", "integrity",
}

// Result is the outcome of one replay.
type Result struct {
	TraceID          string `json:"trace_id"`
	DecisionMatch    bool   `json:"decision_match"`
	PackageHashMatch bool   `json:"package_hash_match"`
	StoredHash       string `json:"stored_hash,omitempty"`
	ComputedHash     string `json:"computed_hash,omitempty"`
	Reason           string `json:"reason,omitempty"`
}

// OK reports whether both checks passed.
func (r *Result) OK() bool {
	return r.DecisionMatch && r.PackageHashMatch
}

// FromFile replays the evidence package stored at path.
func FromFile(path string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("replay: open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()
	return FromReader(f)
}

// FromReader replays an evidence package read from r.
func FromReader(r io.Reader) (*Result, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("replay: read: %w", err)
	}
	return Replay(data)
}

// Replay verifies a raw stored package.
//
// Steps: strict field-presence check, structural validation, reconstruction
// of the pre-integrity body in the exact field order used at generation,
// canonical hash recomputation, comparison against the stored seal.
// decision_match validates that the recorded decision is a recognized enum
// value; it does not re-derive the verdict from the original policy input.
func Replay(data []byte) (*Result, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: malformed evidence JSON: %v", contracts.ErrValidation, err)
	}
	for _, field := range requiredFields {
		if _, ok := raw[field]; !ok {
			return nil, fmt.Errorf("%w: evidence missing required field %q", contracts.ErrValidation, field)
		}
	}

	var pkg contracts.EvidencePackage
	if err := json.Unmarshal(data, &pkg); err != nil {
		return nil, fmt.Errorf("%w: evidence decode: %v", contracts.ErrValidation, err)
	}

	result := &Result{
		TraceID:    pkg.TraceID,
		StoredHash: pkg.Integrity.PackageHash,
	}

	// Well-formedness of the recorded decision. Structural validation uses
	// the same rules the builder applied at generation time.
	if err := evidence.Validate(&pkg); err != nil {
		result.Reason = err.Error()
		return result, nil
	}
	result.DecisionMatch = true

	computed, err := canonicalize.Hash(pkg.Body())
	if err != nil {
		return nil, fmt.Errorf("replay: recompute hash: %w", err)
	}
	result.ComputedHash = computed

	if computed != pkg.Integrity.PackageHash {
		result.Reason = fmt.Sprintf("package_hash mismatch: stored %s, computed %s",
			pkg.Integrity.PackageHash, computed)
		return result, nil
	}
	result.PackageHashMatch = true
	return result, nil
}
