package contracts

import "time"

// EvidenceFormatVersion is the current evidence package format.
const EvidenceFormatVersion = "1.0.0"

// HashAlgorithm is the only integrity algorithm the kernel emits.
const HashAlgorithm = "sha256"

// ExecutorInfo identifies the system that produced an evidence package.
type ExecutorInfo struct {
	System  string `json:"system"`
	Version string `json:"version"` // short git SHA, 7-40 hex chars
}

// Integrity seals an evidence package. PackageHash is the hex SHA-256 of
// the canonical form of the package with the integrity block removed, and
// is always computed last.
type Integrity struct {
	Algorithm   string `json:"algorithm"`
	PackageHash string `json:"package_hash"`
}

// EvidencePackage is the immutable, hash-sealed record proving what
// decision was made, on what inputs, under what policy version. Created
// exactly once at decision finalization; never mutated or deleted.
type EvidencePackage struct {
	Version      string       `json:"version"`
	TraceID      string       `json:"trace_id"`
	Decision     Decision     `json:"decision"`
	DecisionTime time.Time    `json:"decision_time"`
	PolicyRef    string       `json:"policy_ref"`
	InputsHash   string       `json:"inputs_hash"`
	OutputsHash  string       `json:"outputs_hash"`
	Executor     ExecutorInfo `json:"executor"`
	Integrity    Integrity    `json:"integrity"`
}

// EvidenceBody is the package without its integrity block, in the exact
// field shape used when the package hash was generated. Both the builder
// and the replay verifier hash this shape; any drift between the two would
// break every stored package.
type EvidenceBody struct {
	Version      string       `json:"version"`
	TraceID      string       `json:"trace_id"`
	Decision     Decision     `json:"decision"`
	DecisionTime time.Time    `json:"decision_time"`
	PolicyRef    string       `json:"policy_ref"`
	InputsHash   string       `json:"inputs_hash"`
	OutputsHash  string       `json:"outputs_hash"`
	Executor     ExecutorInfo `json:"executor"`
}

// Body returns the pre-integrity shape of the package.
func (p *EvidencePackage) Body() EvidenceBody {
	return EvidenceBody{
		Version:      p.Version,
		TraceID:      p.TraceID,
		Decision:     p.Decision,
		DecisionTime: p.DecisionTime,
		PolicyRef:    p.PolicyRef,
		InputsHash:   p.InputsHash,
		OutputsHash:  p.OutputsHash,
		Executor:     p.Executor,
	}
}
