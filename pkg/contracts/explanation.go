package contracts

// Confidence is a coarse three-level confidence tier.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// EvidenceSource says where an evidence value came from.
type EvidenceSource string

const (
	// EvidenceSourceEngine marks a value read from the supplied signals.
	EvidenceSourceEngine EvidenceSource = "ENGINE"
	// EvidenceSourceMissing marks a requirement with no value available.
	EvidenceSourceMissing EvidenceSource = "MISSING"
)

// Observation is the read-only input to an explanation run.
type Observation struct {
	ObservationID string             `json:"observation_id"`
	Signals       map[string]float64 `json:"signals"`
	Targets       map[string]float64 `json:"targets"`
}

// EvidenceItem is the evaluation of one evidence requirement against the
// supplied signals. Source is MISSING exactly when Value is nil.
type EvidenceItem struct {
	Name       string         `json:"name"`
	Source     EvidenceSource `json:"source"`
	Value      *float64       `json:"value,omitempty"`
	Confidence Confidence     `json:"confidence"`
}

// RecommendedAction is a remedial action suggested by a playbook cause.
type RecommendedAction struct {
	ActionID  string `json:"action_id"`
	Title     string `json:"title"`
	RiskLevel string `json:"risk_level"`
	Rationale string `json:"rationale,omitempty"`
}

// Counterfactual describes what would have avoided the anomaly.
type Counterfactual struct {
	If   string `json:"if"`
	Then string `json:"then"`
}

// RankedCause is one root-cause candidate after evaluation and ranking.
type RankedCause struct {
	CauseID           string     `json:"cause_id"`
	Description       string     `json:"description"`
	EvidenceSatisfied bool       `json:"evidence_satisfied"`
	EvidenceCoverage  float64    `json:"evidence_coverage"`
	Confidence        Confidence `json:"confidence"`
	Rationale         []string   `json:"rationale,omitempty"`
}

// NextBestAction is an operator-facing summary of a recommendation.
type NextBestAction struct {
	ActionID  string `json:"action_id"`
	Title     string `json:"title"`
	RiskLevel string `json:"risk_level"`
}

// Explanation is the ranked root-cause analysis for one observation.
// For a fixed (observation_id, signals, targets) input the ordering of
// TopCauses and all confidence values are deterministic.
type Explanation struct {
	ObservationID     string                    `json:"observation_id"`
	Severity          string                    `json:"severity"`
	TopCauses         []RankedCause             `json:"top_causes"`
	CauseEvidenceMap  map[string][]EvidenceItem `json:"cause_evidence_map"`
	Recommendations   []RecommendedAction       `json:"recommendations"`
	Counterfactuals   []Counterfactual          `json:"counterfactuals"`
	RuleVersion       string                    `json:"rule_version"`
	ExecutiveSummary  string                    `json:"executive_summary"`
	NextBestActions   []NextBestAction          `json:"next_best_actions"`
	ConfidenceOverall Confidence                `json:"confidence_overall"`
}

// UnsupportedObservation is the structured deny result for an observation
// type the playbook registry does not know. It carries the full supported
// catalog so the caller can correct the request.
type UnsupportedObservation struct {
	ObservationID string   `json:"observation_id"`
	Status        string   `json:"status"` // always "UNSUPPORTED_OBSERVATION"
	SupportedIDs  []string `json:"supported_ids"`
}
