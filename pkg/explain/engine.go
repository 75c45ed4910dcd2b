// Package explain ranks root-cause candidates for an observed anomaly
// against the available evidence. The engine is pure: for a fixed
// (observation, signals, targets) input it always produces the same
// ranking, the same confidence tiers, and the same recommendation order.
package explain

import (
	"errors"
	"fmt"
	"sort"

	"github.com/liye-os/kernel/pkg/contracts"
	"github.com/liye-os/kernel/pkg/playbook"
)

// Engine evaluates observations against the playbook registry.
type Engine struct {
	registry *playbook.Registry
}

// NewEngine creates an explanation engine over a playbook registry.
func NewEngine(registry *playbook.Registry) *Engine {
	return &Engine{registry: registry}
}

// Outcome is either an explanation or a structured unsupported result,
// never both.
type Outcome struct {
	Explanation *contracts.Explanation
	Unsupported *contracts.UnsupportedObservation
}

// evaluated pairs a candidate with its evidence evaluation, keeping the
// playbook declaration index for the stable tie-break.
type evaluated struct {
	cause      *playbook.CauseCandidate
	index      int
	evidence   []contracts.EvidenceItem
	coverage   float64
	satisfied  bool
	confidence contracts.Confidence
}

// Explain runs the full ranking pipeline for one observation. An unknown
// observation type yields an Unsupported outcome naming every supported
// type; it is a structured deny, not an engine failure.
func (e *Engine) Explain(obs contracts.Observation) (*Outcome, error) {
	pb, err := e.registry.Get(obs.ObservationID)
	if err != nil {
		if errors.Is(err, contracts.ErrUnsupported) {
			return &Outcome{Unsupported: &contracts.UnsupportedObservation{
				ObservationID: obs.ObservationID,
				Status:        "UNSUPPORTED_OBSERVATION",
				SupportedIDs:  e.registry.SupportedTypes(),
			}}, nil
		}
		return nil, err
	}

	candidates := make([]*evaluated, 0, len(pb.Causes))
	for i := range pb.Causes {
		candidates = append(candidates, evaluate(&pb.Causes[i], i, obs.Signals, obs.Targets))
	}

	// satisfied desc, coverage desc, confidence desc; stable on playbook
	// declaration order.
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.satisfied != b.satisfied {
			return a.satisfied
		}
		if a.coverage != b.coverage {
			return a.coverage > b.coverage
		}
		if a.confidence != b.confidence {
			return confidenceRank(a.confidence) > confidenceRank(b.confidence)
		}
		return a.index < b.index
	})

	top := candidates
	if len(top) > 3 {
		top = top[:3]
	}

	explanation := &contracts.Explanation{
		ObservationID:    obs.ObservationID,
		Severity:         pb.Severity,
		TopCauses:        make([]contracts.RankedCause, 0, len(top)),
		CauseEvidenceMap: make(map[string][]contracts.EvidenceItem, len(top)),
		RuleVersion:      pb.Version,
	}

	for _, c := range top {
		explanation.TopCauses = append(explanation.TopCauses, contracts.RankedCause{
			CauseID:           c.cause.ID,
			Description:       c.cause.Description,
			EvidenceSatisfied: c.satisfied,
			EvidenceCoverage:  c.coverage,
			Confidence:        c.confidence,
			Rationale:         c.cause.Rationale,
		})
		explanation.CauseEvidenceMap[c.cause.ID] = c.evidence
	}

	explanation.Recommendations = aggregateRecommendations(top)
	explanation.Counterfactuals = aggregateCounterfactuals(top)
	explanation.ExecutiveSummary = summarize(top)
	explanation.NextBestActions = nextBest(explanation.Recommendations)
	explanation.ConfidenceOverall = overallConfidence(top)

	return &Outcome{Explanation: explanation}, nil
}

// evaluate scores one candidate: each evidence requirement present in the
// supplied signals is satisfied with high confidence, each absent one is
// MISSING with low confidence. The decision rule is only consulted at full
// coverage; partial evidence can never mark a cause satisfied.
func evaluate(cause *playbook.CauseCandidate, index int, signals, targets map[string]float64) *evaluated {
	total := len(cause.EvidenceRequirements)
	items := make([]contracts.EvidenceItem, 0, total)
	satisfiedCount := 0

	for _, name := range cause.EvidenceRequirements {
		if value, ok := signals[name]; ok {
			v := value
			items = append(items, contracts.EvidenceItem{
				Name:       name,
				Source:     contracts.EvidenceSourceEngine,
				Value:      &v,
				Confidence: contracts.ConfidenceHigh,
			})
			satisfiedCount++
		} else {
			items = append(items, contracts.EvidenceItem{
				Name:       name,
				Source:     contracts.EvidenceSourceMissing,
				Confidence: contracts.ConfidenceLow,
			})
		}
	}

	coverage := 0.0
	if total > 0 {
		coverage = float64(satisfiedCount) / float64(total)
	}

	result := &evaluated{cause: cause, index: index, evidence: items, coverage: coverage}
	if coverage == 1.0 && cause.Logic().Eval(signals, targets) {
		result.satisfied = true
		result.confidence = contracts.ConfidenceHigh
	} else if coverage >= 0.5 {
		result.confidence = contracts.ConfidenceMedium
	} else {
		result.confidence = contracts.ConfidenceLow
	}
	return result
}

// aggregateRecommendations collects actions from the top causes in rank
// order, de-duplicated by action_id with first-seen order preserved.
func aggregateRecommendations(top []*evaluated) []contracts.RecommendedAction {
	seen := make(map[string]bool)
	out := make([]contracts.RecommendedAction, 0)
	for _, c := range top {
		for _, rec := range c.cause.RecommendedActions {
			if seen[rec.ActionID] {
				continue
			}
			seen[rec.ActionID] = true
			out = append(out, rec)
		}
	}
	return out
}

// aggregateCounterfactuals de-duplicates by the "if" key, first-seen order.
func aggregateCounterfactuals(top []*evaluated) []contracts.Counterfactual {
	seen := make(map[string]bool)
	out := make([]contracts.Counterfactual, 0)
	for _, c := range top {
		for _, cf := range c.cause.Counterfactuals {
			if seen[cf.If] {
				continue
			}
			seen[cf.If] = true
			out = append(out, cf)
		}
	}
	return out
}

func summarize(top []*evaluated) string {
	if len(top) == 0 {
		return "No cause candidates declared for this observation."
	}
	lead := top[0]
	return fmt.Sprintf("Most likely cause: %s: %s (confidence %s, evidence coverage %.0f%%).",
		lead.cause.ID, lead.cause.Description, lead.confidence, lead.coverage*100)
}

func nextBest(recs []contracts.RecommendedAction) []contracts.NextBestAction {
	limit := len(recs)
	if limit > 3 {
		limit = 3
	}
	out := make([]contracts.NextBestAction, 0, limit)
	for _, rec := range recs[:limit] {
		out = append(out, contracts.NextBestAction{
			ActionID:  rec.ActionID,
			Title:     rec.Title,
			RiskLevel: rec.RiskLevel,
		})
	}
	return out
}

// overallConfidence is high when any top cause is both satisfied and
// high-confidence, medium when any top cause reaches medium, low otherwise.
func overallConfidence(top []*evaluated) contracts.Confidence {
	best := contracts.ConfidenceLow
	for _, c := range top {
		if c.satisfied && c.confidence == contracts.ConfidenceHigh {
			return contracts.ConfidenceHigh
		}
		if c.confidence == contracts.ConfidenceMedium {
			best = contracts.ConfidenceMedium
		}
	}
	return best
}

func confidenceRank(c contracts.Confidence) int {
	switch c {
	case contracts.ConfidenceHigh:
		return 3
	case contracts.ConfidenceMedium:
		return 2
	default:
		return 1
	}
}
