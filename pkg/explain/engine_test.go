package explain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liye-os/kernel/pkg/contracts"
	"github.com/liye-os/kernel/pkg/playbook"
)

func testEngine(t *testing.T) *Engine {
	t.Helper()
	reg, err := playbook.NewRegistry(playbook.MustBuiltin()...)
	require.NoError(t, err)
	return NewEngine(reg)
}

// Launch-phase observation: full evidence for NEW_PRODUCT_PHASE and a true
// decision rule must put it on top with high confidence.
func TestExplain_NewProductPhase(t *testing.T) {
	engine := testEngine(t)

	outcome, err := engine.Explain(contracts.Observation{
		ObservationID: "ACOS_TOO_HIGH",
		Signals: map[string]float64{
			"acos":              0.45,
			"days_since_launch": 20,
			"review_count":      5,
		},
		Targets: map[string]float64{"max_acos": 0.30},
	})
	require.NoError(t, err)
	require.NotNil(t, outcome.Explanation)
	require.Nil(t, outcome.Unsupported)

	exp := outcome.Explanation
	require.NotEmpty(t, exp.TopCauses)
	top := exp.TopCauses[0]
	assert.Equal(t, "NEW_PRODUCT_PHASE", top.CauseID)
	assert.True(t, top.EvidenceSatisfied)
	assert.Equal(t, contracts.ConfidenceHigh, top.Confidence)
	assert.Equal(t, 1.0, top.EvidenceCoverage)
	assert.Equal(t, contracts.ConfidenceHigh, exp.ConfidenceOverall)
	assert.Contains(t, exp.ExecutiveSummary, "NEW_PRODUCT_PHASE")
	assert.Equal(t, "warning", exp.Severity)
	assert.Equal(t, "1.3.0", exp.RuleVersion)

	// Evidence map for the top cause: all three requirements from ENGINE.
	evidence := exp.CauseEvidenceMap["NEW_PRODUCT_PHASE"]
	require.Len(t, evidence, 3)
	for _, item := range evidence {
		assert.Equal(t, contracts.EvidenceSourceEngine, item.Source)
		require.NotNil(t, item.Value)
	}
}

func TestExplain_MissingEvidenceLowersConfidence(t *testing.T) {
	engine := testEngine(t)

	// Only acos present: BID_TOO_HIGH has 1/2 coverage (medium),
	// NEW_PRODUCT_PHASE 1/3 (low), nothing satisfied.
	outcome, err := engine.Explain(contracts.Observation{
		ObservationID: "ACOS_TOO_HIGH",
		Signals:       map[string]float64{"acos": 0.45},
		Targets:       map[string]float64{"max_acos": 0.30},
	})
	require.NoError(t, err)

	exp := outcome.Explanation
	require.NotEmpty(t, exp.TopCauses)
	for _, cause := range exp.TopCauses {
		assert.False(t, cause.EvidenceSatisfied)
		assert.NotEqual(t, contracts.ConfidenceHigh, cause.Confidence)
	}
	assert.Equal(t, "BID_TOO_HIGH", exp.TopCauses[0].CauseID)
	assert.Equal(t, contracts.ConfidenceMedium, exp.TopCauses[0].Confidence)
	assert.NotEqual(t, contracts.ConfidenceHigh, exp.ConfidenceOverall)

	missing := 0
	for _, item := range exp.CauseEvidenceMap[exp.TopCauses[0].CauseID] {
		if item.Source == contracts.EvidenceSourceMissing {
			assert.Nil(t, item.Value)
			missing++
		}
	}
	assert.Equal(t, 1, missing)
}

func TestExplain_FullCoverageFalseLogicIsNotSatisfied(t *testing.T) {
	engine := testEngine(t)

	// Mature product: full evidence for NEW_PRODUCT_PHASE but the rule
	// fails, so the cause stays unsatisfied at medium confidence.
	outcome, err := engine.Explain(contracts.Observation{
		ObservationID: "ACOS_TOO_HIGH",
		Signals: map[string]float64{
			"acos":              0.45,
			"days_since_launch": 300,
			"review_count":      950,
		},
		Targets: map[string]float64{"max_acos": 0.30},
	})
	require.NoError(t, err)

	for _, cause := range outcome.Explanation.TopCauses {
		if cause.CauseID == "NEW_PRODUCT_PHASE" {
			assert.False(t, cause.EvidenceSatisfied)
			assert.Equal(t, 1.0, cause.EvidenceCoverage)
			assert.Equal(t, contracts.ConfidenceMedium, cause.Confidence)
		}
	}
}

func TestExplain_Deterministic(t *testing.T) {
	engine := testEngine(t)
	obs := contracts.Observation{
		ObservationID: "ACOS_TOO_HIGH",
		Signals: map[string]float64{
			"acos":              0.45,
			"days_since_launch": 20,
			"review_count":      5,
			"ctr":               0.1,
		},
		Targets: map[string]float64{"max_acos": 0.30},
	}

	first, err := engine.Explain(obs)
	require.NoError(t, err)
	firstJSON, err := json.Marshal(first.Explanation)
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		again, err := engine.Explain(obs)
		require.NoError(t, err)
		againJSON, err := json.Marshal(again.Explanation)
		require.NoError(t, err)
		assert.JSONEq(t, string(firstJSON), string(againJSON))
	}
}

func TestExplain_TopCausesCapped(t *testing.T) {
	engine := testEngine(t)

	outcome, err := engine.Explain(contracts.Observation{
		ObservationID: "ACOS_TOO_HIGH",
		Signals:       map[string]float64{"acos": 0.45},
		Targets:       map[string]float64{"max_acos": 0.30},
	})
	require.NoError(t, err)
	assert.LessOrEqual(t, len(outcome.Explanation.TopCauses), 3)
	assert.LessOrEqual(t, len(outcome.Explanation.NextBestActions), 3)
}

func TestExplain_RecommendationsDeduplicated(t *testing.T) {
	engine := testEngine(t)

	// POOR_TARGETING (refine_targeting) and BROAD_MATCH_LEAKAGE
	// (refine_targeting) only overlap across playbooks; within one run the
	// action set must be unique by action_id.
	outcome, err := engine.Explain(contracts.Observation{
		ObservationID: "WASTED_SPEND",
		Signals: map[string]float64{
			"wasted_spend_ratio": 0.6,
			"clicks":             40,
			"orders":             0,
			"broad_match_share":  0.8,
		},
		Targets: map[string]float64{"max_wasted_ratio": 0.3},
	})
	require.NoError(t, err)

	seen := map[string]int{}
	for _, rec := range outcome.Explanation.Recommendations {
		seen[rec.ActionID]++
	}
	for actionID, count := range seen {
		assert.Equal(t, 1, count, "action %s duplicated", actionID)
	}
}

func TestExplain_UnsupportedObservation(t *testing.T) {
	engine := testEngine(t)

	outcome, err := engine.Explain(contracts.Observation{ObservationID: "SALES_DROPPED"})
	require.NoError(t, err)
	require.Nil(t, outcome.Explanation)
	require.NotNil(t, outcome.Unsupported)

	assert.Equal(t, "UNSUPPORTED_OBSERVATION", outcome.Unsupported.Status)
	assert.Equal(t, []string{"ACOS_TOO_HIGH", "WASTED_SPEND"}, outcome.Unsupported.SupportedIDs)
}
