package playbook

import "fmt"

// Built-in playbooks cover the two observation types the kernel ships
// support for out of the box. Deployments override or extend them with
// playbook_*.yaml files; the built-ins go through the exact same schema
// and rule vetting as external documents.

const acosTooHighYAML = `
version: "1.3.0"
observation_type: ACOS_TOO_HIGH
severity: warning
causes:
  - id: BID_TOO_HIGH
    description: Bids are set above what the conversion value sustains.
    rationale:
      - High cost per click inflates spend without matching order value.
    evidence_requirements: [acos, avg_cpc]
    decision_logic: "signals.acos > targets.max_acos && signals.avg_cpc > 2.0"
    recommended_actions:
      - action_id: lower_bid
        title: Lower the keyword bid by 15%
        risk_level: medium
        rationale: Reduces cost per click while keeping impression share.
    counterfactuals:
      - if: "avg_cpc <= 2.0"
        then: ACOS would track the category average at current conversion rates.
  - id: NEW_PRODUCT_PHASE
    description: The product is still in its launch phase with little review history.
    rationale:
      - Early-phase products convert below steady state until reviews accumulate.
      - Elevated ACOS during launch is expected and usually self-corrects.
    evidence_requirements: [acos, days_since_launch, review_count]
    decision_logic: "signals.days_since_launch < 60 && signals.review_count < 20 && signals.acos > targets.max_acos"
    recommended_actions:
      - action_id: hold_optimization
        title: Hold aggressive optimization until the launch phase ends
        risk_level: low
        rationale: Cutting spend now starves the listing of early velocity.
      - action_id: schedule_review_followup
        title: Re-evaluate once review count passes 20
        risk_level: low
    counterfactuals:
      - if: "days_since_launch >= 60"
        then: Launch-phase tolerance would no longer apply and ACOS targets would bind.
  - id: POOR_TARGETING
    description: Traffic quality is poor; clicks do not match purchase intent.
    rationale:
      - Low click-through with low conversion indicates mismatched audiences.
    evidence_requirements: [acos, ctr, conversion_rate]
    decision_logic: "signals.acos > targets.max_acos && signals.ctr < 0.2 && signals.conversion_rate < 5.0"
    recommended_actions:
      - action_id: refine_targeting
        title: Move broad-match terms to exact match
        risk_level: medium
    counterfactuals:
      - if: "ctr >= 0.2"
        then: Spend would concentrate on higher-intent queries.
  - id: LOW_CONVERSION_RATE
    description: The listing itself converts poorly regardless of traffic source.
    evidence_requirements: [conversion_rate, sessions]
    decision_logic: "signals.conversion_rate < 2.0 && signals.sessions > 100"
    recommended_actions:
      - action_id: improve_listing
        title: Audit images, pricing, and A+ content
        risk_level: low
`

const wastedSpendYAML = `
version: "1.1.0"
observation_type: WASTED_SPEND
severity: critical
causes:
  - id: KEYWORD_WASTE
    description: Search terms consume spend with zero resulting orders.
    rationale:
      - A sustained zero-order click stream is the clearest negative-keyword signal.
    evidence_requirements: [wasted_spend_ratio, clicks, orders]
    decision_logic: "signals.wasted_spend_ratio >= targets.max_wasted_ratio && signals.orders == 0.0"
    recommended_actions:
      - action_id: add_negative_keyword
        title: Add the term as a negative keyword
        risk_level: low
        rationale: Stops the bleed without touching performing terms.
      - action_id: pause_keyword
        title: Pause the keyword entirely
        risk_level: medium
    counterfactuals:
      - if: "orders > 0"
        then: The term would be a conversion candidate rather than waste.
  - id: BROAD_MATCH_LEAKAGE
    description: Broad match terms pull in unrelated queries.
    evidence_requirements: [wasted_spend_ratio, broad_match_share]
    decision_logic: "signals.wasted_spend_ratio >= targets.max_wasted_ratio && signals.broad_match_share > 0.5"
    recommended_actions:
      - action_id: refine_targeting
        title: Move broad-match terms to exact match
        risk_level: medium
`

// Builtin returns the compiled built-in playbooks.
func Builtin() ([]*Playbook, error) {
	var playbooks []*Playbook
	for _, doc := range []string{acosTooHighYAML, wastedSpendYAML} {
		pb, err := Load([]byte(doc))
		if err != nil {
			return nil, fmt.Errorf("builtin playbook: %w", err)
		}
		playbooks = append(playbooks, pb)
	}
	return playbooks, nil
}

// MustBuiltin is Builtin for wiring paths where the built-ins failing to
// compile is a programming error.
func MustBuiltin() []*Playbook {
	playbooks, err := Builtin()
	if err != nil {
		panic(err)
	}
	return playbooks
}
