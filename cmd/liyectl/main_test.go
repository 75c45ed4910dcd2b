package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liye-os/kernel/pkg/contracts"
	"github.com/liye-os/kernel/pkg/evidence"
	"github.com/liye-os/kernel/pkg/store"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func writeSealedPackage(t *testing.T, mutate func(p *contracts.EvidencePackage)) string {
	t.Helper()

	b := evidence.NewBuilder("liye_os.kernel", "9fceb02ab",
		fixedClock{t: time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)})
	pkg, err := b.Build(&contracts.DecisionResponse{
		OK:             true,
		Decision:       contracts.DecisionAllow,
		Origin:         "liye_os.policy",
		OriginProof:    true,
		PolicyVersion:  "policy-v3",
		TraceID:        "trace_cli_0001",
		VerdictSummary: "all proposed actions within policy",
	}, &contracts.DecisionRequest{
		Task:     "update bid",
		TenantID: "acme",
		ProposedActions: []contracts.ProposedAction{
			{ActionType: "write", Tool: "bids_api"},
		},
	})
	require.NoError(t, err)

	if mutate != nil {
		mutate(pkg)
	}

	data, err := json.MarshalIndent(pkg, "", "  ")
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "package.json")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func runCLI(args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	code := Run(append([]string{"liyectl"}, args...), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRun_Usage(t *testing.T) {
	code, _, stderr := runCLI()
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "Usage")

	code, stdout, _ := runCLI("help")
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "replay")

	code, _, stderr = runCLI("frobnicate")
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "Unknown command")
}

func TestReplayCmd_Pass(t *testing.T) {
	path := writeSealedPackage(t, nil)

	code, stdout, _ := runCLI("replay", "--package", path)
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "PASSED")
	assert.Contains(t, stdout, "trace_cli_0001")
}

func TestReplayCmd_TamperFails(t *testing.T) {
	path := writeSealedPackage(t, func(p *contracts.EvidencePackage) {
		p.PolicyRef = "policy-v4"
	})

	code, stdout, _ := runCLI("replay", "--package", path)
	assert.Equal(t, 1, code)
	assert.Contains(t, stdout, "FAILED")
	assert.Contains(t, stdout, "package_hash_match: false")
}

func TestReplayCmd_JSONOutput(t *testing.T) {
	path := writeSealedPackage(t, nil)

	code, stdout, _ := runCLI("replay", "--package", path, "--json")
	require.Equal(t, 0, code)

	var result map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &result))
	assert.Equal(t, true, result["decision_match"])
	assert.Equal(t, true, result["package_hash_match"])
}

func TestReplayCmd_Errors(t *testing.T) {
	code, _, stderr := runCLI("replay")
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "--package is required")

	code, _, _ = runCLI("replay", "--package", "/does/not/exist.json")
	assert.Equal(t, 2, code)
}

func TestReplayCmd_FromStore(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("EVIDENCE_DIR", dir)

	path := writeSealedPackage(t, nil)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var pkg contracts.EvidencePackage
	require.NoError(t, json.Unmarshal(data, &pkg))

	evidenceStore, err := store.NewFSEvidenceStore(dir)
	require.NoError(t, err)
	require.NoError(t, evidenceStore.Put(context.Background(), &pkg))

	code, stdout, _ := runCLI("replay", "--trace", "trace_cli_0001")
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "PASSED")

	code, _, stderr := runCLI("replay", "--trace", "no_such_trace")
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "not found")
}

func writeExecuteInput(t *testing.T, proposal contracts.ActionProposal, signals map[string]float64) string {
	t.Helper()
	data, err := json.Marshal(map[string]any{"proposal": proposal, "signals": signals})
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "proposal.json")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func executeSignals() map[string]float64 {
	return map[string]float64{
		"wasted_spend_ratio": 0.40,
		"clicks":             30,
		"spend":              25,
		"orders":             0,
	}
}

func TestExecuteCmd_DryRun(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("KERNEL_DB_PATH", filepath.Join(dir, "kernel.db"))
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("CONTROLS_PATH", "")

	controlsPath := filepath.Join(dir, "controls.yaml")
	body := `version: "1.0.0"
tenant_id: tenant-a
allowed_actions:
  - pause_keyword
max_items_per_run: 5
max_daily_per_scope: 20
cooldown_minutes: 60
`
	require.NoError(t, os.WriteFile(controlsPath, []byte(body), 0o600))

	input := writeExecuteInput(t, contracts.ActionProposal{
		ProposalID:    "prop-0001",
		ActionID:      "pause_keyword",
		TraceID:       "trace_cli_0002",
		Scope:         "campaign-1",
		ExecutionMode: contracts.ModeAutoIfSafe,
		Params:        map[string]any{"keyword_id": "kw-1"},
	}, executeSignals())

	code, stdout, _ := runCLI("execute", "--proposal", input, "--controls", controlsPath)
	require.Equal(t, 0, code)

	var result contracts.ExecutionResult
	require.NoError(t, json.Unmarshal([]byte(stdout), &result))
	assert.Equal(t, contracts.StatusDryRun, result.Status)
	assert.True(t, result.DryRun)
	require.NotNil(t, result.RollbackPayload)
	assert.Equal(t, "enable_keyword", result.RollbackPayload.Method)
}

func TestExecuteCmd_DefaultControlsDenyEverything(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("KERNEL_DB_PATH", filepath.Join(dir, "kernel.db"))
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("CONTROLS_PATH", "")

	input := writeExecuteInput(t, contracts.ActionProposal{
		ProposalID:    "prop-0002",
		ActionID:      "pause_keyword",
		TraceID:       "trace_cli_0003",
		Scope:         "campaign-1",
		ExecutionMode: contracts.ModeAutoIfSafe,
		Params:        map[string]any{"keyword_id": "kw-1"},
	}, executeSignals())

	code, stdout, _ := runCLI("execute", "--proposal", input)
	require.Equal(t, 1, code)

	var result contracts.ExecutionResult
	require.NoError(t, json.Unmarshal([]byte(stdout), &result))
	assert.Equal(t, contracts.StatusDenyUnsupported, result.Status)

	code, _, stderr := runCLI("execute")
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "--proposal is required")
}

func writeObservation(t *testing.T, obs contracts.Observation) string {
	t.Helper()
	data, err := json.Marshal(obs)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "observation.json")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestExplainCmd_RanksCauses(t *testing.T) {
	path := writeObservation(t, contracts.Observation{
		ObservationID: "ACOS_TOO_HIGH",
		Signals: map[string]float64{
			"acos":              0.62,
			"days_since_launch": 21,
			"review_count":      4,
		},
		Targets: map[string]float64{"max_acos": 0.30},
	})

	code, stdout, _ := runCLI("explain", "--observation", path)
	require.Equal(t, 0, code)

	var explanation contracts.Explanation
	require.NoError(t, json.Unmarshal([]byte(stdout), &explanation))
	require.NotEmpty(t, explanation.TopCauses)
	assert.Equal(t, "NEW_PRODUCT_PHASE", explanation.TopCauses[0].CauseID)
}

func TestExplainCmd_Unsupported(t *testing.T) {
	path := writeObservation(t, contracts.Observation{
		ObservationID: "SALES_DROPPED",
		Signals:       map[string]float64{"sales": 10},
	})

	code, stdout, _ := runCLI("explain", "--observation", path)
	require.Equal(t, 1, code)

	var deny contracts.UnsupportedObservation
	require.NoError(t, json.Unmarshal([]byte(stdout), &deny))
	assert.Equal(t, "UNSUPPORTED_OBSERVATION", deny.Status)
	assert.Contains(t, deny.SupportedIDs, "ACOS_TOO_HIGH")
}

func writePlan(t *testing.T, plan contracts.ActionPlan) string {
	t.Helper()
	data, err := json.Marshal(plan)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "plan.json")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestPlanVerifyCmd(t *testing.T) {
	good := contracts.ActionPlan{
		PlanID:  "plan-1",
		TraceID: "trace_cli_0001",
		Actions: []contracts.PlanAction{
			{ActionID: "a-1", ActionType: "write", Tool: "ads.pause_keyword", DryRunOnly: true},
		},
		Guarantee: contracts.Guarantee{NoRealWrite: true},
		Status:    contracts.PlanApproved,
	}
	code, stdout, _ := runCLI("plan-verify", "--plan", writePlan(t, good))
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "guarantee holds")

	bad := good
	bad.Actions = []contracts.PlanAction{
		{ActionID: "a-1", ActionType: "write", Tool: "ads.pause_keyword", DryRunOnly: false},
	}
	bad.Guarantee.WriteCallsAttempted = 3
	code, stdout, _ = runCLI("plan-verify", "--plan", writePlan(t, bad))
	assert.Equal(t, 1, code)
	assert.Contains(t, stdout, "GUARANTEE VIOLATED")
	assert.Contains(t, stdout, "write_calls_attempted")
	assert.Contains(t, stdout, "dry_run_only")

	code, _, stderr := runCLI("plan-verify")
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "--plan is required")
}

func TestControlsCmd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "controls.yaml")
	body := `version: "1.4.0"
tenant_id: tenant-a
allowed_actions:
  - pause_keyword
max_items_per_run: 5
max_daily_per_scope: 20
cooldown_minutes: 60
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	code, stdout, _ := runCLI("controls", "--file", path)
	require.Equal(t, 0, code)
	assert.Contains(t, stdout, "version:      1.4.0")
	assert.Contains(t, stdout, "content_hash:")

	code, _, stderr := runCLI("controls", "--file", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Equal(t, 2, code)
	assert.NotEmpty(t, stderr)
}
