package replay

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liye-os/kernel/pkg/contracts"
	"github.com/liye-os/kernel/pkg/evidence"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func sealedPackage(t *testing.T) []byte {
	t.Helper()
	b := evidence.NewBuilder("liye_os.kernel", "9fceb02ab",
		fixedClock{t: time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)})

	pkg, err := b.Build(
		&contracts.DecisionResponse{
			OK:             true,
			Decision:       contracts.DecisionAllow,
			Origin:         "liye_os.policy",
			OriginProof:    true,
			PolicyVersion:  "policy-v3",
			TraceID:        "trace_replay_001",
			VerdictSummary: "clean",
		},
		&contracts.DecisionRequest{
			Task:     "rotate credentials",
			TenantID: "acme",
			ProposedActions: []contracts.ProposedAction{
				{ActionType: "write", Tool: "secrets_api"},
			},
		},
	)
	require.NoError(t, err)

	data, err := json.Marshal(pkg)
	require.NoError(t, err)
	return data
}

func TestReplay_IntactPackage(t *testing.T) {
	result, err := Replay(sealedPackage(t))
	require.NoError(t, err)

	assert.True(t, result.DecisionMatch)
	assert.True(t, result.PackageHashMatch)
	assert.True(t, result.OK())
	assert.Equal(t, result.StoredHash, result.ComputedHash)
}

func TestReplay_FlippedDecisionBreaksHash(t *testing.T) {
	data := sealedPackage(t)

	// One character flipped inside the decision value: still a valid enum
	// member, so well-formedness passes, but the seal must break.
	tampered := strings.Replace(string(data), `"decision":"ALLOW"`, `"decision":"BLOCK"`, 1)
	require.NotEqual(t, string(data), tampered)

	result, err := Replay([]byte(tampered))
	require.NoError(t, err)
	assert.True(t, result.DecisionMatch)
	assert.False(t, result.PackageHashMatch)
	assert.False(t, result.OK())
	assert.Contains(t, result.Reason, "mismatch")
}

func TestReplay_MalformedDecisionEnum(t *testing.T) {
	data := sealedPackage(t)
	tampered := strings.Replace(string(data), `"decision":"ALLOW"`, `"decision":"AXLOW"`, 1)

	result, err := Replay([]byte(tampered))
	require.NoError(t, err)
	assert.False(t, result.DecisionMatch)
	assert.False(t, result.PackageHashMatch)
}

func TestReplay_MissingFieldFailsClosed(t *testing.T) {
	data := sealedPackage(t)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))
	delete(raw, "policy_ref")
	stripped, err := json.Marshal(raw)
	require.NoError(t, err)

	_, err = Replay(stripped)
	assert.ErrorIs(t, err, contracts.ErrValidation)
}

func TestReplay_MalformedJSON(t *testing.T) {
	_, err := Replay([]byte(`{"version": `))
	assert.ErrorIs(t, err, contracts.ErrValidation)
}

func TestReplay_TamperedPolicyRef(t *testing.T) {
	data := sealedPackage(t)
	tampered := strings.Replace(string(data), `"policy_ref":"policy-v3"`, `"policy_ref":"policy-v4"`, 1)
	require.NotEqual(t, string(data), tampered)

	result, err := Replay([]byte(tampered))
	require.NoError(t, err)
	assert.False(t, result.PackageHashMatch)
}

func TestFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace_replay_001.json")
	require.NoError(t, os.WriteFile(path, sealedPackage(t), 0o444))

	result, err := FromFile(path)
	require.NoError(t, err)
	assert.True(t, result.OK())

	_, err = FromFile(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}
