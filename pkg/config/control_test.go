package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snapshotFixture(version string) *ControlSnapshot {
	return &ControlSnapshot{
		Version:          version,
		TenantID:         "tenant-a",
		AllowedActions:   []string{"pause_keyword", "add_negative_keyword"},
		MaxItemsPerRun:   5,
		MaxDailyPerScope: 20,
		CooldownMinutes:  60,
	}
}

func TestControlSnapshot_Validate(t *testing.T) {
	s := snapshotFixture("1.2.0")
	require.NoError(t, s.Validate())

	// Defaults are filled in.
	assert.Equal(t, 30, s.ExecutionTimeoutSeconds)
	assert.Equal(t, 72, s.RollbackTTLHours)
	assert.Equal(t, "balanced", s.DefaultProfile)

	bad := snapshotFixture("not-a-version")
	require.Error(t, bad.Validate())

	negative := snapshotFixture("1.0.0")
	negative.MaxDailyPerScope = -1
	require.Error(t, negative.Validate())
}

func TestControlSnapshot_ActionAllowed(t *testing.T) {
	s := snapshotFixture("1.0.0")
	assert.True(t, s.ActionAllowed("pause_keyword"))
	assert.False(t, s.ActionAllowed("delete_campaign"))

	empty := &ControlSnapshot{Version: "1.0.0"}
	assert.False(t, empty.ActionAllowed("pause_keyword"), "empty allow-list denies everything")
}

func TestControlSnapshot_SafetyLimits(t *testing.T) {
	s := snapshotFixture("1.0.0")
	limits := s.SafetyLimits()
	assert.Equal(t, 5, limits.MaxItemsPerRun)
	assert.Equal(t, 20, limits.MaxDailyPerScope)
	assert.Equal(t, time.Hour, limits.CooldownWindow)
}

func TestControlSnapshot_ContentHash(t *testing.T) {
	a := snapshotFixture("1.0.0")
	b := snapshotFixture("1.0.0")
	require.NoError(t, a.Validate())
	require.NoError(t, b.Validate())

	ha, err := a.ContentHash()
	require.NoError(t, err)
	hb, err := b.ContentHash()
	require.NoError(t, err)
	assert.Equal(t, ha, hb)

	b.KillSwitch = true
	hb, err = b.ContentHash()
	require.NoError(t, err)
	assert.NotEqual(t, ha, hb)
}

func TestControls_SwapRefusesOlder(t *testing.T) {
	holder, err := NewControls(snapshotFixture("1.1.0"))
	require.NoError(t, err)

	_, err = holder.Swap(snapshotFixture("1.0.9"))
	require.Error(t, err)
	_, err = holder.Swap(snapshotFixture("1.1.0"))
	require.Error(t, err, "same version must not swap")

	prev, err := holder.Swap(snapshotFixture("1.2.0"))
	require.NoError(t, err)
	assert.Equal(t, "1.1.0", prev.Version)
	assert.Equal(t, "1.2.0", holder.Current().Version)
}

func TestLoadControls(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "controls.yaml")
	body := `version: "2.0.0"
tenant_id: tenant-a
kill_switch: false
allowed_actions:
  - pause_keyword
max_items_per_run: 3
max_daily_per_scope: 12
cooldown_minutes: 30
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	s, err := LoadControls(path)
	require.NoError(t, err)
	assert.Equal(t, "2.0.0", s.Version)
	assert.Equal(t, 3, s.MaxItemsPerRun)
	assert.True(t, s.ActionAllowed("pause_keyword"))

	_, err = LoadControls(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
}

func TestDefaultControls(t *testing.T) {
	s := DefaultControls()
	assert.Empty(t, s.AllowedActions)
	assert.False(t, s.ActionAllowed("pause_keyword"))
	assert.Equal(t, 72, s.RollbackTTLHours)
}
