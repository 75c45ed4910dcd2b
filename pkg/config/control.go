package config

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Masterminds/semver/v3"

	"github.com/liye-os/kernel/pkg/canonicalize"
	"github.com/liye-os/kernel/pkg/contracts"
	"github.com/liye-os/kernel/pkg/gate"
)

// ControlSnapshot is the versioned, immutable bundle of execution controls
// the kernel consults on every proposal: the kill switch, the global action
// allow-list, safety caps, and cooldown. A snapshot is swapped as a whole;
// individual fields are never mutated in place, so two checks inside one
// execution always see the same controls.
type ControlSnapshot struct {
	Version    string `yaml:"version" json:"version"`
	TenantID   string `yaml:"tenant_id" json:"tenant_id"`
	KillSwitch bool   `yaml:"kill_switch" json:"kill_switch"`

	// AllowedActions is the closed catalog of executable action ids. An
	// empty list denies everything.
	AllowedActions []string `yaml:"allowed_actions" json:"allowed_actions"`

	MaxItemsPerRun   int `yaml:"max_items_per_run" json:"max_items_per_run"`
	MaxDailyPerScope int `yaml:"max_daily_per_scope" json:"max_daily_per_scope"`
	CooldownMinutes  int `yaml:"cooldown_minutes" json:"cooldown_minutes"`

	ExecutionTimeoutSeconds int    `yaml:"execution_timeout_seconds" json:"execution_timeout_seconds"`
	RollbackTTLHours        int    `yaml:"rollback_ttl_hours" json:"rollback_ttl_hours"`
	DefaultProfile          string `yaml:"default_profile" json:"default_profile"`
}

// Validate checks the snapshot is internally coherent and applies defaults
// for the optional knobs.
func (c *ControlSnapshot) Validate() error {
	if _, err := semver.NewVersion(c.Version); err != nil {
		return fmt.Errorf("%w: control snapshot version %q is not semver: %v",
			contracts.ErrConfig, c.Version, err)
	}
	if c.MaxItemsPerRun < 0 || c.MaxDailyPerScope < 0 || c.CooldownMinutes < 0 {
		return fmt.Errorf("%w: control snapshot caps must not be negative", contracts.ErrConfig)
	}
	if c.ExecutionTimeoutSeconds <= 0 {
		c.ExecutionTimeoutSeconds = 30
	}
	if c.RollbackTTLHours <= 0 {
		c.RollbackTTLHours = 72
	}
	if c.DefaultProfile == "" {
		c.DefaultProfile = "balanced"
	}
	return nil
}

// ActionAllowed reports whether the action id is on the global allow-list.
func (c *ControlSnapshot) ActionAllowed(actionID string) bool {
	for _, id := range c.AllowedActions {
		if id == actionID {
			return true
		}
	}
	return false
}

// Catalog returns the allow-list sorted, for denial messages.
func (c *ControlSnapshot) Catalog() []string {
	out := make([]string, len(c.AllowedActions))
	copy(out, c.AllowedActions)
	sort.Strings(out)
	return out
}

// SafetyLimits converts the snapshot's caps into the gate's limit struct.
func (c *ControlSnapshot) SafetyLimits() gate.SafetyLimits {
	return gate.SafetyLimits{
		MaxItemsPerRun:   c.MaxItemsPerRun,
		MaxDailyPerScope: c.MaxDailyPerScope,
		CooldownWindow:   time.Duration(c.CooldownMinutes) * time.Minute,
	}
}

// ExecutionTimeout is the per-handler wall-clock budget.
func (c *ControlSnapshot) ExecutionTimeout() time.Duration {
	return time.Duration(c.ExecutionTimeoutSeconds) * time.Second
}

// ContentHash is the canonical hash of the snapshot body, recorded in audit
// events so a replayed decision can be tied to the exact controls in force.
func (c *ControlSnapshot) ContentHash() (string, error) {
	return canonicalize.Hash(c)
}

// Controls holds the currently active snapshot and serializes swaps. Swaps
// that would move the version backwards are refused; a rollback is expressed
// by publishing a higher version with the old values.
type Controls struct {
	mu      sync.RWMutex
	current *ControlSnapshot
}

// NewControls seeds the holder with an initial snapshot.
func NewControls(initial *ControlSnapshot) (*Controls, error) {
	if err := initial.Validate(); err != nil {
		return nil, err
	}
	return &Controls{current: initial}, nil
}

// Current returns the active snapshot. Callers must treat it as read-only.
func (h *Controls) Current() *ControlSnapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

// Swap atomically replaces the active snapshot and returns the one it
// displaced, so the caller can audit the transition.
func (h *Controls) Swap(next *ControlSnapshot) (*ControlSnapshot, error) {
	if err := next.Validate(); err != nil {
		return nil, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	cur := semver.MustParse(h.current.Version)
	nxt := semver.MustParse(next.Version)
	if !nxt.GreaterThan(cur) {
		return nil, fmt.Errorf("%w: control snapshot %s does not supersede active %s",
			contracts.ErrConfig, next.Version, h.current.Version)
	}

	prev := h.current
	h.current = next
	return prev, nil
}
