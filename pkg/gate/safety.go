package gate

import (
	"fmt"
	"time"

	"github.com/liye-os/kernel/pkg/contracts"
)

// SafetyLimits are the hard caps that stop an eligible action from running
// too aggressively. They arrive inside the control snapshot, never from
// ambient globals.
type SafetyLimits struct {
	MaxItemsPerRun   int           `yaml:"max_items_per_run" json:"max_items_per_run"`
	MaxDailyPerScope int           `yaml:"max_daily_per_scope" json:"max_daily_per_scope"`
	CooldownWindow   time.Duration `yaml:"cooldown_window" json:"cooldown_window"`
}

// CheckSafety evaluates parameter-level caps against the supplied state
// counters. Any breach is a violation, reported per cap.
//
// The daily count passed here must come from the same CounterStore the
// executor later increments through IncrDailyBelow; the check alone does
// not reserve capacity.
func CheckSafety(itemCount int, dailyCount int64, limits SafetyLimits) contracts.SafetyResult {
	result := contracts.SafetyResult{Safe: true}
	violate := func(v string) {
		result.Safe = false
		result.Violations = append(result.Violations, v)
	}

	if limits.MaxItemsPerRun > 0 && itemCount > limits.MaxItemsPerRun {
		violate(fmt.Sprintf("%d items in one run exceeds the per-run cap of %d",
			itemCount, limits.MaxItemsPerRun))
	}
	if limits.MaxDailyPerScope > 0 && dailyCount >= int64(limits.MaxDailyPerScope) {
		violate(fmt.Sprintf("daily count %d has reached the per-scope cap of %d",
			dailyCount, limits.MaxDailyPerScope))
	}

	return result
}

// CooldownRemaining returns how long the scope must still wait, or zero if
// the cooldown has elapsed (or no prior execution exists).
func CooldownRemaining(lastExecution time.Time, window time.Duration, now time.Time) time.Duration {
	if lastExecution.IsZero() || window <= 0 {
		return 0
	}
	elapsed := now.Sub(lastExecution)
	if elapsed >= window {
		return 0
	}
	return window - elapsed
}
