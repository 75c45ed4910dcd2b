package gate

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Borderline zero-order waste sample: eligible under balanced, blocked by
// conservative's higher spend floor.
var wasteSignals = map[string]float64{
	"wasted_spend_ratio": 0.40,
	"clicks":             30,
	"spend":              25,
	"orders":             0,
}

func TestCheckEligibility_BalancedVsConservative(t *testing.T) {
	profiles := DefaultProfiles()

	balanced, err := profiles.Get("balanced")
	require.NoError(t, err)
	result := CheckEligibility(balanced, wasteSignals)
	assert.True(t, result.Eligible)
	assert.Empty(t, result.Reasons)

	conservative, err := profiles.Get("conservative")
	require.NoError(t, err)
	result = CheckEligibility(conservative, wasteSignals)
	require.False(t, result.Eligible)

	// The failure must name the signal that missed its threshold.
	found := false
	for _, reason := range result.Reasons {
		if strings.Contains(reason, "spend") && !strings.Contains(reason, "wasted") {
			found = true
		}
	}
	assert.True(t, found, "expected a reason naming spend, got %v", result.Reasons)
}

func TestCheckEligibility_OrdersCap(t *testing.T) {
	profiles := DefaultProfiles()
	balanced, err := profiles.Get("balanced")
	require.NoError(t, err)

	signals := map[string]float64{
		"wasted_spend_ratio": 0.40,
		"clicks":             30,
		"spend":              25,
		"orders":             2,
	}
	result := CheckEligibility(balanced, signals)
	require.False(t, result.Eligible)
	assert.Contains(t, result.Reasons[0], "orders")
}

// Tightening any single threshold must never enlarge the eligible set.
func TestCheckEligibility_Monotone(t *testing.T) {
	base := Profile{Name: "base", MinClicks: 20, MinSpend: 20, MinWastedRatio: 0.30, MaxOrders: 0}

	samples := []map[string]float64{
		wasteSignals,
		{"wasted_spend_ratio": 0.30, "clicks": 20, "spend": 20, "orders": 0},
		{"wasted_spend_ratio": 0.95, "clicks": 500, "spend": 900, "orders": 0},
		{"wasted_spend_ratio": 0.10, "clicks": 5, "spend": 2, "orders": 1},
	}

	tighter := []Profile{
		{Name: "t1", MinClicks: 25, MinSpend: 20, MinWastedRatio: 0.30, MaxOrders: 0},
		{Name: "t2", MinClicks: 20, MinSpend: 30, MinWastedRatio: 0.30, MaxOrders: 0},
		{Name: "t3", MinClicks: 20, MinSpend: 20, MinWastedRatio: 0.50, MaxOrders: 0},
	}

	for _, sample := range samples {
		baseEligible := CheckEligibility(&base, sample).Eligible
		for _, tight := range tighter {
			tightEligible := CheckEligibility(&tight, sample).Eligible
			if tightEligible {
				assert.True(t, baseEligible,
					"profile %s admitted a sample the looser base rejected: %v", tight.Name, sample)
			}
		}
	}
}

func TestProfileSet_GetUnknown(t *testing.T) {
	_, err := DefaultProfiles().Get("reckless")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "balanced")
}

func TestCheckSafety(t *testing.T) {
	limits := SafetyLimits{MaxItemsPerRun: 5, MaxDailyPerScope: 10}

	assert.True(t, CheckSafety(3, 4, limits).Safe)

	result := CheckSafety(9, 4, limits)
	require.False(t, result.Safe)
	assert.Contains(t, result.Violations[0], "per-run cap")

	result = CheckSafety(3, 10, limits)
	require.False(t, result.Safe)
	assert.Contains(t, result.Violations[0], "per-scope cap")

	// Zero limits mean uncapped.
	assert.True(t, CheckSafety(1000, 1000, SafetyLimits{}).Safe)
}

func TestCooldownRemaining(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	window := time.Hour

	assert.Equal(t, time.Duration(0), CooldownRemaining(time.Time{}, window, now))
	assert.Equal(t, time.Duration(0), CooldownRemaining(now.Add(-2*time.Hour), window, now))
	assert.Equal(t, 30*time.Minute, CooldownRemaining(now.Add(-30*time.Minute), window, now))
}

func TestMemoryCounterStore_IncrDailyBelow(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryCounterStore(nil)

	for i := 1; i <= 3; i++ {
		count, ok, err := store.IncrDailyBelow(ctx, "campaign-1", 3)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, int64(i), count)
	}

	count, ok, err := store.IncrDailyBelow(ctx, "campaign-1", 3)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, int64(3), count)

	// Other scopes are unaffected.
	_, ok, err = store.IncrDailyBelow(ctx, "campaign-2", 3)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryCounterStore_DayRollover(t *testing.T) {
	ctx := context.Background()
	current := time.Date(2026, 3, 14, 23, 59, 0, 0, time.UTC)
	var mu sync.Mutex
	store := NewMemoryCounterStore(func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return current
	})

	_, ok, err := store.IncrDailyBelow(ctx, "campaign-1", 1)
	require.NoError(t, err)
	require.True(t, ok)
	_, ok, _ = store.IncrDailyBelow(ctx, "campaign-1", 1)
	require.False(t, ok)

	mu.Lock()
	current = current.Add(2 * time.Minute) // past midnight
	mu.Unlock()

	_, ok, err = store.IncrDailyBelow(ctx, "campaign-1", 1)
	require.NoError(t, err)
	assert.True(t, ok, "count must reset on UTC day rollover")
}

// Concurrent increments must never exceed the cap; this is the race the
// atomic compare-and-increment exists to prevent.
func TestMemoryCounterStore_ConcurrentCap(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryCounterStore(nil)

	const dailyCap = 10
	const workers = 100
	applied := make(chan bool, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok, err := store.IncrDailyBelow(ctx, "hot-scope", dailyCap)
			assert.NoError(t, err)
			applied <- ok
		}()
	}
	wg.Wait()
	close(applied)

	succeeded := 0
	for ok := range applied {
		if ok {
			succeeded++
		}
	}
	assert.Equal(t, dailyCap, succeeded)

	count, err := store.DailyCount(ctx, "hot-scope")
	require.NoError(t, err)
	assert.Equal(t, int64(dailyCap), count)
}

func TestMemoryCounterStore_LastExecution(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryCounterStore(nil)

	_, found, err := store.LastExecution(ctx, "campaign-1")
	require.NoError(t, err)
	assert.False(t, found)

	at := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.RecordExecution(ctx, "campaign-1", at))

	got, found, err := store.LastExecution(ctx, "campaign-1")
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, got.Equal(at))
}
