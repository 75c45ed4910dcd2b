//go:build property
// +build property

package gate

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestEligibilityMonotone verifies that tightening any threshold never
// admits a sample the looser profile rejected.
func TestEligibilityMonotone(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 500
	properties := gopter.NewProperties(parameters)

	signalsGen := gopter.CombineGens(
		gen.Float64Range(0, 1),    // wasted_spend_ratio
		gen.Float64Range(0, 1000), // clicks
		gen.Float64Range(0, 1000), // spend
		gen.Float64Range(0, 10),   // orders
	).Map(func(vs []interface{}) map[string]float64 {
		return map[string]float64{
			"wasted_spend_ratio": vs[0].(float64),
			"clicks":             vs[1].(float64),
			"spend":              vs[2].(float64),
			"orders":             vs[3].(float64),
		}
	})

	properties.Property("tighter profile admits a subset", prop.ForAll(
		func(signals map[string]float64, dRatio, dClicks, dSpend float64) bool {
			base := Profile{
				Name: "base", MinClicks: 20, MinSpend: 20,
				MinWastedRatio: 0.30, MaxOrders: 0,
			}
			tight := base
			tight.Name = "tight"
			tight.MinWastedRatio += dRatio
			tight.MinClicks += dClicks
			tight.MinSpend += dSpend

			if CheckEligibility(&tight, signals).Eligible {
				return CheckEligibility(&base, signals).Eligible
			}
			return true
		},
		signalsGen,
		gen.Float64Range(0, 0.5),
		gen.Float64Range(0, 100),
		gen.Float64Range(0, 100),
	))

	properties.TestingRun(t)
}
