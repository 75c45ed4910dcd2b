package gate

import (
	"fmt"

	"github.com/liye-os/kernel/pkg/contracts"
)

// CheckEligibility evaluates the profile's threshold comparisons against
// the supplied signals. Every failed comparison is reported individually,
// naming the signal, its value, and the threshold that bound it, so an
// operator can see exactly which precondition failed.
//
// Tightening any threshold can only shrink the eligible set; every
// comparison is monotone in its threshold.
func CheckEligibility(profile *Profile, signals map[string]float64) contracts.EligibilityResult {
	result := contracts.EligibilityResult{Eligible: true}
	fail := func(reason string) {
		result.Eligible = false
		result.Reasons = append(result.Reasons, reason)
	}

	if wasted := signals["wasted_spend_ratio"]; wasted < profile.MinWastedRatio {
		fail(fmt.Sprintf("wasted_spend_ratio %.2f below minimum %.2f required by profile %s",
			wasted, profile.MinWastedRatio, profile.Name))
	}
	if clicks := signals["clicks"]; clicks < profile.MinClicks {
		fail(fmt.Sprintf("clicks %.0f below minimum %.0f required by profile %s",
			clicks, profile.MinClicks, profile.Name))
	}
	if spend := signals["spend"]; spend < profile.MinSpend {
		fail(fmt.Sprintf("spend %.2f below minimum %.2f required by profile %s",
			spend, profile.MinSpend, profile.Name))
	}
	if orders := signals["orders"]; orders > profile.MaxOrders {
		fail(fmt.Sprintf("orders %.0f above maximum %.0f allowed by profile %s",
			orders, profile.MaxOrders, profile.Name))
	}

	return result
}
