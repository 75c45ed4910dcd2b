// Package gate decides whether a proposed action may proceed: eligibility
// against a named threshold profile, safety caps against per-scope
// counters, and cooldown windows. Negative verdicts are structured values
// with human-readable reasons, never errors.
package gate

import (
	"fmt"
	"os"
	"sort"

	"github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v3"

	"github.com/liye-os/kernel/pkg/contracts"
)

// Profile is a named set of eligibility thresholds. Profiles are selected
// by name at call time and versioned alongside their document.
type Profile struct {
	Name           string  `yaml:"name" json:"name"`
	MinClicks      float64 `yaml:"min_clicks" json:"min_clicks"`
	MinSpend       float64 `yaml:"min_spend" json:"min_spend"`
	MinWastedRatio float64 `yaml:"min_wasted_ratio" json:"min_wasted_ratio"`
	MaxOrders      float64 `yaml:"max_orders" json:"max_orders"`
}

// ProfileSet is a versioned collection of named profiles.
type ProfileSet struct {
	Version  string             `yaml:"version" json:"version"`
	Profiles map[string]Profile `yaml:"profiles" json:"profiles"`
}

// DefaultProfiles are the thresholds shipped with the kernel. A profiles
// YAML file replaces them wholesale; there is no per-field merge.
func DefaultProfiles() *ProfileSet {
	return &ProfileSet{
		Version: "1.0.0",
		Profiles: map[string]Profile{
			"aggressive": {
				Name:           "aggressive",
				MinClicks:      10,
				MinSpend:       10,
				MinWastedRatio: 0.20,
				MaxOrders:      0,
			},
			"balanced": {
				Name:           "balanced",
				MinClicks:      20,
				MinSpend:       20,
				MinWastedRatio: 0.30,
				MaxOrders:      0,
			},
			"conservative": {
				Name:           "conservative",
				MinClicks:      40,
				MinSpend:       50,
				MinWastedRatio: 0.40,
				MaxOrders:      0,
			},
		},
	}
}

// LoadProfiles reads a profile set from a YAML file.
func LoadProfiles(path string) (*ProfileSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read profiles %s: %v", contracts.ErrConfig, path, err)
	}

	var set ProfileSet
	if err := yaml.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("%w: parse profiles %s: %v", contracts.ErrConfig, path, err)
	}
	if _, err := semver.NewVersion(set.Version); err != nil {
		return nil, fmt.Errorf("%w: profiles version %q is not semver: %v", contracts.ErrConfig, set.Version, err)
	}
	if len(set.Profiles) == 0 {
		return nil, fmt.Errorf("%w: profiles file %s declares no profiles", contracts.ErrConfig, path)
	}
	for name, p := range set.Profiles {
		if p.Name == "" {
			p.Name = name
			set.Profiles[name] = p
		}
	}
	return &set, nil
}

// Get resolves a profile by name.
func (s *ProfileSet) Get(name string) (*Profile, error) {
	p, ok := s.Profiles[name]
	if !ok {
		names := make([]string, 0, len(s.Profiles))
		for n := range s.Profiles {
			names = append(names, n)
		}
		sort.Strings(names)
		return nil, fmt.Errorf("%w: profile %q not found; available: %v", contracts.ErrConfig, name, names)
	}
	return &p, nil
}
