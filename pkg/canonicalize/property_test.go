//go:build property
// +build property

package canonicalize

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestCanonicalDeterminism verifies Canonical(obj) == Canonical(obj) and
// that insertion order of map keys never changes the canonical form.
func TestCanonicalDeterminism(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("canonical form is key-order invariant", prop.ForAll(
		func(keys []string, values []string) bool {
			forward := make(map[string]any)
			for i := 0; i < len(keys) && i < len(values); i++ {
				if keys[i] != "" {
					forward[keys[i]] = values[i]
				}
			}
			reverse := make(map[string]any)
			for i := len(keys) - 1; i >= 0; i-- {
				if i < len(values) && keys[i] != "" {
					reverse[keys[i]] = values[i]
				}
			}

			a, err1 := Canonical(forward)
			b, err2 := Canonical(reverse)
			if err1 != nil || err2 != nil {
				return err1 != nil && err2 != nil
			}
			return string(a) == string(b)
		},
		gen.SliceOf(gen.Identifier()),
		gen.SliceOf(gen.AlphaString()),
	))

	properties.Property("hashing is deterministic", prop.ForAll(
		func(keys []string) bool {
			obj := make(map[string]any)
			for i, k := range keys {
				if k != "" {
					obj[k] = i
				}
			}
			h1, err1 := Hash(obj)
			h2, err2 := Hash(obj)
			if err1 != nil || err2 != nil {
				return err1 != nil && err2 != nil
			}
			return h1 == h2 && len(h1) == 64
		},
		gen.SliceOf(gen.Identifier()),
	))

	properties.TestingRun(t)
}
