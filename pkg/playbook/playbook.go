// Package playbook loads and validates the versioned cause catalogs the
// explanation engine consumes. A playbook maps one observation type to its
// candidate root causes, the evidence each candidate requires, a restricted
// boolean decision rule, and the remedial actions it recommends.
//
// Playbooks are externally authored configuration. They are schema-validated
// and their decision rules are compiled and vetted at load time, before
// anything trusts them; a playbook that fails any of these checks is a
// ConfigError, not a degraded engine.
package playbook

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v3"

	"github.com/liye-os/kernel/pkg/contracts"
)

// CauseCandidate is one root-cause hypothesis declared by a playbook.
// The explanation engine never mutates a candidate.
type CauseCandidate struct {
	ID                   string                        `yaml:"id" json:"id"`
	Description          string                        `yaml:"description" json:"description"`
	Rationale            []string                      `yaml:"rationale,omitempty" json:"rationale,omitempty"`
	EvidenceRequirements []string                      `yaml:"evidence_requirements" json:"evidence_requirements"`
	DecisionLogic        string                        `yaml:"decision_logic" json:"decision_logic"`
	RecommendedActions   []contracts.RecommendedAction `yaml:"recommended_actions,omitempty" json:"recommended_actions,omitempty"`
	Counterfactuals      []contracts.Counterfactual    `yaml:"counterfactuals,omitempty" json:"counterfactuals,omitempty"`

	logic *Logic
}

// Logic returns the compiled decision rule for this candidate.
func (c *CauseCandidate) Logic() *Logic { return c.logic }

// Playbook is the validated catalog for one observation type. Cause order
// is declaration order and is the deterministic tie-break during ranking.
type Playbook struct {
	Version         string           `yaml:"version" json:"version"`
	ObservationType string           `yaml:"observation_type" json:"observation_type"`
	Severity        string           `yaml:"severity" json:"severity"`
	Causes          []CauseCandidate `yaml:"causes" json:"causes"`
}

// Load parses, schema-validates, and compiles a playbook document.
func Load(data []byte) (*Playbook, error) {
	if err := validateSchema(data); err != nil {
		return nil, err
	}

	var pb Playbook
	if err := yaml.Unmarshal(data, &pb); err != nil {
		return nil, fmt.Errorf("%w: playbook parse: %v", contracts.ErrConfig, err)
	}
	if err := pb.compile(); err != nil {
		return nil, err
	}
	return &pb, nil
}

// LoadFile loads a playbook from a YAML file.
func LoadFile(path string) (*Playbook, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read playbook %s: %v", contracts.ErrConfig, path, err)
	}
	pb, err := Load(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return pb, nil
}

// LoadDir loads all playbook_*.yaml files from a directory.
func LoadDir(dir string) ([]*Playbook, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "playbook_*.yaml"))
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)

	playbooks := make([]*Playbook, 0, len(matches))
	for _, path := range matches {
		pb, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		playbooks = append(playbooks, pb)
	}
	return playbooks, nil
}

// compile validates the version, checks cause uniqueness, and compiles
// every decision rule through the restricted evaluator.
func (pb *Playbook) compile() error {
	if _, err := semver.NewVersion(pb.Version); err != nil {
		return fmt.Errorf("%w: playbook %s version %q is not semver: %v",
			contracts.ErrConfig, pb.ObservationType, pb.Version, err)
	}
	if pb.ObservationType == "" {
		return fmt.Errorf("%w: playbook observation_type is required", contracts.ErrConfig)
	}
	if len(pb.Causes) == 0 {
		return fmt.Errorf("%w: playbook %s declares no causes", contracts.ErrConfig, pb.ObservationType)
	}

	seen := make(map[string]bool, len(pb.Causes))
	for i := range pb.Causes {
		cause := &pb.Causes[i]
		if cause.ID == "" {
			return fmt.Errorf("%w: playbook %s cause %d has no id", contracts.ErrConfig, pb.ObservationType, i)
		}
		if seen[cause.ID] {
			return fmt.Errorf("%w: playbook %s duplicate cause id %s", contracts.ErrConfig, pb.ObservationType, cause.ID)
		}
		seen[cause.ID] = true

		logic, err := CompileLogic(cause.DecisionLogic)
		if err != nil {
			return fmt.Errorf("cause %s: %w", cause.ID, err)
		}
		cause.logic = logic
	}
	return nil
}

// SemVer returns the parsed playbook version. compile guarantees it parses.
func (pb *Playbook) SemVer() *semver.Version {
	v, _ := semver.NewVersion(pb.Version)
	return v
}
