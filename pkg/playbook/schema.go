package playbook

import (
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/liye-os/kernel/pkg/contracts"
)

// playbookSchema is the structural contract a playbook document must meet
// before any of its content is trusted.
const playbookSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["version", "observation_type", "severity", "causes"],
  "properties": {
    "version": {"type": "string", "minLength": 1},
    "observation_type": {"type": "string", "pattern": "^[A-Z][A-Z0-9_]*$"},
    "severity": {"type": "string", "enum": ["info", "warning", "critical"]},
    "causes": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["id", "description", "evidence_requirements", "decision_logic"],
        "properties": {
          "id": {"type": "string", "pattern": "^[A-Z][A-Z0-9_]*$"},
          "description": {"type": "string", "minLength": 1},
          "rationale": {"type": "array", "items": {"type": "string"}},
          "evidence_requirements": {
            "type": "array",
            "minItems": 1,
            "items": {"type": "string", "minLength": 1}
          },
          "decision_logic": {"type": "string", "minLength": 1},
          "recommended_actions": {
            "type": "array",
            "items": {
              "type": "object",
              "required": ["action_id", "title", "risk_level"],
              "properties": {
                "action_id": {"type": "string", "minLength": 1},
                "title": {"type": "string", "minLength": 1},
                "risk_level": {"type": "string", "enum": ["low", "medium", "high"]},
                "rationale": {"type": "string"}
              }
            }
          },
          "counterfactuals": {
            "type": "array",
            "items": {
              "type": "object",
              "required": ["if", "then"],
              "properties": {
                "if": {"type": "string", "minLength": 1},
                "then": {"type": "string", "minLength": 1}
              }
            }
          }
        }
      }
    }
  }
}`

var compiledSchema = jsonschema.MustCompileString("playbook.schema.json", playbookSchema)

// validateSchema checks a raw YAML playbook document against the schema.
func validateSchema(data []byte) error {
	var doc interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("%w: playbook YAML: %v", contracts.ErrConfig, err)
	}

	if err := compiledSchema.Validate(doc); err != nil {
		return fmt.Errorf("%w: playbook schema: %v", contracts.ErrConfig, err)
	}
	return nil
}
