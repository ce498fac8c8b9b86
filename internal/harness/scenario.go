package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario defines a conformance scenario: a sequence of registry
// operations and settle points run against the demo declarations, with
// the resulting trace compared against a golden file.
type Scenario struct {
	// Name uniquely identifies this scenario; it also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Limit is the threshold limit the demo declarations are built with.
	Limit int `yaml:"limit"`

	// Steps run in order. Each step performs exactly one operation.
	Steps []Step `yaml:"steps"`
}

// Step is one scenario operation. Exactly one field must be set.
type Step struct {
	// AddSensor contextualizes a new sensor with the given name.
	AddSensor string `yaml:"add_sensor,omitempty"`

	// RemoveSensor decontextualizes the named sensor.
	RemoveSensor string `yaml:"remove_sensor,omitempty"`

	// Set writes a sensor's Reading cell.
	Set *SetStep `yaml:"set,omitempty"`

	// Settle runs update passes to a fixed point.
	Settle bool `yaml:"settle,omitempty"`
}

// SetStep writes one reading.
type SetStep struct {
	Sensor  string `yaml:"sensor"`
	Reading int    `yaml:"reading"`
}

// LoadScenario reads and parses a scenario YAML file. Unknown fields
// are rejected so typos fail loudly instead of silently skipping steps.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("parse scenario YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario %s: %w", path, err)
	}
	return &scenario, nil
}

// validateScenario checks required fields and the one-operation-per-step
// rule.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Limit <= 0 {
		return fmt.Errorf("limit must be positive")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	for i, step := range s.Steps {
		ops := 0
		if step.AddSensor != "" {
			ops++
		}
		if step.RemoveSensor != "" {
			ops++
		}
		if step.Set != nil {
			ops++
			if step.Set.Sensor == "" {
				return fmt.Errorf("steps[%d].set: sensor is required", i)
			}
		}
		if step.Settle {
			ops++
		}
		if ops != 1 {
			return fmt.Errorf("steps[%d]: exactly one operation per step, got %d", i, ops)
		}
	}
	return nil
}
