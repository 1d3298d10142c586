package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario defines one executable conformance case: seed state, an action
// tree (inline IR JSON or handler source to compile), the triggering event,
// and the expected outcome.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Seed establishes store state before the action runs.
	Seed []SeedEntry `yaml:"seed,omitempty"`

	// Action is an inline IR JSON descriptor. Exactly one of Action and
	// Handler must be set.
	Action string `yaml:"action,omitempty"`

	// Handler is handler source text compiled before execution. Compiler
	// diagnostics fail the scenario load, not the assertions.
	Handler string `yaml:"handler,omitempty"`

	// Event is the triggering event payload.
	Event map[string]any `yaml:"event,omitempty"`

	// Session binds session-scoped store references.
	Session string `yaml:"session,omitempty"`

	// ExpectState asserts on store state after the invocation completes.
	ExpectState []StateExpect `yaml:"expect_state,omitempty"`

	// ExpectFaults is the exact number of faults the invocation must
	// collect. Zero means the run must be clean.
	ExpectFaults int `yaml:"expect_faults,omitempty"`
}

// SeedEntry writes one value before execution. Store defaults to "app".
type SeedEntry struct {
	Store string `yaml:"store,omitempty"`
	Path  string `yaml:"path"`
	Value any    `yaml:"value"`
}

// StateExpect asserts one key path after execution. Absent asserts the
// path does not exist; otherwise Value is compared with logical equality.
type StateExpect struct {
	Store  string `yaml:"store,omitempty"`
	Path   string `yaml:"path"`
	Value  any    `yaml:"value,omitempty"`
	Absent bool   `yaml:"absent,omitempty"`
}

// LoadScenario reads and parses a scenario YAML file. Unknown fields are
// rejected so typos fail loudly instead of silently skipping assertions.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}

	var scenario Scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}

	if err := scenario.validate(); err != nil {
		return nil, fmt.Errorf("invalid scenario %s: %w", path, err)
	}
	return &scenario, nil
}

func (s *Scenario) validate() error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if (s.Action == "") == (s.Handler == "") {
		return fmt.Errorf("exactly one of action and handler is required")
	}
	for i, seed := range s.Seed {
		if seed.Path == "" {
			return fmt.Errorf("seed[%d]: path is required", i)
		}
	}
	for i, exp := range s.ExpectState {
		if exp.Path == "" {
			return fmt.Errorf("expect_state[%d]: path is required", i)
		}
		if exp.Absent && exp.Value != nil {
			return fmt.Errorf("expect_state[%d]: absent excludes value", i)
		}
	}
	return nil
}
