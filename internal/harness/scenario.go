package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/pinbase/internal/ir"
)

// Scenario defines an end-to-end catalog scenario: a sequence of pipeline
// steps followed by assertions on what they produced.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario checks.
	Description string `yaml:"description"`

	// Steps run in order against one database.
	Steps []Step `yaml:"steps"`

	// Assertions validate the step outcomes and the final catalog.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step is one pipeline operation. Exactly one field must be set.
type Step struct {
	Run         *RunStep      `yaml:"run,omitempty"`
	SetPriority *PriorityStep `yaml:"set_priority,omitempty"`
	Republish   bool          `yaml:"republish,omitempty"`
}

// RunStep is a full reconciliation pass over source files.
type RunStep struct {
	Rows      []string `yaml:"rows,omitempty"`
	Flat      []string `yaml:"flat,omitempty"`
	Overrides []string `yaml:"overrides,omitempty"`
}

// PriorityStep changes a source's priority. It publishes nothing by itself.
type PriorityStep struct {
	Source   string `yaml:"source"`
	Priority int    `yaml:"priority"`
}

// Action names the step's operation.
func (s Step) Action() string {
	switch {
	case s.Run != nil:
		return ActionRun
	case s.SetPriority != nil:
		return ActionSetPriority
	case s.Republish:
		return ActionRepublish
	}
	return ""
}

// Step action names.
const (
	ActionRun         = "run"
	ActionSetPriority = "set_priority"
	ActionRepublish   = "republish"
)

// Assertion validates step outcomes or the final catalog.
type Assertion struct {
	// Type specifies the assertion type:
	// - "field": resolved field equals Value (or is missing with Absent)
	// - "entity": entity exists (or not, with Absent); Parent and Default are optional
	// - "entity_count": catalog holds Count entities of Kind
	// - "published": Step published a snapshot iff Expect
	// - "violation": a step reported Code, optionally for Entity
	// - "unresolved": a step reported Raw as unresolved
	Type string `yaml:"type"`

	// Entity is an entity reference such as "model:G1-M1".
	Entity string `yaml:"entity,omitempty"`

	// Field is the resolved field name (used by field).
	Field string `yaml:"field,omitempty"`

	// Value is the expected field value (used by field).
	Value any `yaml:"value,omitempty"`

	// Absent inverts field and entity assertions.
	Absent bool `yaml:"absent,omitempty"`

	// Parent is the expected parent reference (used by entity).
	Parent string `yaml:"parent,omitempty"`

	// Default is the expected default flag (used by entity).
	Default *bool `yaml:"default,omitempty"`

	// Kind and Count are used by entity_count.
	Kind  string `yaml:"kind,omitempty"`
	Count int    `yaml:"count,omitempty"`

	// Step is the 1-based step index. Required by published; optional
	// filter for violation and unresolved.
	Step int `yaml:"step,omitempty"`

	// Expect is the expected published flag.
	Expect *bool `yaml:"expect,omitempty"`

	// Code is the violation code (used by violation).
	Code string `yaml:"code,omitempty"`

	// Raw is the unresolved string (used by unresolved).
	Raw string `yaml:"raw,omitempty"`
}

// Assertion type constants.
const (
	AssertField       = "field"
	AssertEntity      = "entity"
	AssertEntityCount = "entity_count"
	AssertPublished   = "published"
	AssertViolation   = "violation"
	AssertUnresolved  = "unresolved"
)

// LoadScenario reads and parses a scenario YAML file. Input paths are
// resolved relative to the scenario's directory.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	s, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}
	resolvePaths(s, filepath.Dir(path))
	return s, nil
}

// ParseScenario parses scenario YAML without resolving input paths.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func resolvePaths(s *Scenario, base string) {
	join := func(paths []string) {
		for i, p := range paths {
			if !filepath.IsAbs(p) {
				paths[i] = filepath.Join(base, p)
			}
		}
	}
	for _, step := range s.Steps {
		if step.Run == nil {
			continue
		}
		join(step.Run.Rows)
		join(step.Run.Flat)
		join(step.Run.Overrides)
	}
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		set := 0
		if step.Run != nil {
			set++
			if len(step.Run.Rows) == 0 && len(step.Run.Flat) == 0 {
				return fmt.Errorf("step %d: run needs rows or flat files", i+1)
			}
		}
		if step.SetPriority != nil {
			set++
			if step.SetPriority.Source == "" {
				return fmt.Errorf("step %d: set_priority source is required", i+1)
			}
		}
		if step.Republish {
			set++
		}
		if set != 1 {
			return fmt.Errorf("step %d: exactly one of run, set_priority or republish is required", i+1)
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(a, len(s.Steps)); err != nil {
			return fmt.Errorf("assertion %d (%s): %w", i+1, a.Type, err)
		}
	}

	return nil
}

func validateAssertion(a Assertion, steps int) error {
	if a.Step < 0 || a.Step > steps {
		return fmt.Errorf("step %d out of range 1..%d", a.Step, steps)
	}
	needRef := func() error {
		if a.Entity == "" {
			return fmt.Errorf("entity is required")
		}
		_, err := ir.ParseRef(a.Entity)
		return err
	}

	switch a.Type {
	case AssertField:
		if a.Field == "" {
			return fmt.Errorf("field is required")
		}
		if a.Value == nil && !a.Absent {
			return fmt.Errorf("value or absent is required")
		}
		return needRef()
	case AssertEntity:
		if a.Parent != "" {
			if _, err := ir.ParseRef(a.Parent); err != nil {
				return err
			}
		}
		return needRef()
	case AssertEntityCount:
		if !ir.ValidKinds[ir.EntityKind(a.Kind)] {
			return fmt.Errorf("unknown kind %q", a.Kind)
		}
	case AssertPublished:
		if a.Step == 0 {
			return fmt.Errorf("step is required")
		}
		if a.Expect == nil {
			return fmt.Errorf("expect is required")
		}
	case AssertViolation:
		if a.Code == "" {
			return fmt.Errorf("code is required")
		}
		if a.Entity != "" {
			return needRef()
		}
	case AssertUnresolved:
		if a.Raw == "" {
			return fmt.Errorf("raw is required")
		}
	default:
		return fmt.Errorf("unknown assertion type")
	}
	return nil
}
