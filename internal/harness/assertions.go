package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/pinbase/internal/ir"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string        // Assertion type for categorization
	Expected string        // Human-readable expected outcome
	Actual   string        // Human-readable actual outcome
	Steps    []StepOutcome // Step outcomes for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Steps) > 0 {
		fmt.Fprintf(&buf, "\nSteps:\n")
		for _, s := range e.Steps {
			fmt.Fprintf(&buf, "  %s\n", s.line())
		}
	}

	return buf.String()
}

// EvaluateAssertions checks every assertion and returns one message per
// failure.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var failures []string
	for i, a := range assertions {
		if err := evaluate(result, a); err != nil {
			failures = append(failures, fmt.Sprintf("assertion %d: %v", i+1, err))
		}
	}
	return failures
}

func evaluate(result *Result, a Assertion) error {
	switch a.Type {
	case AssertField:
		return assertField(result, a)
	case AssertEntity:
		return assertEntity(result, a)
	case AssertEntityCount:
		return assertEntityCount(result, a)
	case AssertPublished:
		return assertPublished(result, a)
	case AssertViolation:
		return assertViolation(result, a)
	case AssertUnresolved:
		return assertUnresolved(result, a)
	}
	return fmt.Errorf("unknown assertion type %q", a.Type)
}

// lookup finds an entity in the final catalog.
func lookup(result *Result, ref string) (ir.ResolvedEntity, bool, error) {
	r, err := ir.ParseRef(ref)
	if err != nil {
		return ir.ResolvedEntity{}, false, err
	}
	if result.Catalog == nil {
		return ir.ResolvedEntity{}, false, nil
	}
	e, ok := result.Catalog.Lookup(r)
	return e, ok, nil
}

func assertField(result *Result, a Assertion) error {
	e, ok, err := lookup(result, a.Entity)
	if err != nil {
		return err
	}
	if !ok {
		return &AssertionError{
			Type:     AssertField,
			Expected: fmt.Sprintf("%s in the published catalog", a.Entity),
			Actual:   "entity not found",
			Steps:    result.Steps,
		}
	}

	actual, present := e.Fields[a.Field]
	if a.Absent {
		if present {
			return &AssertionError{
				Type:     AssertField,
				Expected: fmt.Sprintf("%s.%s to be missing", a.Entity, a.Field),
				Actual:   fmt.Sprintf("%s = %s", a.Field, describe(actual)),
			}
		}
		return nil
	}

	want, err := ir.FromAny(a.Value)
	if err != nil {
		return fmt.Errorf("expected value for %s: %w", a.Field, err)
	}
	if !present {
		return &AssertionError{
			Type:     AssertField,
			Expected: fmt.Sprintf("%s.%s = %s", a.Entity, a.Field, describe(want)),
			Actual:   "field not present",
		}
	}
	if !ir.Equal(want, actual) {
		return &AssertionError{
			Type:     AssertField,
			Expected: fmt.Sprintf("%s.%s = %s", a.Entity, a.Field, describe(want)),
			Actual:   fmt.Sprintf("%s = %s", a.Field, describe(actual)),
		}
	}
	return nil
}

func assertEntity(result *Result, a Assertion) error {
	e, ok, err := lookup(result, a.Entity)
	if err != nil {
		return err
	}
	if a.Absent {
		if ok {
			return &AssertionError{
				Type:     AssertEntity,
				Expected: fmt.Sprintf("%s to be absent", a.Entity),
				Actual:   "entity present",
			}
		}
		return nil
	}
	if !ok {
		return &AssertionError{
			Type:     AssertEntity,
			Expected: fmt.Sprintf("%s in the published catalog", a.Entity),
			Actual:   "entity not found",
			Steps:    result.Steps,
		}
	}

	if a.Parent != "" {
		actual := "(none)"
		if e.Parent != nil {
			actual = e.Parent.String()
		}
		if actual != a.Parent {
			return &AssertionError{
				Type:     AssertEntity,
				Expected: fmt.Sprintf("%s parent = %s", a.Entity, a.Parent),
				Actual:   fmt.Sprintf("parent = %s", actual),
			}
		}
	}
	if a.Default != nil && e.IsDefault != *a.Default {
		return &AssertionError{
			Type:     AssertEntity,
			Expected: fmt.Sprintf("%s default = %t", a.Entity, *a.Default),
			Actual:   fmt.Sprintf("default = %t", e.IsDefault),
		}
	}
	return nil
}

func assertEntityCount(result *Result, a Assertion) error {
	count := 0
	if result.Catalog != nil {
		for _, e := range result.Catalog.Entities {
			if e.Ref.Kind == ir.EntityKind(a.Kind) {
				count++
			}
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertEntityCount,
			Expected: fmt.Sprintf("%d %s entities", a.Count, a.Kind),
			Actual:   fmt.Sprintf("%d entities", count),
		}
	}
	return nil
}

func assertPublished(result *Result, a Assertion) error {
	s := result.Steps[a.Step-1]
	published := s.Outcome == OutcomePublished
	if published != *a.Expect {
		return &AssertionError{
			Type:     AssertPublished,
			Expected: fmt.Sprintf("step %d published = %t", a.Step, *a.Expect),
			Actual:   fmt.Sprintf("outcome %s", s.Outcome),
			Steps:    result.Steps,
		}
	}
	return nil
}

// stepsFor returns the step a is scoped to, or every step.
func stepsFor(result *Result, a Assertion) []StepOutcome {
	if a.Step > 0 {
		return result.Steps[a.Step-1 : a.Step]
	}
	return result.Steps
}

func assertViolation(result *Result, a Assertion) error {
	for _, s := range stepsFor(result, a) {
		for _, v := range s.Violations {
			if string(v.Code) != a.Code {
				continue
			}
			if a.Entity == "" || v.Entity.String() == a.Entity {
				return nil
			}
		}
	}
	want := a.Code
	if a.Entity != "" {
		want += " on " + a.Entity
	}
	return &AssertionError{
		Type:     AssertViolation,
		Expected: fmt.Sprintf("violation %s", want),
		Actual:   "not reported",
		Steps:    result.Steps,
	}
}

func assertUnresolved(result *Result, a Assertion) error {
	for _, s := range stepsFor(result, a) {
		for _, u := range s.Unresolved {
			if u.Raw == a.Raw {
				return nil
			}
		}
	}
	return &AssertionError{
		Type:     AssertUnresolved,
		Expected: fmt.Sprintf("%q reported as unresolved", a.Raw),
		Actual:   "not reported",
		Steps:    result.Steps,
	}
}

func describe(v ir.IRValue) string {
	data, err := ir.MarshalIRValue(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
