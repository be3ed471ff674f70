package harness

import (
	"fmt"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// line renders one step outcome for failure messages.
func (s StepOutcome) line() string {
	var b strings.Builder
	b.WriteString(s.summary())
	for _, u := range s.Unresolved {
		fmt.Fprintf(&b, "\n    unresolved %s %q", u.Kind, u.Raw)
	}
	for _, sk := range s.Skipped {
		fmt.Fprintf(&b, "\n    skipped %s.%s", sk.Entity, sk.Field)
	}
	return b.String()
}

// summary renders the outcome and any violations.
func (s StepOutcome) summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%d] %s %s", s.Step, s.Action, s.Outcome)
	if s.Snapshot != "" {
		fmt.Fprintf(&b, " %s", s.Snapshot)
	}
	if s.Detail != "" {
		fmt.Fprintf(&b, " %s", s.Detail)
	}
	for _, v := range s.Violations {
		fmt.Fprintf(&b, "\n    %s %s", v.Code, v.Entity)
	}
	return b.String()
}

// Golden renders the deterministic part of a result: the step outcomes,
// then the hierarchy of the last run step.
func Golden(name string, r *Result) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "scenario %s\n", name)
	for _, s := range r.Steps {
		b.WriteString(s.summary())
		b.WriteByte('\n')
	}
	if r.Hierarchy != "" {
		b.WriteString("hierarchy\n")
		b.WriteString(r.Hierarchy)
	}
	return []byte(b.String())
}

// RunWithGolden executes a scenario and compares its golden rendering
// against testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails. Test failure (via goldie)
// occurs if the output doesn't match the golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(t.Context(), scenario)
	if err != nil {
		return nil, err
	}
	AssertGolden(t, scenario.Name, result)
	return result, nil
}

// AssertGolden compares an existing result against its golden file
// without re-running the scenario.
func AssertGolden(t *testing.T, name string, result *Result) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, Golden(name, result))
}
