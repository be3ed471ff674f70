package harness

import (
	"github.com/roach88/pinbase/internal/contract"
	"github.com/roach88/pinbase/internal/identity"
	"github.com/roach88/pinbase/internal/pipeline"
)

// Step outcomes.
const (
	OutcomePublished = "published"
	OutcomeUnchanged = "unchanged"
	OutcomeRejected  = "rejected"
	OutcomeApplied   = "applied"
)

// StepOutcome records what one step did.
type StepOutcome struct {
	Step    int    `json:"step"` // 1-based
	Action  string `json:"action"`
	Outcome string `json:"outcome"`
	// Snapshot is the ID of the snapshot the step published, if any.
	Snapshot   string                  `json:"snapshot,omitempty"`
	Detail     string                  `json:"detail,omitempty"`
	Violations []contract.Violation    `json:"violations,omitempty"`
	Unresolved []identity.Unresolved   `json:"unresolved,omitempty"`
	Skipped    []pipeline.SkippedClaim `json:"skipped,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every assertion held.
	Pass bool `json:"pass"`

	// Steps holds one outcome per scenario step, in order.
	Steps []StepOutcome `json:"steps"`

	// Hierarchy is the rendered hierarchy of the last run step.
	Hierarchy string `json:"hierarchy,omitempty"`

	// Catalog is the snapshot current after the last step, if any.
	Catalog *pipeline.Published `json:"-"`

	// Errors contains assertion failure messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Steps:  []StepOutcome{},
		Errors: []string{},
	}
}

// AddError adds an assertion failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
