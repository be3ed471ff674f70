package contract

import (
	"cmp"
	"slices"
	"strings"

	"github.com/roach88/pinbase/internal/ir"
)

// ViolationCode categorizes blocking defects.
type ViolationCode string

const (
	// ViolationDuplicateID indicates one canonical or cross-reference ID on
	// two entities of the same kind.
	ViolationDuplicateID ViolationCode = "DUPLICATE_ID"

	// ViolationOrphanTier indicates a tier whose production is missing or
	// whose grouping key differs from its production's.
	ViolationOrphanTier ViolationCode = "ORPHAN_TIER"

	// ViolationOrphanProduction indicates a production whose title is missing.
	ViolationOrphanProduction ViolationCode = "ORPHAN_PRODUCTION"

	// ViolationOrphanModel indicates a model whose tier is missing.
	ViolationOrphanModel ViolationCode = "ORPHAN_MODEL"

	// ViolationDefaultModel indicates a tier without exactly one default model.
	ViolationDefaultModel ViolationCode = "DEFAULT_MODEL"
)

// Violation is one blocking defect.
type Violation struct {
	Code    ViolationCode `json:"code"`
	Entity  ir.EntityRef  `json:"entity"`
	Field   string        `json:"field,omitempty"`
	Values  []string      `json:"values,omitempty"` // the conflicting values or entities
	Message string        `json:"message"`
}

// Warning is one non-blocking rule hit.
type Warning struct {
	Rule    string       `json:"rule"`
	Entity  ir.EntityRef `json:"entity"`
	Field   string       `json:"field,omitempty"`
	Message string       `json:"message"`
}

// Report is the outcome of a validation pass.
type Report struct {
	Violations []Violation `json:"violations"`
	Warnings   []Warning   `json:"warnings"`
}

// OK reports whether the catalog may be published.
func (r *Report) OK() bool {
	return len(r.Violations) == 0
}

func (r *Report) sort() {
	slices.SortFunc(r.Violations, func(a, b Violation) int {
		return cmp.Or(
			strings.Compare(string(a.Code), string(b.Code)),
			strings.Compare(a.Entity.String(), b.Entity.String()),
			strings.Compare(a.Field, b.Field),
		)
	})
	slices.SortFunc(r.Warnings, func(a, b Warning) int {
		return cmp.Or(
			strings.Compare(a.Entity.String(), b.Entity.String()),
			strings.Compare(a.Rule, b.Rule),
		)
	})
}
