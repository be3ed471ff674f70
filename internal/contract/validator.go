package contract

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/google/cel-go/cel"

	"github.com/roach88/pinbase/internal/ir"
)

// crossReferences lists, per kind, the fields that must be unique within
// that kind.
var crossReferences = map[ir.EntityKind][]string{
	ir.KindModel:           {"ipdb_id", "opdb_id"},
	ir.KindManufacturer:    {"opdb_manufacturer_id"},
	ir.KindCorporateEntity: {"ipdb_manufacturer_id"},
}

// Validator checks resolved catalogs.
type Validator struct {
	env    *cel.Env
	rules  []compiledRule
	logger *slog.Logger
}

// NewValidator compiles rules. A nil rules slice uses DefaultRules; an empty
// non-nil slice disables warnings.
func NewValidator(rules []Rule, logger *slog.Logger) (*Validator, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if rules == nil {
		rules = DefaultRules()
	}
	env, err := newEnv()
	if err != nil {
		return nil, err
	}
	compiled, err := compileRules(env, rules)
	if err != nil {
		return nil, err
	}
	return &Validator{env: env, rules: compiled, logger: logger}, nil
}

// Validate checks every structural invariant and evaluates the warning
// rules. The returned error is reserved for rule evaluation failures; a
// catalog with violations still returns a nil error.
func (v *Validator) Validate(entities []ir.ResolvedEntity) (*Report, error) {
	r := &Report{Violations: []Violation{}, Warnings: []Warning{}}

	index := make(map[ir.EntityRef]ir.ResolvedEntity, len(entities))
	for _, e := range entities {
		if _, dup := index[e.Ref]; dup {
			r.Violations = append(r.Violations, Violation{
				Code:    ViolationDuplicateID,
				Entity:  e.Ref,
				Message: fmt.Sprintf("%s appears more than once", e.Ref),
			})
			continue
		}
		index[e.Ref] = e
	}

	checkCrossReferences(r, entities)
	checkParents(r, entities, index)
	checkDefaults(r, entities)

	for _, e := range entities {
		if err := v.evaluate(r, e); err != nil {
			return nil, err
		}
	}

	r.sort()
	if !r.OK() {
		v.logger.Warn("catalog failed validation", "violations", len(r.Violations))
	}
	return r, nil
}

func (v *Validator) evaluate(r *Report, e ir.ResolvedEntity) error {
	if len(v.rules) == 0 {
		return nil
	}
	input := activation(e)
	for _, rule := range v.rules {
		out, _, err := rule.prg.Eval(input)
		if err != nil {
			return fmt.Errorf("rule %s on %s: %w", rule.Name, e.Ref, err)
		}
		fired, ok := out.Value().(bool)
		if !ok {
			return fmt.Errorf("rule %s on %s: non-boolean result %v", rule.Name, e.Ref, out.Value())
		}
		if fired {
			r.Warnings = append(r.Warnings, Warning{Rule: rule.Name, Entity: e.Ref, Field: rule.Field, Message: rule.Message})
		}
	}
	return nil
}

func checkCrossReferences(r *Report, entities []ir.ResolvedEntity) {
	type slot struct {
		kind  ir.EntityKind
		field string
		value string
	}
	owners := make(map[slot][]string)
	var order []slot
	for _, e := range entities {
		for _, field := range crossReferences[e.Ref.Kind] {
			val, ok := e.Fields[field]
			if !ok {
				continue
			}
			text, ok := ir.Text(val)
			if !ok || text == "" {
				continue
			}
			s := slot{kind: e.Ref.Kind, field: field, value: text}
			if _, seen := owners[s]; !seen {
				order = append(order, s)
			}
			if !slices.Contains(owners[s], e.Ref.ID) {
				owners[s] = append(owners[s], e.Ref.ID)
			}
		}
	}
	for _, s := range order {
		ids := owners[s]
		if len(ids) < 2 {
			continue
		}
		slices.Sort(ids)
		for _, id := range ids {
			r.Violations = append(r.Violations, Violation{
				Code:    ViolationDuplicateID,
				Entity:  ir.Ref(s.kind, id),
				Field:   s.field,
				Values:  ids,
				Message: fmt.Sprintf("%s %s is shared by %d %s entities", s.field, s.value, len(ids), s.kind),
			})
		}
	}
}

// parentKinds maps each hierarchy kind to the kind its parent must have.
var parentKinds = map[ir.EntityKind]struct {
	parent ir.EntityKind
	code   ViolationCode
}{
	ir.KindProduction: {ir.KindTitle, ViolationOrphanProduction},
	ir.KindTier:       {ir.KindProduction, ViolationOrphanTier},
	ir.KindModel:      {ir.KindTier, ViolationOrphanModel},
}

func checkParents(r *Report, entities []ir.ResolvedEntity, index map[ir.EntityRef]ir.ResolvedEntity) {
	for _, e := range entities {
		want, ok := parentKinds[e.Ref.Kind]
		if !ok {
			continue
		}
		if e.Parent == nil {
			r.Violations = append(r.Violations, Violation{
				Code: want.code, Entity: e.Ref,
				Message: fmt.Sprintf("%s has no parent", e.Ref),
			})
			continue
		}
		parent, found := index[*e.Parent]
		if !found || e.Parent.Kind != want.parent {
			r.Violations = append(r.Violations, Violation{
				Code: want.code, Entity: e.Ref, Values: []string{e.Parent.String()},
				Message: fmt.Sprintf("parent %s is missing or not a %s", e.Parent, want.parent),
			})
			continue
		}
		if e.Ref.Kind == ir.KindTier && parent.Group != e.Group {
			r.Violations = append(r.Violations, Violation{
				Code: want.code, Entity: e.Ref, Field: "group",
				Values:  []string{groupString(e.Group), groupString(parent.Group)},
				Message: fmt.Sprintf("grouping key differs from production %s", parent.Ref.ID),
			})
		}
	}
}

func checkDefaults(r *Report, entities []ir.ResolvedEntity) {
	defaults := make(map[ir.EntityRef][]string)
	for _, e := range entities {
		if e.Ref.Kind == ir.KindModel && e.IsDefault && e.Parent != nil {
			defaults[*e.Parent] = append(defaults[*e.Parent], e.Ref.ID)
		}
	}
	for _, e := range entities {
		if e.Ref.Kind != ir.KindTier {
			continue
		}
		ids := defaults[e.Ref]
		if len(ids) == 1 {
			continue
		}
		slices.Sort(ids)
		r.Violations = append(r.Violations, Violation{
			Code: ViolationDefaultModel, Entity: e.Ref, Values: ids,
			Message: fmt.Sprintf("tier has %d default models, want 1", len(ids)),
		})
	}
}

func groupString(g ir.GroupKey) string {
	if g.Pinned != "" {
		return g.Group + "/" + g.Pinned
	}
	return g.Group + "/" + g.Brand + "/" + g.Generation
}
