package contract

import (
	"fmt"
	"strconv"

	"github.com/google/cel-go/cel"

	"github.com/roach88/pinbase/internal/ir"
)

// Rule is a CEL expression evaluated against every resolved entity. The
// rule fires, producing a Warning, when the expression is true.
//
// Variables: kind (string), id (string), fields and extra (maps of the
// entity's values), credits (list of {person, role} maps).
type Rule struct {
	Name    string `mapstructure:"name" yaml:"name" json:"name"`
	Expr    string `mapstructure:"expr" yaml:"expr" json:"expr"`
	Field   string `mapstructure:"field" yaml:"field,omitempty" json:"field,omitempty"`
	Message string `mapstructure:"message" yaml:"message" json:"message"`
}

// DefaultRules are the warnings checked when no rules are configured.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:    "production-manufacturer",
			Expr:    `kind == "production" && !has(fields.manufacturer)`,
			Field:   "manufacturer",
			Message: "production has no manufacturer",
		},
		{
			Name:    "model-year",
			Expr:    `kind == "model" && !has(fields.year)`,
			Field:   "year",
			Message: "model has no year",
		},
		{
			Name:    "model-year-range",
			Expr:    `kind == "model" && has(fields.year) && (fields.year < 1930 || fields.year > 2100)`,
			Field:   "year",
			Message: "model year is implausible",
		},
		{
			Name:    "title-name",
			Expr:    `kind == "title" && !has(fields.name)`,
			Field:   "name",
			Message: "title has no name",
		},
	}
}

type compiledRule struct {
	Rule
	prg cel.Program
}

func newEnv() (*cel.Env, error) {
	env, err := cel.NewEnv(
		cel.Variable("kind", cel.StringType),
		cel.Variable("id", cel.StringType),
		cel.Variable("fields", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("extra", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("credits", cel.ListType(cel.MapType(cel.StringType, cel.StringType))),
	)
	if err != nil {
		return nil, fmt.Errorf("create CEL environment: %w", err)
	}
	return env, nil
}

func compileRules(env *cel.Env, rules []Rule) ([]compiledRule, error) {
	out := make([]compiledRule, 0, len(rules))
	seen := make(map[string]bool, len(rules))
	for _, r := range rules {
		if r.Name == "" {
			return nil, fmt.Errorf("rule %q: missing name", r.Expr)
		}
		if seen[r.Name] {
			return nil, fmt.Errorf("rule %s: duplicate name", r.Name)
		}
		seen[r.Name] = true

		ast, issues := env.Compile(r.Expr)
		if issues != nil && issues.Err() != nil {
			return nil, fmt.Errorf("rule %s: compile: %w", r.Name, issues.Err())
		}
		if !ast.OutputType().IsExactType(cel.BoolType) {
			return nil, fmt.Errorf("rule %s: expression must be boolean, got %s", r.Name, ast.OutputType())
		}
		prg, err := env.Program(ast, cel.CostLimit(10000))
		if err != nil {
			return nil, fmt.Errorf("rule %s: program: %w", r.Name, err)
		}
		out = append(out, compiledRule{Rule: r, prg: prg})
	}
	return out, nil
}

// activation converts a resolved entity into CEL input.
func activation(e ir.ResolvedEntity) map[string]any {
	credits := make([]map[string]string, len(e.Credits))
	for i, c := range e.Credits {
		credits[i] = map[string]string{"person": c.Person, "role": c.Role}
	}
	return map[string]any{
		"kind":    string(e.Ref.Kind),
		"id":      e.Ref.ID,
		"fields":  native(e.Fields).(map[string]any),
		"extra":   native(e.Extra).(map[string]any),
		"credits": credits,
	}
}

// native maps an IRValue onto plain Go values. Decimals become float64
// here only; comparisons in rules do not need exact text.
func native(v ir.IRValue) any {
	switch val := v.(type) {
	case ir.IRString:
		return string(val)
	case ir.IRInt:
		return int64(val)
	case ir.IRDecimal:
		f, _ := strconv.ParseFloat(string(val), 64)
		return f
	case ir.IRBool:
		return bool(val)
	case ir.IRArray:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = native(elem)
		}
		return out
	case ir.IRObject:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			out[k] = native(elem)
		}
		return out
	}
	return nil
}
