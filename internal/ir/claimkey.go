package ir

import (
	"fmt"
	"slices"
	"strings"
)

// RelationshipSchemas maps a relationship namespace to the value keys that
// make up its identity. A relationship claim's key is derived from those
// values so one source can hold several active claims under one field.
var RelationshipSchemas = map[string][]string{
	"credit": {"person", "role"},
}

// IsRelationship reports whether field is a relationship namespace.
func IsRelationship(field string) bool {
	_, ok := RelationshipSchemas[field]
	return ok
}

// RelationshipClaim builds the claim key and value for a relationship claim.
// identity must contain every key the namespace's schema names.
//
// Example: RelationshipClaim("credit", map[string]string{"person": "pat-lawlor", "role": "design"}, true)
// returns key "credit|person:pat-lawlor|role:design".
func RelationshipClaim(field string, identity map[string]string, exists bool) (string, IRObject, error) {
	schema, ok := RelationshipSchemas[field]
	if !ok {
		return "", nil, fmt.Errorf("unknown relationship namespace %q", field)
	}

	keys := slices.Clone(schema)
	slices.Sort(keys)

	var b strings.Builder
	b.WriteString(field)
	value := IRObject{"exists": IRBool(exists)}
	for _, k := range keys {
		v, ok := identity[k]
		if !ok || v == "" {
			return "", nil, fmt.Errorf("missing required key %q for %q", k, field)
		}
		b.WriteByte('|')
		b.WriteString(k)
		b.WriteByte(':')
		b.WriteString(v)
		value[k] = IRString(v)
	}
	return b.String(), value, nil
}
