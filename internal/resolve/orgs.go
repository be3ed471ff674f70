package resolve

import (
	"cmp"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/roach88/pinbase/internal/ir"
)

// orgKey identifies one organization reference as a source claimed it.
type orgKey struct {
	scheme ir.OrgScheme
	value  string // canonical JSON of the claimed value
}

func newOrgKey(c ir.RankedClaim) (orgKey, error) {
	raw, err := ir.MarshalIRValue(c.Value)
	if err != nil {
		return orgKey{}, err
	}
	return orgKey{scheme: c.OrgScheme, value: string(raw)}, nil
}

func (k orgKey) compare(o orgKey) int {
	return cmp.Or(strings.Compare(string(k.scheme), string(o.scheme)), strings.Compare(k.value, o.value))
}

type orgResult struct {
	brand string
	err   error
}

// orgTable holds the brand every organization reference of a pass resolves
// to. It is filled before entities fan out to workers and only read after.
type orgTable map[orgKey]orgResult

// lookup returns the brand for c. A nil table resolves inline.
func (t orgTable) lookup(r *Resolver, c ir.RankedClaim) (string, error) {
	if t == nil {
		return r.resolveOrg(c.Value, c.OrgScheme)
	}
	k, err := newOrgKey(c)
	if err != nil {
		return "", err
	}
	res, ok := t[k]
	if !ok {
		return "", fmt.Errorf("organization reference %s was not resolved", k.value)
	}
	return res.brand, res.err
}

// resolveOrgRefs resolves every winning organization reference of entities
// one at a time, in sorted order. Brands created here therefore take the
// same names whatever the worker count.
func (r *Resolver) resolveOrgRefs(entities []ir.Entity, claims map[ir.EntityRef][]ir.RankedClaim) orgTable {
	refs := make(map[orgKey]ir.RankedClaim)
	for _, e := range entities {
		schema := r.schemas[e.Ref.Kind]
		for _, c := range winners(claims[e.Ref]) {
			if ir.IsRelationship(c.Field) || ir.IsEmpty(c.Value) || schema[c.Field] != TypeOrg {
				continue
			}
			k, err := newOrgKey(c)
			if err != nil {
				continue
			}
			refs[k] = c
		}
	}

	table := make(orgTable, len(refs))
	for _, k := range slices.SortedFunc(maps.Keys(refs), orgKey.compare) {
		brand, err := r.resolveOrg(refs[k].Value, k.scheme)
		table[k] = orgResult{brand: brand, err: err}
	}
	return table
}
