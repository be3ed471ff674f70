package hierarchy

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/pinbase/internal/identity"
	"github.com/roach88/pinbase/internal/ir"
)

// Node is one derived entity.
type Node struct {
	Ref       ir.EntityRef  `json:"ref"`
	Parent    *ir.EntityRef `json:"parent,omitempty"`
	Group     ir.GroupKey   `json:"group"`
	Ordinal   int           `json:"ordinal"`
	IsDefault bool          `json:"is_default,omitempty"`
	Name      string        `json:"name"`
	// RowID is the raw row the node was derived from: the row itself for
	// tiers and models, the representative row for productions and titles.
	RowID     string `json:"row_id,omitempty"`
	LabelOnly bool   `json:"label_only,omitempty"`
	// FlatID is set on synthesized chains built for unlinked flat records.
	FlatID int64 `json:"flat_id,omitempty"`
}

// Entity returns the structural record stored in the ledger.
func (n Node) Entity() ir.Entity {
	return ir.Entity{
		Ref:       n.Ref,
		Parent:    n.Parent,
		Group:     n.Group,
		Ordinal:   n.Ordinal,
		IsDefault: n.IsDefault,
	}
}

// Hierarchy is the full derivation result. Every slice is sorted by ID.
type Hierarchy struct {
	Titles      []Node `json:"titles"`
	Productions []Node `json:"productions"`
	Tiers       []Node `json:"tiers"`
	Models      []Node `json:"models"`

	// Assignments maps each raw row ID to the most specific entity it
	// produced: its own model if it has one, otherwise its tier.
	Assignments map[string]ir.EntityRef `json:"assignments"`

	// FlatAssignments maps each flat record ID to the model that receives
	// its claims.
	FlatAssignments map[int64]ir.EntityRef `json:"flat_assignments"`

	NewBrands  []identity.Brand      `json:"new_brands,omitempty"`
	Unresolved []identity.Unresolved `json:"unresolved,omitempty"`
}

// Entities returns every node as a ledger entity, parents before children.
func (h *Hierarchy) Entities() []ir.Entity {
	out := make([]ir.Entity, 0, len(h.Titles)+len(h.Productions)+len(h.Tiers)+len(h.Models))
	for _, level := range [][]Node{h.Titles, h.Productions, h.Tiers, h.Models} {
		for _, n := range level {
			out = append(out, n.Entity())
		}
	}
	return out
}

// IDs returns the node IDs of one kind, for pruning stale ledger rows.
func (h *Hierarchy) IDs(kind ir.EntityKind) []string {
	var level []Node
	switch kind {
	case ir.KindTitle:
		level = h.Titles
	case ir.KindProduction:
		level = h.Productions
	case ir.KindTier:
		level = h.Tiers
	case ir.KindModel:
		level = h.Models
	}
	ids := make([]string, len(level))
	for i, n := range level {
		ids[i] = n.Ref.ID
	}
	return ids
}

// Digest returns a content digest of the structure, excluding the
// unresolved report.
func (h *Hierarchy) Digest() (string, error) {
	return ir.Digest(ir.DomainHierarchy, h.Entities())
}

// Render writes the tree as indented text, one node per line. Used for
// golden tests and the CLI's tree view.
func (h *Hierarchy) Render() string {
	children := make(map[ir.EntityRef][]Node)
	for _, level := range [][]Node{h.Productions, h.Tiers, h.Models} {
		for _, n := range level {
			if n.Parent != nil {
				children[*n.Parent] = append(children[*n.Parent], n)
			}
		}
	}

	for _, cs := range children {
		slices.SortFunc(cs, func(a, b Node) int {
			return cmp.Or(cmp.Compare(a.Ordinal, b.Ordinal), strings.Compare(a.Ref.ID, b.Ref.ID))
		})
	}

	var b strings.Builder
	var walk func(n Node, depth int)
	walk = func(n Node, depth int) {
		b.WriteString(strings.Repeat("  ", depth))
		fmt.Fprintf(&b, "%s %q #%d", n.Ref, n.Name, n.Ordinal)
		if n.IsDefault {
			b.WriteString(" default")
		}
		if n.LabelOnly {
			b.WriteString(" label-only")
		}
		b.WriteByte('\n')
		for _, c := range children[n.Ref] {
			walk(c, depth+1)
		}
	}
	for _, t := range h.Titles {
		walk(t, 0)
	}
	return b.String()
}
