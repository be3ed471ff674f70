package pipeline

import (
	"sync/atomic"

	"github.com/roach88/pinbase/internal/ir"
	"github.com/roach88/pinbase/internal/store"
)

// Published is an immutable, indexed snapshot.
type Published struct {
	store.Snapshot
	index map[ir.EntityRef]int
}

func newPublished(s store.Snapshot) *Published {
	p := &Published{Snapshot: s, index: make(map[ir.EntityRef]int, len(s.Entities))}
	for i, e := range s.Entities {
		p.index[e.Ref] = i
	}
	return p
}

// Lookup returns one entity from the snapshot.
func (p *Published) Lookup(ref ir.EntityRef) (ir.ResolvedEntity, bool) {
	i, ok := p.index[ref]
	if !ok {
		return ir.ResolvedEntity{}, false
	}
	return p.Entities[i], true
}

// Catalog serves the current published snapshot. Readers never observe a
// partially published catalog: a new snapshot replaces the old one in a
// single atomic swap.
type Catalog struct {
	current atomic.Pointer[Published]
}

// Current returns the published snapshot, or nil before the first publish.
func (c *Catalog) Current() *Published {
	return c.current.Load()
}

func (c *Catalog) swap(s store.Snapshot) *Published {
	p := newPublished(s)
	c.current.Store(p)
	return p
}
