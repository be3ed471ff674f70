package hierarchy

import (
	"cmp"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/roach88/pinbase/internal/identity"
	"github.com/roach88/pinbase/internal/ingest"
	"github.com/roach88/pinbase/internal/ir"
)

// Input is everything a derivation reads.
type Input struct {
	Rows []ir.MachineRow
	Flat []ir.FlatRecord
	// Pins maps a non-alias row ID to a curated production name. A pinned
	// row joins the named production regardless of brand and generation.
	Pins map[string]string
}

// Deriver builds a Hierarchy from raw rows. Organization references are
// resolved against the resolver's directory; brands it cannot match are
// created there so later stages see them.
type Deriver struct {
	resolver *identity.Resolver
	logger   *slog.Logger
}

// NewDeriver returns a deriver. A nil logger uses slog.Default().
func NewDeriver(resolver *identity.Resolver, logger *slog.Logger) *Deriver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Deriver{resolver: resolver, logger: logger}
}

// derivation is the mutable state of one Derive call.
type derivation struct {
	h          *Hierarchy
	newBrands  map[string]identity.Brand
	unresolved map[string]identity.Unresolved
}

type candidate struct {
	key     ir.GroupKey
	id      string
	rows    []ir.MachineRow
	rep     ir.MachineRow
	ordinal int
}

// Derive groups rows into titles, productions, tiers and models.
func (d *Deriver) Derive(in Input) (*Hierarchy, error) {
	rows := slices.Clone(in.Rows)
	slices.SortStableFunc(rows, func(a, b ir.MachineRow) int { return strings.Compare(a.ID, b.ID) })

	byID := make(map[string]ir.MachineRow, len(rows))
	var duplicates []string
	for _, r := range rows {
		if r.ID == "" {
			return nil, &DerivationError{Code: ErrCodeInvalidRow, Message: "row has no id"}
		}
		if _, ok := byID[r.ID]; ok {
			duplicates = append(duplicates, r.ID)
			continue
		}
		byID[r.ID] = r
	}
	if len(duplicates) > 0 {
		return nil, &DerivationError{Code: ErrCodeDuplicateRow, Message: "row ids must be unique", Rows: slices.Compact(duplicates)}
	}

	var badPins []string
	for id := range in.Pins {
		if r, ok := byID[id]; !ok || r.IsAlias {
			badPins = append(badPins, id)
		}
	}
	if len(badPins) > 0 {
		slices.Sort(badPins)
		return nil, &DerivationError{Code: ErrCodeUnknownPin, Message: "pins must name non-alias rows", Rows: badPins}
	}

	var machines []ir.MachineRow
	aliases := make(map[string][]ir.MachineRow)
	var orphans []string
	for _, r := range rows {
		if !r.IsAlias {
			machines = append(machines, r)
			continue
		}
		parentID := aliasParent(r)
		parent, ok := byID[parentID]
		if parentID == r.ID || !ok || parent.IsAlias {
			orphans = append(orphans, r.ID)
			continue
		}
		aliases[parentID] = append(aliases[parentID], r)
	}
	if len(orphans) > 0 {
		return nil, &DerivationError{Code: ErrCodeOrphanAlias, Message: "alias rows reference no known machine row", Rows: orphans}
	}

	st := &derivation{
		h: &Hierarchy{
			Assignments:     make(map[string]ir.EntityRef),
			FlatAssignments: make(map[int64]ir.EntityRef),
		},
		newBrands:  make(map[string]identity.Brand),
		unresolved: make(map[string]identity.Unresolved),
	}

	byKey := make(map[ir.GroupKey]*candidate)
	for _, r := range machines {
		key := ir.GroupKey{Group: groupOf(r)}
		if name, ok := in.Pins[r.ID]; ok {
			key.Pinned = strings.TrimSpace(name)
		} else {
			brand, err := d.brandFor(r, st)
			if err != nil {
				return nil, fmt.Errorf("derive %s: %w", r.ID, err)
			}
			key.Brand = brand
			key.Generation = ingest.Generation(r.Type)
		}
		c, ok := byKey[key]
		if !ok {
			c = &candidate{key: key}
			byKey[key] = c
		}
		c.rows = append(c.rows, r)
	}

	candidates := make([]*candidate, 0, len(byKey))
	for _, c := range byKey {
		c.id = productionID(c.key)
		c.rep = representative(c.rows)
		candidates = append(candidates, c)
	}
	slices.SortFunc(candidates, func(a, b *candidate) int {
		return cmp.Or(strings.Compare(a.id, b.id), strings.Compare(a.key.Pinned, b.key.Pinned))
	})
	used := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		base := c.id
		for n := 2; used[c.id]; n++ {
			c.id = fmt.Sprintf("%s-%d", base, n)
		}
		used[c.id] = true
	}

	st.buildTitles(candidates)
	for _, c := range candidates {
		st.addProduction(c, aliases)
	}
	d.attachFlat(in.Flat, byID, aliases, st)

	return st.finish(), nil
}

// brandFor resolves the organization a row groups under: brand external ID
// first, then the identity cascade on the name, then a newly created brand.
func (d *Deriver) brandFor(r ir.MachineRow, st *derivation) (string, error) {
	dir := d.resolver.Directory()
	if r.ManufacturerID != 0 {
		if b, ok := dir.BrandByExternalID(r.ManufacturerID); ok {
			return b.ID, nil
		}
	}

	raw := strings.TrimSpace(r.Manufacturer)
	if raw == "" {
		if r.ManufacturerID == 0 {
			return "", nil
		}
		raw = fmt.Sprintf("Manufacturer %d", r.ManufacturerID)
	}

	var brand identity.Brand
	if m, ok := d.resolver.ResolveOrganization(raw); ok {
		brand, _ = dir.Brand(m.BrandID)
	} else {
		org := identity.ParseOrganization(raw)
		name := cmp.Or(org.TradeName, org.CompanyName, raw)
		b, created, err := dir.EnsureBrand(name)
		if err != nil {
			return "", err
		}
		brand = b
		if created {
			st.newBrands[b.ID] = b
			d.logger.Info("created brand", "brand", b.ID, "raw", raw, "row", r.ID)
		}
		st.addUnresolved(identity.Unresolved{Kind: "organization", Raw: raw, Context: r.ID})
	}

	if r.ManufacturerID != 0 && brand.ExternalID == 0 {
		if err := dir.AddBrand(identity.Brand{ID: brand.ID, ExternalID: r.ManufacturerID}); err != nil {
			return "", err
		}
		if _, ok := st.newBrands[brand.ID]; ok {
			st.newBrands[brand.ID], _ = dir.Brand(brand.ID)
		}
	}
	return brand.ID, nil
}

// buildTitles creates one title per group and orders its productions by
// their representative rows' dates.
func (st *derivation) buildTitles(candidates []*candidate) {
	byGroup := make(map[string][]*candidate)
	for _, c := range candidates {
		byGroup[c.key.Group] = append(byGroup[c.key.Group], c)
	}
	for group, cs := range byGroup {
		slices.SortFunc(cs, func(a, b *candidate) int {
			da, oka := dateKey(a.rep)
			db, okb := dateKey(b.rep)
			if oka != okb {
				if oka {
					return -1
				}
				return 1
			}
			return cmp.Or(cmp.Compare(da, db), strings.Compare(a.id, b.id))
		})
		first := cs[0]
		name := first.rep.Name
		for _, c := range cs {
			if i := slices.IndexFunc(c.rows, func(r ir.MachineRow) bool { return r.GroupName != "" }); i >= 0 {
				name = c.rows[i].GroupName
				break
			}
		}
		st.h.Titles = append(st.h.Titles, Node{
			Ref:   ir.Ref(ir.KindTitle, group),
			Group: ir.GroupKey{Group: group},
			Name:  name,
			RowID: first.rep.ID,
		})
		for i, c := range cs {
			c.ordinal = i
		}
	}
}

// addProduction emits the production, one tier per row and the models
// under each tier.
func (st *derivation) addProduction(c *candidate, aliases map[string][]ir.MachineRow) {
	titleRef := ir.Ref(ir.KindTitle, c.key.Group)
	prodRef := ir.Ref(ir.KindProduction, c.id)
	st.h.Productions = append(st.h.Productions, Node{
		Ref:     prodRef,
		Parent:  &titleRef,
		Group:   c.key,
		Ordinal: c.ordinal,
		Name:    cmp.Or(c.key.Pinned, c.rep.Name),
		RowID:   c.rep.ID,
	})

	tiers := make([]ir.MachineRow, 0, len(c.rows))
	tiers = append(tiers, c.rep)
	for _, r := range c.rows {
		if r.ID != c.rep.ID {
			tiers = append(tiers, r)
		}
	}

	for i, r := range tiers {
		tierRef := ir.Ref(ir.KindTier, r.ID)
		children := aliases[r.ID]
		st.h.Tiers = append(st.h.Tiers, Node{
			Ref:       tierRef,
			Parent:    &prodRef,
			Group:     c.key,
			Ordinal:   i,
			IsDefault: i == 0,
			Name:      r.Name,
			RowID:     r.ID,
			LabelOnly: len(children) > 0 && identity.HasCombinator(r.Name),
		})

		if len(children) == 0 {
			modelRef := ir.Ref(ir.KindModel, r.ID)
			st.h.Models = append(st.h.Models, Node{
				Ref:       modelRef,
				Parent:    &tierRef,
				Group:     c.key,
				IsDefault: true,
				Name:      r.Name,
				RowID:     r.ID,
			})
			st.h.Assignments[r.ID] = modelRef
			continue
		}

		st.h.Assignments[r.ID] = tierRef
		for j, a := range children {
			modelRef := ir.Ref(ir.KindModel, a.ID)
			st.h.Models = append(st.h.Models, Node{
				Ref:       modelRef,
				Parent:    &tierRef,
				Group:     c.key,
				Ordinal:   j,
				IsDefault: j == 0,
				Name:      a.Name,
				RowID:     a.ID,
			})
			st.h.Assignments[a.ID] = modelRef
		}
	}
}

// attachFlat links flat records to models by cross-reference ID. Records
// with no link, or whose model is already claimed by an earlier record, get
// a synthesized single-row chain.
func (d *Deriver) attachFlat(flat []ir.FlatRecord, byID map[string]ir.MachineRow, aliases map[string][]ir.MachineRow, st *derivation) {
	links := make(map[int64]ir.EntityRef)
	ids := make([]string, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		r := byID[id]
		if r.IPDBID == 0 {
			continue
		}
		if _, ok := links[r.IPDBID]; ok {
			d.logger.Warn("cross-reference id on several rows", "ipdb_id", r.IPDBID, "row", r.ID)
			continue
		}
		modelID := r.ID
		if !r.IsAlias && len(aliases[r.ID]) > 0 {
			modelID = aliases[r.ID][0].ID
		}
		links[r.IPDBID] = ir.Ref(ir.KindModel, modelID)
	}

	records := slices.Clone(flat)
	slices.SortStableFunc(records, func(a, b ir.FlatRecord) int { return cmp.Compare(a.ID, b.ID) })
	taken := make(map[ir.EntityRef]bool)
	for _, rec := range records {
		if _, seen := st.h.FlatAssignments[rec.ID]; seen {
			d.logger.Warn("duplicate flat record", "id", rec.ID)
			continue
		}
		if ref, ok := links[rec.ID]; ok && !taken[ref] {
			taken[ref] = true
			st.h.FlatAssignments[rec.ID] = ref
			continue
		}
		st.h.FlatAssignments[rec.ID] = st.addStandalone(rec)
	}
}

// addStandalone synthesizes a title, production, tier and default model for
// one flat record.
func (st *derivation) addStandalone(rec ir.FlatRecord) ir.EntityRef {
	id := fmt.Sprintf("ipdb-%d", rec.ID)
	name := ingest.CleanText(rec.Title)
	key := ir.GroupKey{Group: id, Generation: ingest.FlatGeneration(rec.TypeShort, rec.Type)}

	titleRef := ir.Ref(ir.KindTitle, id)
	prodRef := ir.Ref(ir.KindProduction, id)
	tierRef := ir.Ref(ir.KindTier, id)
	modelRef := ir.Ref(ir.KindModel, id)
	st.h.Titles = append(st.h.Titles, Node{Ref: titleRef, Group: ir.GroupKey{Group: id}, Name: name, FlatID: rec.ID})
	st.h.Productions = append(st.h.Productions, Node{Ref: prodRef, Parent: &titleRef, Group: key, Name: name, FlatID: rec.ID})
	st.h.Tiers = append(st.h.Tiers, Node{Ref: tierRef, Parent: &prodRef, Group: key, IsDefault: true, Name: name, FlatID: rec.ID})
	st.h.Models = append(st.h.Models, Node{Ref: modelRef, Parent: &tierRef, Group: key, IsDefault: true, Name: name, FlatID: rec.ID})
	return modelRef
}

func (st *derivation) addUnresolved(u identity.Unresolved) {
	key := u.Kind + "\x00" + identity.NormalizeName(u.Raw)
	if _, ok := st.unresolved[key]; !ok {
		st.unresolved[key] = u
	}
}

// finish sorts every output slice.
func (st *derivation) finish() *Hierarchy {
	h := st.h
	byID := func(a, b Node) int { return strings.Compare(a.Ref.ID, b.Ref.ID) }
	slices.SortFunc(h.Titles, byID)
	slices.SortFunc(h.Productions, byID)
	slices.SortFunc(h.Tiers, byID)
	slices.SortFunc(h.Models, byID)

	for _, b := range st.newBrands {
		h.NewBrands = append(h.NewBrands, b)
	}
	slices.SortFunc(h.NewBrands, func(a, b identity.Brand) int { return strings.Compare(a.ID, b.ID) })

	for _, u := range st.unresolved {
		h.Unresolved = append(h.Unresolved, u)
	}
	slices.SortFunc(h.Unresolved, func(a, b identity.Unresolved) int {
		return cmp.Or(strings.Compare(a.Kind, b.Kind), strings.Compare(a.Raw, b.Raw), strings.Compare(a.Context, b.Context))
	})
	return h
}

// groupOf is the row's title group: its explicit group ID, else the first
// segment of its ID.
func groupOf(r ir.MachineRow) string {
	if g := strings.TrimSpace(r.GroupID); g != "" {
		return g
	}
	return ingest.GroupID(r.ID)
}

func aliasParent(r ir.MachineRow) string {
	if r.AliasOf != "" {
		return r.AliasOf
	}
	return ingest.ParentID(r.ID)
}

// productionID joins the non-empty key parts: "G1-bally-solid-state", or
// "G1-<slug>" for a pinned production.
func productionID(k ir.GroupKey) string {
	if k.Pinned != "" {
		return k.Group + "-" + identity.Slugify(k.Pinned)
	}
	parts := []string{k.Group}
	for _, p := range []string{k.Brand, k.Generation} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, "-")
}

// representative picks the row a production is named after: the
// hardware-defining row, else the earliest dated row. Ties and undated rows
// fall back to the lowest ID.
func representative(rows []ir.MachineRow) ir.MachineRow {
	best := rows[0]
	for _, r := range rows[1:] {
		if repLess(r, best) {
			best = r
		}
	}
	return best
}

func repLess(a, b ir.MachineRow) bool {
	if a.DefinesHardware != b.DefinesHardware {
		return a.DefinesHardware
	}
	if !a.DefinesHardware {
		da, oka := dateKey(a)
		db, okb := dateKey(b)
		if oka != okb {
			return oka
		}
		if da != db {
			return da < db
		}
	}
	return a.ID < b.ID
}

// dateKey orders by year then month; a year-only date sorts before any
// dated month of that year.
func dateKey(r ir.MachineRow) (int, bool) {
	y, m, ok := ingest.ParseDate(r.Date)
	return y*100 + m, ok
}
