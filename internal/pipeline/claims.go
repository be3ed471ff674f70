package pipeline

import (
	"cmp"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/roach88/pinbase/internal/hierarchy"
	"github.com/roach88/pinbase/internal/identity"
	"github.com/roach88/pinbase/internal/ingest"
	"github.com/roach88/pinbase/internal/ir"
)

// claimSet accumulates pending claims for one source, dropping empty
// values so a missing fact never masks another source's value.
type claimSet struct {
	pending []ir.PendingClaim
}

func (s *claimSet) add(ref ir.EntityRef, field string, v ir.IRValue, citation string) {
	if v == nil || ir.IsEmpty(v) {
		return
	}
	s.pending = append(s.pending, ir.PendingClaim{Entity: ref, Field: field, Value: v, Citation: citation})
}

func (s *claimSet) str(ref ir.EntityRef, field, v, citation string) {
	s.add(ref, field, ir.IRString(strings.TrimSpace(v)), citation)
}

func (s *claimSet) num(ref ir.EntityRef, field string, v int64, citation string) {
	if v == 0 {
		return
	}
	s.add(ref, field, ir.IRInt(v), citation)
}

// date claims year and month from a parsed date, plus the full date when
// the value carries one.
func (s *claimSet) date(ref ir.EntityRef, year, month int, full, citation string) {
	s.num(ref, "year", int64(year), citation)
	s.num(ref, "month", int64(month), citation)
	if full != "" {
		s.str(ref, "release_date", full, citation)
	}
}

// inherit fills an alias row's blank fields from its parent machine row.
func inherit(r, parent ir.MachineRow) ir.MachineRow {
	r.ManufacturerID = cmp.Or(r.ManufacturerID, parent.ManufacturerID)
	r.Manufacturer = cmp.Or(r.Manufacturer, parent.Manufacturer)
	r.Type = cmp.Or(r.Type, parent.Type)
	r.Display = cmp.Or(r.Display, parent.Display)
	r.Date = cmp.Or(r.Date, parent.Date)
	r.PlayerCount = cmp.Or(r.PlayerCount, parent.PlayerCount)
	return r
}

func manufacturerValue(ext int64, name string) ir.IRValue {
	if ext != 0 {
		return ir.IRInt(ext)
	}
	if name = strings.TrimSpace(name); name != "" {
		return ir.IRString(name)
	}
	return nil
}

// fullDate returns s when it is a complete YYYY-MM-DD date.
func fullDate(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 10 && s[4] == '-' && s[7] == '-' {
		return s[:10]
	}
	return ""
}

// machineClaims converts hierarchical rows into claims on the derived
// entities.
func machineClaims(h *hierarchy.Hierarchy, rows []ir.MachineRow, dir *identity.Directory) []ir.PendingClaim {
	byID := make(map[string]ir.MachineRow, len(rows))
	for _, r := range rows {
		byID[r.ID] = r
	}
	row := func(id string) (ir.MachineRow, bool) {
		r, ok := byID[id]
		if !ok {
			return r, false
		}
		if r.IsAlias {
			if parent, ok := byID[cmp.Or(r.AliasOf, ingest.ParentID(r.ID))]; ok {
				return inherit(r, parent), true
			}
		}
		return r, true
	}
	cite := func(id string) string { return "opdb:" + id }

	var s claimSet
	for _, n := range h.Titles {
		if n.FlatID != 0 {
			continue
		}
		s.str(n.Ref, "name", n.Name, cite(n.Ref.ID))
		s.str(n.Ref, "opdb_group_id", n.Ref.ID, cite(n.Ref.ID))
	}

	for _, n := range h.Productions {
		r, ok := row(n.RowID)
		if !ok {
			continue
		}
		c := cite(r.ID)
		s.str(n.Ref, "name", n.Name, c)
		s.add(n.Ref, "manufacturer", manufacturerValue(r.ManufacturerID, r.Manufacturer), c)
		if y, m, ok := ingest.ParseDate(r.Date); ok {
			s.num(n.Ref, "year", int64(y), c)
			s.num(n.Ref, "month", int64(m), c)
		}
		s.str(n.Ref, "machine_type", ingest.Generation(r.Type), c)
		s.str(n.Ref, "display_type", ingest.DisplayType(r.Display), c)
		s.num(n.Ref, "player_count", r.PlayerCount, c)
	}

	for _, n := range h.Tiers {
		r, ok := row(n.RowID)
		if !ok {
			continue
		}
		c := cite(r.ID)
		s.str(n.Ref, "name", n.Name, c)
		s.str(n.Ref, "display_type", ingest.DisplayType(r.Display), c)
		s.num(n.Ref, "player_count", r.PlayerCount, c)
		s.add(n.Ref, "label_only", ir.IRBool(n.LabelOnly), c)
	}

	for _, n := range h.Models {
		r, ok := row(n.RowID)
		if !ok {
			continue
		}
		c := cite(r.ID)
		s.str(n.Ref, "name", n.Name, c)
		s.str(n.Ref, "opdb_id", r.ID, c)
		if y, m, ok := ingest.ParseDate(r.Date); ok {
			s.date(n.Ref, y, m, fullDate(r.Date), c)
		}
		s.add(n.Ref, "manufacturer", manufacturerValue(r.ManufacturerID, r.Manufacturer), c)
		s.num(n.Ref, "player_count", r.PlayerCount, c)
		s.str(n.Ref, "machine_type", ingest.Generation(r.Type), c)
		s.str(n.Ref, "display_type", ingest.DisplayType(r.Display), c)
		s.num(n.Ref, "ipdb_id", r.IPDBID, c)
		for _, k := range slices.Sorted(maps.Keys(r.Extra)) {
			s.str(n.Ref, k, r.Extra[k], c)
		}
	}

	// Brands named by external ID get their identifier and display name
	// from the first row that mentions them.
	seen := make(map[string]bool)
	for _, r := range slices.SortedFunc(maps.Values(byID), func(a, b ir.MachineRow) int { return strings.Compare(a.ID, b.ID) }) {
		if r.ManufacturerID == 0 {
			continue
		}
		b, ok := dir.BrandByExternalID(r.ManufacturerID)
		if !ok || seen[b.ID] {
			continue
		}
		seen[b.ID] = true
		ref := ir.Ref(ir.KindManufacturer, b.ID)
		c := fmt.Sprintf("opdb:manufacturer:%d", r.ManufacturerID)
		s.num(ref, "opdb_manufacturer_id", r.ManufacturerID, c)
		s.str(ref, "name", ingest.CleanText(r.Manufacturer), c)
	}
	return s.pending
}

// flatClaims converts flat records into claims on their assigned models,
// plus the corporate entities they reference. Credit names that match no
// known person are returned for curation.
func flatClaims(h *hierarchy.Hierarchy, flat []ir.FlatRecord, corp []corporateEntity, ids *identity.Resolver) ([]ir.PendingClaim, []identity.Unresolved) {
	standalone := make(map[int64][]hierarchy.Node)
	for _, nodes := range [][]hierarchy.Node{h.Titles, h.Productions, h.Tiers} {
		for _, n := range nodes {
			if n.FlatID != 0 {
				standalone[n.FlatID] = append(standalone[n.FlatID], n)
			}
		}
	}

	var s claimSet
	var unresolved []identity.Unresolved
	records := slices.Clone(flat)
	slices.SortStableFunc(records, func(a, b ir.FlatRecord) int { return cmp.Compare(a.ID, b.ID) })
	done := make(map[int64]bool)
	for _, rec := range records {
		ref, ok := h.FlatAssignments[rec.ID]
		if !ok || done[rec.ID] {
			continue
		}
		done[rec.ID] = true

		c := fmt.Sprintf("ipdb:%d", rec.ID)
		name := ingest.CleanText(rec.Title)
		var mfr ir.IRValue
		if !ingest.SkipManufacturerIDs[rec.ManufacturerID] {
			mfr = manufacturerValue(rec.ManufacturerID, rec.Manufacturer)
		}
		generation := ingest.FlatGeneration(rec.TypeShort, rec.Type)
		year, month, dated := ingest.ParseFlatDate(rec.Date)

		s.str(ref, "name", name, c)
		s.num(ref, "ipdb_id", rec.ID, c)
		s.add(ref, "manufacturer", mfr, c)
		if dated {
			s.num(ref, "year", int64(year), c)
			s.num(ref, "month", int64(month), c)
		}
		s.str(ref, "machine_type", generation, c)
		s.num(ref, "player_count", rec.Players, c)
		s.str(ref, "production_quantity", rec.ProductionNumber, c)
		if rating := strings.TrimSpace(rec.Rating); rating != "" {
			if d, err := ir.NewIRDecimal(rating); err == nil {
				s.add(ref, "ipdb_rating", d, c)
			} else {
				s.str(ref, "ipdb_rating", rating, c)
			}
		}
		if len(rec.ImageURLs) > 0 {
			urls := make(ir.IRArray, 0, len(rec.ImageURLs))
			for _, u := range rec.ImageURLs {
				urls = append(urls, ir.IRString(u))
			}
			s.add(ref, "image_urls", urls, c)
		}

		for _, role := range slices.Sorted(maps.Keys(rec.Credits)) {
			matches, missing := ids.ResolveCredits(rec.Credits[role], c)
			unresolved = append(unresolved, missing...)
			for _, m := range matches {
				key, value, err := ir.RelationshipClaim("credit", map[string]string{
					"person": m.PersonID,
					"role":   strings.ToLower(strings.TrimSpace(role)),
				}, true)
				if err != nil {
					continue
				}
				s.pending = append(s.pending, ir.PendingClaim{Entity: ref, Field: "credit", ClaimKey: key, Value: value, Citation: c})
			}
		}

		for _, n := range standalone[rec.ID] {
			s.str(n.Ref, "name", name, c)
			switch n.Ref.Kind {
			case ir.KindProduction:
				s.add(n.Ref, "manufacturer", mfr, c)
				if dated {
					s.num(n.Ref, "year", int64(year), c)
					s.num(n.Ref, "month", int64(month), c)
				}
				s.str(n.Ref, "machine_type", generation, c)
			case ir.KindTier:
				s.num(n.Ref, "player_count", rec.Players, c)
			}
		}
	}

	for _, ce := range corp {
		ref := ce.ref()
		c := fmt.Sprintf("ipdb:manufacturer:%d", ce.ExternalID)
		s.str(ref, "name", ce.Org.CompanyName, c)
		s.str(ref, "years_active", ce.Org.YearsActive, c)
		s.num(ref, "ipdb_manufacturer_id", ce.ExternalID, c)
		loc := identity.ParseLocation(ce.Org.Location)
		s.str(ref, "city", loc.City, c)
		s.str(ref, "state", loc.State, c)
		s.str(ref, "country", loc.Country, c)
	}
	return s.pending, unresolved
}

// SkippedClaim is a curated claim aimed at an entity the run does not know.
type SkippedClaim struct {
	Entity ir.EntityRef `json:"entity"`
	Field  string       `json:"field"`
	Reason string       `json:"reason"`
}

// filterKnown drops claims on entities outside known.
func filterKnown(pending []ir.PendingClaim, known map[ir.EntityRef]bool) ([]ir.PendingClaim, []SkippedClaim) {
	var keep []ir.PendingClaim
	var skipped []SkippedClaim
	for _, p := range pending {
		if !known[p.Entity] {
			skipped = append(skipped, SkippedClaim{Entity: p.Entity, Field: p.Field, Reason: "unknown entity"})
			continue
		}
		keep = append(keep, p)
	}
	return keep, skipped
}

// mergeUnresolved dedupes reports by kind and normalized text, keeping the
// first context seen.
func mergeUnresolved(groups ...[]identity.Unresolved) []identity.Unresolved {
	seen := make(map[string]bool)
	out := []identity.Unresolved{}
	for _, g := range groups {
		for _, u := range g {
			key := u.Kind + "\x00" + identity.NormalizeName(u.Raw)
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, u)
		}
	}
	slices.SortFunc(out, func(a, b identity.Unresolved) int {
		return cmp.Or(strings.Compare(a.Kind, b.Kind), strings.Compare(a.Raw, b.Raw))
	})
	return out
}
