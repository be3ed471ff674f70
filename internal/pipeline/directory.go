package pipeline

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/roach88/pinbase/internal/identity"
	"github.com/roach88/pinbase/internal/ingest"
	"github.com/roach88/pinbase/internal/ir"
	"github.com/roach88/pinbase/internal/overrides"
	"github.com/roach88/pinbase/internal/store"
)

// buildDirectory loads the organizations and persons of the last
// resolution, then layers curated records on top.
func buildDirectory(ctx context.Context, st *store.Store, ov *overrides.File, logger *slog.Logger) (*identity.Directory, error) {
	dir := identity.NewDirectory()

	stored, err := st.ListResolved(ctx, ir.KindManufacturer, ir.KindCorporateEntity, ir.KindPerson)
	if err != nil {
		return nil, fmt.Errorf("build directory: %w", err)
	}
	for _, e := range stored {
		var err error
		switch e.Ref.Kind {
		case ir.KindManufacturer:
			err = dir.AddBrand(identity.Brand{
				ID:         e.Ref.ID,
				Name:       textField(e.Fields, "name"),
				TradeName:  textField(e.Fields, "trade_name"),
				ExternalID: intField(e.Fields, "opdb_manufacturer_id"),
			})
		case ir.KindCorporateEntity:
			if e.Parent == nil || e.Parent.Kind != ir.KindManufacturer {
				continue
			}
			err = dir.AddBrand(identity.Brand{
				ID: e.Parent.ID,
				Incarnations: []identity.Incarnation{{
					ID:          e.Ref.ID,
					LegalName:   textField(e.Fields, "name"),
					YearsActive: textField(e.Fields, "years_active"),
					ExternalID:  intField(e.Fields, "ipdb_manufacturer_id"),
				}},
			})
		case ir.KindPerson:
			err = dir.AddPerson(identity.Person{ID: e.Ref.ID, Name: textField(e.Fields, "name")})
		}
		if err != nil {
			logger.Warn("skipping stored organization", "entity", e.Ref.String(), "error", err)
		}
	}

	if ov != nil {
		if err := ov.Apply(dir); err != nil {
			return nil, fmt.Errorf("build directory: %w", err)
		}
	}
	return dir, nil
}

// corporateEntity is one corporate incarnation referenced by the flat
// export.
type corporateEntity struct {
	ID         string
	Brand      string
	Org        identity.Organization
	ExternalID int64
}

func (c corporateEntity) ref() ir.EntityRef {
	return ir.Ref(ir.KindCorporateEntity, c.ID)
}

// registerCorporateEntities makes sure every manufacturer ID the flat
// export uses maps to an incarnation in dir, so incarnation-scheme claims
// resolve. Unknown organizations get a new brand and are reported.
func registerCorporateEntities(dir *identity.Directory, ids *identity.Resolver, flat []ir.FlatRecord, logger *slog.Logger) ([]corporateEntity, []identity.Unresolved, error) {
	raws := make(map[int64]ir.FlatRecord)
	for _, rec := range flat {
		ext := rec.ManufacturerID
		if ext == 0 || ingest.SkipManufacturerIDs[ext] || rec.Manufacturer == "" {
			continue
		}
		if prev, ok := raws[ext]; !ok || rec.ID < prev.ID {
			raws[ext] = rec
		}
	}
	exts := make([]int64, 0, len(raws))
	for ext := range raws {
		exts = append(exts, ext)
	}
	slices.Sort(exts)

	var out []corporateEntity
	var unresolved []identity.Unresolved
	for _, ext := range exts {
		rec := raws[ext]
		org := identity.ParseOrganization(rec.Manufacturer)

		if inc, b, ok := dir.IncarnationByExternalID(ext); ok {
			out = append(out, corporateEntity{ID: inc.ID, Brand: b.ID, Org: org, ExternalID: ext})
			continue
		}

		m, ok := ids.ResolveOrganization(rec.Manufacturer)
		brandID := m.BrandID
		if !ok {
			b, created, err := dir.EnsureBrand(cmp.Or(org.TradeName, org.CompanyName))
			if err != nil {
				return nil, nil, fmt.Errorf("register corporate entity %d: %w", ext, err)
			}
			if created {
				logger.Info("created brand", "brand", b.ID, "raw", rec.Manufacturer)
			}
			brandID = b.ID
			unresolved = append(unresolved, identity.Unresolved{
				Kind:    "organization",
				Raw:     rec.Manufacturer,
				Context: fmt.Sprintf("ipdb:%d", rec.ID),
			})
		}

		brand, _ := dir.Brand(brandID)
		incID := identity.Slugify(org.CompanyName)
		if m.IncarnationID != "" {
			incID = m.IncarnationID
		}
		if i := slices.IndexFunc(brand.Incarnations, func(x identity.Incarnation) bool { return x.ID == incID }); i >= 0 && brand.Incarnations[i].ExternalID != 0 {
			incID = fmt.Sprintf("%s-%d", incID, ext)
		}

		inc := identity.Incarnation{ID: incID, LegalName: org.CompanyName, YearsActive: org.YearsActive, ExternalID: ext}
		if err := dir.AddBrand(identity.Brand{ID: brandID, Incarnations: []identity.Incarnation{inc}}); err != nil {
			return nil, nil, fmt.Errorf("register corporate entity %d: %w", ext, err)
		}
		out = append(out, corporateEntity{ID: incID, Brand: brandID, Org: org, ExternalID: ext})
	}
	return out, unresolved, nil
}

// organizationEntities returns ledger entities for every brand and person
// in dir plus the corporate entities.
func organizationEntities(dir *identity.Directory, corp []corporateEntity) []ir.Entity {
	var out []ir.Entity
	for _, b := range dir.Brands() {
		out = append(out, ir.Entity{Ref: ir.Ref(ir.KindManufacturer, b.ID)})
	}
	for _, c := range corp {
		parent := ir.Ref(ir.KindManufacturer, c.Brand)
		out = append(out, ir.Entity{Ref: c.ref(), Parent: &parent})
	}
	for _, p := range dir.Persons() {
		out = append(out, ir.Entity{Ref: ir.Ref(ir.KindPerson, p.ID)})
	}
	return out
}

func textField(obj ir.IRObject, key string) string {
	s, _ := ir.Text(obj[key])
	return s
}

func intField(obj ir.IRObject, key string) int64 {
	if n, ok := obj[key].(ir.IRInt); ok {
		return int64(n)
	}
	return 0
}
