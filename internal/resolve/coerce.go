package resolve

import (
	"cmp"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/roach88/pinbase/internal/identity"
	"github.com/roach88/pinbase/internal/ir"
)

var dateLayouts = []string{"2006-01-02", "2006-01", "2006"}

// coerce converts a non-empty winning value to the column's type.
// Organization references are read from orgs; a nil table resolves them
// inline, which is only safe from a single goroutine.
func (r *Resolver) coerce(ft FieldType, c ir.RankedClaim, orgs orgTable) (ir.IRValue, error) {
	switch ft {
	case TypeString:
		s, ok := ir.Text(c.Value)
		if !ok {
			return nil, fmt.Errorf("want a scalar, got %T", c.Value)
		}
		return ir.IRString(strings.TrimSpace(s)), nil

	case TypeInt:
		return coerceInt(c.Value)

	case TypeDecimal:
		switch v := c.Value.(type) {
		case ir.IRDecimal:
			return v, nil
		case ir.IRInt:
			return ir.IRDecimal(strconv.FormatInt(int64(v), 10)), nil
		case ir.IRString:
			return ir.NewIRDecimal(string(v))
		}
		return nil, fmt.Errorf("want a number, got %T", c.Value)

	case TypeBool:
		switch v := c.Value.(type) {
		case ir.IRBool:
			return v, nil
		case ir.IRInt:
			if v == 0 || v == 1 {
				return ir.IRBool(v == 1), nil
			}
		case ir.IRString:
			switch strings.ToLower(strings.TrimSpace(string(v))) {
			case "yes", "y":
				return ir.IRBool(true), nil
			case "no", "n":
				return ir.IRBool(false), nil
			}
			b, err := strconv.ParseBool(strings.TrimSpace(string(v)))
			if err == nil {
				return ir.IRBool(b), nil
			}
		}
		return nil, fmt.Errorf("not a boolean: %v", c.Value)

	case TypeDate:
		s, ok := ir.Text(c.Value)
		if !ok {
			return nil, fmt.Errorf("want a date string, got %T", c.Value)
		}
		s = strings.TrimSpace(s)
		for _, layout := range dateLayouts {
			if len(s) != len(layout) {
				continue
			}
			if _, err := time.Parse(layout, s); err == nil {
				return ir.IRString(s), nil
			}
		}
		return nil, fmt.Errorf("not a YYYY, YYYY-MM or YYYY-MM-DD date: %q", s)

	case TypeOrg:
		id, err := orgs.lookup(r, c)
		if err != nil {
			return nil, err
		}
		return ir.IRString(id), nil
	}
	return nil, fmt.Errorf("unknown field type %q", ft)
}

func coerceInt(v ir.IRValue) (ir.IRValue, error) {
	switch val := v.(type) {
	case ir.IRInt:
		return val, nil
	case ir.IRString:
		s := strings.ReplaceAll(strings.TrimSpace(string(val)), ",", "")
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("not an integer: %q", string(val))
		}
		return ir.IRInt(n), nil
	case ir.IRDecimal:
		whole, frac, _ := strings.Cut(string(val), ".")
		if strings.Trim(frac, "0") != "" {
			return nil, fmt.Errorf("not an integer: %s", string(val))
		}
		n, err := strconv.ParseInt(whole, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("not an integer: %s", string(val))
		}
		return ir.IRInt(n), nil
	}
	return nil, fmt.Errorf("want an integer, got %T", v)
}

// resolveOrg maps an organization reference to a brand ID. External IDs
// are looked up under the claiming source's scheme and fall back to the
// name lookup; names go through the identity cascade and create a brand
// only when nothing matches. Numeric references never create brands.
func (r *Resolver) resolveOrg(v ir.IRValue, scheme ir.OrgScheme) (string, error) {
	dir := r.ids.Directory()
	name, ok := ir.Text(v)
	if !ok {
		return "", fmt.Errorf("want an organization name, got %T", v)
	}

	if ext, ok := externalID(v); ok {
		if id, found := brandForExternalID(dir, ext, scheme); found {
			return id, nil
		}
		if m, ok := r.ids.ResolveOrganization(name); ok {
			return m.BrandID, nil
		}
		return "", fmt.Errorf("no organization with external id %d", ext)
	}

	if m, ok := r.ids.ResolveOrganization(name); ok {
		return m.BrandID, nil
	}
	org := identity.ParseOrganization(name)
	b, created, err := dir.EnsureBrand(cmp.Or(org.TradeName, org.CompanyName, strings.TrimSpace(name)))
	if err != nil {
		return "", err
	}
	if created {
		r.logger.Info("created brand", "brand", b.ID, "raw", name)
	}
	return b.ID, nil
}

// brandForExternalID looks ext up in the ID space of scheme. Name-scheme
// sources carry no ID space of their own, so both are tried.
func brandForExternalID(dir *identity.Directory, ext int64, scheme ir.OrgScheme) (string, bool) {
	if scheme != ir.OrgSchemeBrand {
		if _, b, ok := dir.IncarnationByExternalID(ext); ok {
			return b.ID, true
		}
	}
	if scheme != ir.OrgSchemeIncarnation {
		if b, ok := dir.BrandByExternalID(ext); ok {
			return b.ID, true
		}
	}
	return "", false
}

func externalID(v ir.IRValue) (int64, bool) {
	switch val := v.(type) {
	case ir.IRInt:
		return int64(val), true
	case ir.IRString:
		n, err := strconv.ParseInt(strings.TrimSpace(string(val)), 10, 64)
		return n, err == nil
	}
	return 0, false
}
