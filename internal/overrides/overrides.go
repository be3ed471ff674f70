// Package overrides loads curated editorial records: production pins,
// canonical brands and persons, descriptions and field-level claims.
//
// Files are YAML checked against an embedded CUE schema before they are
// decoded, so a typo in a key is an error rather than a silently ignored
// record.
package overrides

import (
	_ "embed"
	"fmt"
	"os"
	"slices"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"

	"github.com/roach88/pinbase/internal/identity"
	"github.com/roach88/pinbase/internal/ir"
)

//go:embed schema.cue
var schemaSource string

// Pin assigns a machine row to a named production.
type Pin struct {
	Row        string `yaml:"row"`
	Production string `yaml:"production"`
}

// Description is curated prose for one entity.
type Description struct {
	Entity   string `yaml:"entity"`
	Text     string `yaml:"text"`
	Citation string `yaml:"citation,omitempty"`
}

// Claim is a curated value for one field of one entity.
type Claim struct {
	Entity   string `yaml:"entity"`
	Field    string `yaml:"field"`
	Value    any    `yaml:"value"`
	Citation string `yaml:"citation,omitempty"`
}

// File is the decoded content of one or more override files.
type File struct {
	Pins         []Pin             `yaml:"pins,omitempty"`
	Brands       []identity.Brand  `yaml:"brands,omitempty"`
	Persons      []identity.Person `yaml:"persons,omitempty"`
	Descriptions []Description     `yaml:"descriptions,omitempty"`
	Claims       []Claim           `yaml:"claims,omitempty"`
}

// SchemaError lists every schema problem found in one file.
type SchemaError struct {
	File     string
	Problems []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s: invalid overrides: %s", e.File, strings.Join(e.Problems, "; "))
}

// Load reads and merges override files in order.
func Load(paths ...string) (*File, error) {
	out := &File{}
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("load overrides: %w", err)
		}
		f, err := Parse(p, data)
		if err != nil {
			return nil, err
		}
		out.merge(f)
	}
	if _, err := out.PinMap(); err != nil {
		return nil, err
	}
	return out, nil
}

// Parse validates data against the schema and decodes it. name is used in
// error messages only.
func Parse(name string, data []byte) (*File, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if raw == nil {
		return &File{}, nil
	}
	if err := validate(name, raw); err != nil {
		return nil, err
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return &f, nil
}

func validate(name string, raw any) error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile override schema: %w", err)
	}

	doc := ctx.Encode(raw)
	if err := doc.Err(); err != nil {
		return &SchemaError{File: name, Problems: []string{err.Error()}}
	}
	v := schema.LookupPath(cue.ParsePath("#Overrides")).Unify(doc)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		var problems []string
		for _, e := range cueerrors.Errors(err) {
			problems = append(problems, e.Error())
		}
		slices.Sort(problems)
		return &SchemaError{File: name, Problems: slices.Compact(problems)}
	}
	return nil
}

// Marshal encodes f as an override document that Parse accepts.
func (f *File) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("marshal overrides: %w", err)
	}
	return data, nil
}

func (f *File) merge(o *File) {
	f.Pins = append(f.Pins, o.Pins...)
	f.Brands = append(f.Brands, o.Brands...)
	f.Persons = append(f.Persons, o.Persons...)
	f.Descriptions = append(f.Descriptions, o.Descriptions...)
	f.Claims = append(f.Claims, o.Claims...)
}

// PinMap returns row ID -> production name. Pinning one row to two
// different productions is an error.
func (f *File) PinMap() (map[string]string, error) {
	out := make(map[string]string, len(f.Pins))
	for _, p := range f.Pins {
		if prev, ok := out[p.Row]; ok && prev != p.Production {
			return nil, fmt.Errorf("row %s pinned to both %q and %q", p.Row, prev, p.Production)
		}
		out[p.Row] = p.Production
	}
	return out, nil
}

// Apply registers the curated brands and persons in dir.
func (f *File) Apply(dir *identity.Directory) error {
	for _, b := range f.Brands {
		if err := dir.AddBrand(b); err != nil {
			return fmt.Errorf("apply overrides: %w", err)
		}
	}
	for _, p := range f.Persons {
		if err := dir.AddPerson(p); err != nil {
			return fmt.Errorf("apply overrides: %w", err)
		}
	}
	return nil
}

// PendingClaims converts descriptions and curated claims into ledger
// claims. Credit claims take a {person, role, exists} value; exists
// defaults to true.
func (f *File) PendingClaims() ([]ir.PendingClaim, error) {
	var out []ir.PendingClaim
	for _, d := range f.Descriptions {
		ref, err := ir.ParseRef(d.Entity)
		if err != nil {
			return nil, err
		}
		out = append(out, ir.PendingClaim{
			Entity:   ref,
			Field:    "description",
			Value:    ir.IRString(strings.TrimSpace(d.Text)),
			Citation: d.Citation,
		})
	}

	for _, c := range f.Claims {
		ref, err := ir.ParseRef(c.Entity)
		if err != nil {
			return nil, err
		}
		value, err := ir.FromAny(c.Value)
		if err != nil {
			return nil, fmt.Errorf("claim %s.%s: %w", c.Entity, c.Field, err)
		}

		p := ir.PendingClaim{Entity: ref, Field: c.Field, Value: value, Citation: c.Citation}
		if ir.IsRelationship(c.Field) {
			obj, ok := value.(ir.IRObject)
			if !ok {
				return nil, fmt.Errorf("claim %s.%s: relationship value must be a mapping", c.Entity, c.Field)
			}
			ident := make(map[string]string, len(obj))
			for k, v := range obj {
				if s, ok := v.(ir.IRString); ok {
					ident[k] = string(s)
				}
			}
			exists := true
			if b, ok := obj["exists"].(ir.IRBool); ok {
				exists = bool(b)
			}
			key, rel, err := ir.RelationshipClaim(c.Field, ident, exists)
			if err != nil {
				return nil, fmt.Errorf("claim %s.%s: %w", c.Entity, c.Field, err)
			}
			p.ClaimKey = key
			p.Value = rel
		}
		out = append(out, p)
	}
	return out, nil
}
