package identity

import (
	"fmt"
	"slices"
	"strings"
	"sync"
)

// Incarnation is one corporate entity behind a brand, e.g. "D. Gottlieb &
// Company" (1931-1977) under the Gottlieb brand.
type Incarnation struct {
	ID          string `json:"id" yaml:"id"`
	LegalName   string `json:"legal_name" yaml:"legal_name"`
	YearsActive string `json:"years_active,omitempty" yaml:"years_active,omitempty"`
	ExternalID  int64  `json:"external_id,omitempty" yaml:"external_id,omitempty"` // corporate-source manufacturer ID
}

// Brand is a canonical organization that persists across ownership changes.
type Brand struct {
	ID           string        `json:"id" yaml:"id"`
	Name         string        `json:"name" yaml:"name"`
	TradeName    string        `json:"trade_name,omitempty" yaml:"trade_name,omitempty"`
	ExternalID   int64         `json:"external_id,omitempty" yaml:"external_id,omitempty"` // hierarchical-source brand ID
	Aliases      []string      `json:"aliases,omitempty" yaml:"aliases,omitempty"`
	Incarnations []Incarnation `json:"incarnations,omitempty" yaml:"incarnations,omitempty"`
}

// Person is a canonical person with known alternate spellings.
type Person struct {
	ID      string   `json:"id" yaml:"id"`
	Name    string   `json:"name" yaml:"name"`
	Aliases []string `json:"aliases,omitempty" yaml:"aliases,omitempty"`
}

type incarnationRef struct {
	brand string
	index int
}

// Directory is the in-memory registry of known organizations and persons.
// It is safe for concurrent use; reads vastly outnumber writes.
type Directory struct {
	mu      sync.RWMutex
	version uint64

	brands  map[string]*Brand
	persons map[string]*Person

	brandByExternal       map[int64]string
	incarnationByExternal map[int64]incarnationRef
	incarnationByLegal    map[string][]incarnationRef
	brandByTrade          map[string][]string
	brandByName           map[string][]string
	personByName          map[string]string
	personByAlias         map[string]string
}

// NewDirectory returns an empty directory.
func NewDirectory() *Directory {
	return &Directory{
		brands:                make(map[string]*Brand),
		persons:               make(map[string]*Person),
		brandByExternal:       make(map[int64]string),
		incarnationByExternal: make(map[int64]incarnationRef),
		incarnationByLegal:    make(map[string][]incarnationRef),
		brandByTrade:          make(map[string][]string),
		brandByName:           make(map[string][]string),
		personByName:          make(map[string]string),
		personByAlias:         make(map[string]string),
	}
}

// Version increases on every mutation. Caches key on it.
func (d *Directory) Version() uint64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.version
}

// AddBrand registers a brand, merging into an existing brand with the same
// ID: non-empty scalar fields replace, aliases and incarnations are unioned.
func (d *Directory) AddBrand(b Brand) error {
	if b.ID == "" {
		b.ID = Slugify(b.Name)
	}
	if b.ID == "" {
		return fmt.Errorf("add brand: empty id and name")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if b.ExternalID != 0 {
		if owner, ok := d.brandByExternal[b.ExternalID]; ok && owner != b.ID {
			return fmt.Errorf("add brand %s: external id %d already belongs to %s", b.ID, b.ExternalID, owner)
		}
	}
	for _, inc := range b.Incarnations {
		if inc.ExternalID == 0 {
			continue
		}
		if ref, ok := d.incarnationByExternal[inc.ExternalID]; ok && ref.brand != b.ID {
			return fmt.Errorf("add brand %s: incarnation external id %d already belongs to %s", b.ID, inc.ExternalID, ref.brand)
		}
	}

	cur, ok := d.brands[b.ID]
	if !ok {
		cur = &Brand{ID: b.ID}
		d.brands[b.ID] = cur
	}
	if b.Name != "" {
		cur.Name = b.Name
	}
	if b.TradeName != "" {
		cur.TradeName = b.TradeName
	}
	if b.ExternalID != 0 {
		cur.ExternalID = b.ExternalID
	}
	for _, a := range b.Aliases {
		if !slices.Contains(cur.Aliases, a) {
			cur.Aliases = append(cur.Aliases, a)
		}
	}
	for _, inc := range b.Incarnations {
		if inc.ID == "" {
			inc.ID = Slugify(inc.LegalName)
		}
		i := slices.IndexFunc(cur.Incarnations, func(x Incarnation) bool { return x.ID == inc.ID })
		if i < 0 {
			cur.Incarnations = append(cur.Incarnations, inc)
		} else {
			cur.Incarnations[i] = inc
		}
	}
	slices.Sort(cur.Aliases)
	slices.SortFunc(cur.Incarnations, func(a, b Incarnation) int { return strings.Compare(a.ID, b.ID) })

	d.reindexLocked()
	return nil
}

// AddPerson registers a person, unioning aliases with any existing record.
func (d *Directory) AddPerson(p Person) error {
	if p.ID == "" {
		p.ID = Slugify(p.Name)
	}
	if p.ID == "" {
		return fmt.Errorf("add person: empty id and name")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	cur, ok := d.persons[p.ID]
	if !ok {
		cur = &Person{ID: p.ID}
		d.persons[p.ID] = cur
	}
	if p.Name != "" {
		cur.Name = p.Name
	}
	for _, a := range p.Aliases {
		if !slices.Contains(cur.Aliases, a) {
			cur.Aliases = append(cur.Aliases, a)
		}
	}
	slices.Sort(cur.Aliases)

	d.reindexLocked()
	return nil
}

// EnsureBrand returns the brand whose name normalizes like name, creating
// one with ID Slugify(name) if none exists. Concurrent callers racing on the
// same name get the same brand.
func (d *Directory) EnsureBrand(name string) (Brand, bool, error) {
	key := NormalizeName(name)
	if key == "" {
		return Brand{}, false, fmt.Errorf("ensure brand: empty name")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if ids := d.brandByName[key]; len(ids) > 0 {
		return cloneBrand(d.brands[ids[0]]), false, nil
	}
	id := Slugify(name)
	if b, ok := d.brands[id]; ok {
		return cloneBrand(b), false, nil
	}
	b := &Brand{ID: id, Name: strings.TrimSpace(name)}
	d.brands[id] = b
	d.reindexLocked()
	return cloneBrand(b), true, nil
}

// Brand returns a copy of the brand with the given ID.
func (d *Directory) Brand(id string) (Brand, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	b, ok := d.brands[id]
	if !ok {
		return Brand{}, false
	}
	return cloneBrand(b), true
}

// BrandByExternalID looks up a brand by the hierarchical source's brand ID.
func (d *Directory) BrandByExternalID(ext int64) (Brand, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	id, ok := d.brandByExternal[ext]
	if !ok {
		return Brand{}, false
	}
	return cloneBrand(d.brands[id]), true
}

// IncarnationByExternalID looks up a corporate incarnation by the corporate
// source's manufacturer ID and returns it with its parent brand.
func (d *Directory) IncarnationByExternalID(ext int64) (Incarnation, Brand, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	ref, ok := d.incarnationByExternal[ext]
	if !ok {
		return Incarnation{}, Brand{}, false
	}
	b := d.brands[ref.brand]
	return b.Incarnations[ref.index], cloneBrand(b), true
}

// Person returns a copy of the person with the given ID.
func (d *Directory) Person(id string) (Person, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, ok := d.persons[id]
	if !ok {
		return Person{}, false
	}
	return Person{ID: p.ID, Name: p.Name, Aliases: slices.Clone(p.Aliases)}, true
}

// Brands returns all brands sorted by ID.
func (d *Directory) Brands() []Brand {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Brand, 0, len(d.brands))
	for _, b := range d.brands {
		out = append(out, cloneBrand(b))
	}
	slices.SortFunc(out, func(a, b Brand) int { return strings.Compare(a.ID, b.ID) })
	return out
}

// Persons returns all persons sorted by ID.
func (d *Directory) Persons() []Person {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Person, 0, len(d.persons))
	for _, p := range d.persons {
		out = append(out, Person{ID: p.ID, Name: p.Name, Aliases: slices.Clone(p.Aliases)})
	}
	slices.SortFunc(out, func(a, b Person) int { return strings.Compare(a.ID, b.ID) })
	return out
}

// Lookups used by the matchers. Each returns candidates sorted by ID so a
// name shared by several records resolves the same way every run.

func (d *Directory) incarnationsByLegalName(name string) []incarnationRef {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return slices.Clone(d.incarnationByLegal[NormalizeName(name)])
}

func (d *Directory) brandsByTradeName(name string) []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return slices.Clone(d.brandByTrade[NormalizeName(name)])
}

func (d *Directory) brandsByName(name string) []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return slices.Clone(d.brandByName[NormalizeName(name)])
}

func (d *Directory) incarnation(ref incarnationRef) Incarnation {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.brands[ref.brand].Incarnations[ref.index]
}

func (d *Directory) personFor(name string) (string, Method, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	key := NormalizeName(name)
	if id, ok := d.personByName[key]; ok {
		return id, MethodPersonName, true
	}
	if id, ok := d.personByAlias[key]; ok {
		return id, MethodPersonAlias, true
	}
	return "", "", false
}

// reindexLocked rebuilds every lookup map. Caller holds d.mu for writing.
func (d *Directory) reindexLocked() {
	d.version++

	clear(d.brandByExternal)
	clear(d.incarnationByExternal)
	clear(d.incarnationByLegal)
	clear(d.brandByTrade)
	clear(d.brandByName)
	clear(d.personByName)
	clear(d.personByAlias)

	brandIDs := make([]string, 0, len(d.brands))
	for id := range d.brands {
		brandIDs = append(brandIDs, id)
	}
	slices.Sort(brandIDs)

	for _, id := range brandIDs {
		b := d.brands[id]
		if b.ExternalID != 0 {
			d.brandByExternal[b.ExternalID] = id
		}
		if b.TradeName != "" {
			k := NormalizeName(b.TradeName)
			d.brandByTrade[k] = append(d.brandByTrade[k], id)
		}
		names := append([]string{b.Name}, b.Aliases...)
		for _, n := range names {
			k := NormalizeName(n)
			if k == "" || slices.Contains(d.brandByName[k], id) {
				continue
			}
			d.brandByName[k] = append(d.brandByName[k], id)
		}
		for i, inc := range b.Incarnations {
			ref := incarnationRef{brand: id, index: i}
			if inc.ExternalID != 0 {
				d.incarnationByExternal[inc.ExternalID] = ref
			}
			if k := NormalizeName(inc.LegalName); k != "" {
				d.incarnationByLegal[k] = append(d.incarnationByLegal[k], ref)
			}
		}
	}

	personIDs := make([]string, 0, len(d.persons))
	for id := range d.persons {
		personIDs = append(personIDs, id)
	}
	slices.Sort(personIDs)
	for _, id := range personIDs {
		p := d.persons[id]
		if k := NormalizeName(p.Name); k != "" {
			if _, taken := d.personByName[k]; !taken {
				d.personByName[k] = id
			}
		}
		for _, a := range p.Aliases {
			if k := NormalizeName(a); k != "" {
				if _, taken := d.personByAlias[k]; !taken {
					d.personByAlias[k] = id
				}
			}
		}
	}
}

func cloneBrand(b *Brand) Brand {
	out := *b
	out.Aliases = slices.Clone(b.Aliases)
	out.Incarnations = slices.Clone(b.Incarnations)
	return out
}
