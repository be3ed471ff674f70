package identity

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Method tags how a match was made.
type Method string

const (
	MethodIncarnationLegalName Method = "incarnation_legal_name"
	MethodBrandTradeName       Method = "brand_trade_name"
	MethodBrandCompanyName     Method = "brand_company_name"
	MethodPersonName           Method = "person_name"
	MethodPersonAlias          Method = "person_alias"
)

// OrgMatch is a successful organization match.
type OrgMatch struct {
	Parsed        Organization `json:"parsed"`
	BrandID       string       `json:"brand_id"`
	IncarnationID string       `json:"incarnation_id,omitempty"`
	Method        Method       `json:"method"`
}

// PersonMatch is a successful person match.
type PersonMatch struct {
	Raw      string `json:"raw"`
	PersonID string `json:"person_id"`
	Method   Method `json:"method"`
}

// Unresolved records a raw string that matched nothing, for curation.
type Unresolved struct {
	Kind    string `json:"kind"` // "organization" or "person"
	Raw     string `json:"raw"`
	Context string `json:"context,omitempty"` // e.g. the row or entity that mentioned it
}

// OrgMatcher is one stage of the organization cascade.
type OrgMatcher struct {
	Method Method
	Match  func(d *Directory, org Organization) (OrgMatch, bool)
}

// DefaultOrgMatchers is the cascade order. Earlier stages win; ID-like
// matches on corporate legal names come before looser brand-name matches.
func DefaultOrgMatchers() []OrgMatcher {
	return []OrgMatcher{
		{Method: MethodIncarnationLegalName, Match: matchIncarnationLegalName},
		{Method: MethodBrandTradeName, Match: matchBrandTradeName},
		{Method: MethodBrandCompanyName, Match: matchBrandCompanyName},
	}
}

func matchIncarnationLegalName(d *Directory, org Organization) (OrgMatch, bool) {
	if org.CompanyName == "" {
		return OrgMatch{}, false
	}
	refs := d.incarnationsByLegalName(org.CompanyName)
	if len(refs) == 0 {
		return OrgMatch{}, false
	}
	// Several incarnations can share a legal name across eras; prefer the
	// one whose active years match the string's.
	pick := refs[0]
	if org.YearsActive != "" {
		for _, ref := range refs {
			if d.incarnation(ref).YearsActive == org.YearsActive {
				pick = ref
				break
			}
		}
	}
	return OrgMatch{BrandID: pick.brand, IncarnationID: d.incarnation(pick).ID}, true
}

func matchBrandTradeName(d *Directory, org Organization) (OrgMatch, bool) {
	if org.TradeName == "" {
		return OrgMatch{}, false
	}
	ids := d.brandsByTradeName(org.TradeName)
	if len(ids) == 0 {
		ids = d.brandsByName(org.TradeName)
	}
	if len(ids) == 0 {
		return OrgMatch{}, false
	}
	return OrgMatch{BrandID: ids[0]}, true
}

func matchBrandCompanyName(d *Directory, org Organization) (OrgMatch, bool) {
	if org.CompanyName == "" {
		return OrgMatch{}, false
	}
	ids := d.brandsByName(org.CompanyName)
	if len(ids) == 0 {
		return OrgMatch{}, false
	}
	return OrgMatch{BrandID: ids[0]}, true
}

// Resolver runs the identity cascades against a Directory. Results are
// memoized per directory version, so it can be shared by parallel workers.
type Resolver struct {
	dir      *Directory
	matchers []OrgMatcher
	logger   *slog.Logger

	mu          sync.Mutex
	memo        *gocache.Cache
	memoVersion uint64
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithLogger sets the logger used for unresolved reports.
func WithLogger(l *slog.Logger) ResolverOption {
	return func(r *Resolver) { r.logger = l }
}

// WithOrgMatchers replaces the organization cascade.
func WithOrgMatchers(m ...OrgMatcher) ResolverOption {
	return func(r *Resolver) { r.matchers = m }
}

// NewResolver builds a resolver over dir.
func NewResolver(dir *Directory, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		dir:      dir,
		matchers: DefaultOrgMatchers(),
		logger:   slog.Default(),
		memo:     gocache.New(30*time.Minute, time.Hour),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Directory returns the directory the resolver matches against.
func (r *Resolver) Directory() *Directory {
	return r.dir
}

// cache returns the memo, flushing it if the directory changed since the
// last call.
func (r *Resolver) cache() *gocache.Cache {
	v := r.dir.Version()
	r.mu.Lock()
	defer r.mu.Unlock()
	if v != r.memoVersion {
		r.memo.Flush()
		r.memoVersion = v
	}
	return r.memo
}

type orgResult struct {
	match OrgMatch
	ok    bool
}

// ResolveOrganization parses raw and runs the cascade. The first matching
// stage wins. ok is false when no stage matched.
func (r *Resolver) ResolveOrganization(raw string) (OrgMatch, bool) {
	memo := r.cache()
	key := "org:" + raw
	if v, found := memo.Get(key); found {
		res := v.(orgResult)
		return res.match, res.ok
	}

	org := ParseOrganization(raw)
	res := orgResult{match: OrgMatch{Parsed: org}}
	for _, m := range r.matchers {
		match, ok := m.Match(r.dir, org)
		if !ok {
			continue
		}
		match.Parsed = org
		match.Method = m.Method
		res = orgResult{match: match, ok: true}
		break
	}
	if !res.ok {
		r.logger.Debug("organization unresolved", "raw", raw, "company", org.CompanyName, "trade_name", org.TradeName)
	}

	memo.SetDefault(key, res)
	return res.match, res.ok
}

type personResult struct {
	match PersonMatch
	ok    bool
}

// ResolvePerson matches one name against canonical names, then aliases.
func (r *Resolver) ResolvePerson(name string) (PersonMatch, bool) {
	memo := r.cache()
	key := "person:" + name
	if v, found := memo.Get(key); found {
		res := v.(personResult)
		return res.match, res.ok
	}

	res := personResult{match: PersonMatch{Raw: name}}
	if id, method, ok := r.dir.personFor(name); ok {
		res = personResult{match: PersonMatch{Raw: name, PersonID: id, Method: method}, ok: true}
	}

	memo.SetDefault(key, res)
	return res.match, res.ok
}

// ResolveCredits splits a multi-person credit string and resolves each
// name. Names that match nothing come back as Unresolved records carrying
// mention as their context.
func (r *Resolver) ResolveCredits(raw, mention string) ([]PersonMatch, []Unresolved) {
	var matches []PersonMatch
	var unresolved []Unresolved
	for _, name := range SplitCredits(raw) {
		m, ok := r.ResolvePerson(name)
		if !ok {
			unresolved = append(unresolved, Unresolved{Kind: "person", Raw: name, Context: mention})
			continue
		}
		matches = append(matches, m)
	}
	return matches, unresolved
}

// String renders a match for logs.
func (m OrgMatch) String() string {
	if m.IncarnationID != "" {
		return fmt.Sprintf("%s/%s via %s", m.BrandID, m.IncarnationID, m.Method)
	}
	return fmt.Sprintf("%s via %s", m.BrandID, m.Method)
}
