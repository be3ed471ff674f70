package resolve

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/pinbase/internal/identity"
	"github.com/roach88/pinbase/internal/ir"
	"github.com/roach88/pinbase/internal/store"
)

// Warning is a non-fatal resolution problem on one field.
type Warning struct {
	Entity  ir.EntityRef `json:"entity"`
	Field   string       `json:"field"`
	Source  string       `json:"source,omitempty"`
	Value   string       `json:"value,omitempty"` // raw JSON of the rejected value
	Message string       `json:"message"`
}

// Result is the output of a ResolveAll pass.
type Result struct {
	Entities []ir.ResolvedEntity `json:"entities"`
	Warnings []Warning           `json:"warnings"`
}

// Resolver computes resolved entities from active claims.
type Resolver struct {
	store   *store.Store
	ids     *identity.Resolver
	schemas map[ir.EntityKind]Schema
	workers int
	logger  *slog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithWorkers bounds the number of entities resolved concurrently.
func WithWorkers(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.workers = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithSchemas replaces the column declarations.
func WithSchemas(s map[ir.EntityKind]Schema) Option {
	return func(r *Resolver) { r.schemas = s }
}

// New returns a resolver reading from st and matching organizations and
// persons through ids.
func New(st *store.Store, ids *identity.Resolver, opts ...Option) *Resolver {
	r := &Resolver{
		store:   st,
		ids:     ids,
		schemas: DefaultSchemas(),
		workers: runtime.GOMAXPROCS(0),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve computes one entity from its active claims without writing.
func (r *Resolver) Resolve(ctx context.Context, ref ir.EntityRef) (ir.ResolvedEntity, []Warning, error) {
	e, err := r.store.GetEntity(ctx, ref)
	if err != nil {
		return ir.ResolvedEntity{}, nil, err
	}
	claims, err := r.store.Active(ctx, ref)
	if err != nil {
		return ir.ResolvedEntity{}, nil, err
	}
	out, warnings := r.resolveEntity(e, claims, nil)
	return out, warnings, nil
}

// ResolveAll recomputes every entity and replaces the staged resolved rows.
// Organization references are resolved up front so workers never write to
// the directory. Brands that exist in the directory but not in the ledger, including ones
// created while resolving organization references, get manufacturer
// entities first.
func (r *Resolver) ResolveAll(ctx context.Context) (*Result, error) {
	entities, err := r.store.ListEntities(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve all: %w", err)
	}
	claims, err := r.store.ActiveAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve all: %w", err)
	}

	orgs := r.resolveOrgRefs(entities, claims)

	out := make([]ir.ResolvedEntity, len(entities))
	warns := make([][]Warning, len(entities))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for i := range entities {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out[i], warns[i] = r.resolveEntity(entities[i], claims[entities[i].Ref], orgs)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("resolve all: %w", err)
	}

	missing, err := r.ensureBrandEntities(ctx, entities)
	if err != nil {
		return nil, fmt.Errorf("resolve all: %w", err)
	}
	for _, e := range missing {
		res, _ := r.resolveEntity(e, nil, orgs)
		out = append(out, res)
	}

	slices.SortFunc(out, func(a, b ir.ResolvedEntity) int {
		return cmp.Or(strings.Compare(string(a.Ref.Kind), string(b.Ref.Kind)), strings.Compare(a.Ref.ID, b.Ref.ID))
	})
	res := &Result{Entities: out, Warnings: []Warning{}}
	for _, w := range warns {
		res.Warnings = append(res.Warnings, w...)
	}
	slices.SortStableFunc(res.Warnings, func(a, b Warning) int {
		return cmp.Or(
			strings.Compare(string(a.Entity.Kind), string(b.Entity.Kind)),
			strings.Compare(a.Entity.ID, b.Entity.ID),
			strings.Compare(a.Field, b.Field),
		)
	})

	if err := r.store.ReplaceResolved(ctx, out); err != nil {
		return nil, err
	}
	r.logger.Info("resolved catalog", "entities", len(out), "warnings", len(res.Warnings))
	return res, nil
}

// ensureBrandEntities writes a manufacturer entity for every directory
// brand the ledger does not know yet and returns the new entities.
func (r *Resolver) ensureBrandEntities(ctx context.Context, known []ir.Entity) ([]ir.Entity, error) {
	have := make(map[string]bool)
	for _, e := range known {
		if e.Ref.Kind == ir.KindManufacturer {
			have[e.Ref.ID] = true
		}
	}
	var missing []ir.Entity
	for _, b := range r.ids.Directory().Brands() {
		if !have[b.ID] {
			missing = append(missing, ir.Entity{Ref: ir.Ref(ir.KindManufacturer, b.ID)})
		}
	}
	if len(missing) == 0 {
		return nil, nil
	}
	if err := r.store.UpsertEntities(ctx, missing); err != nil {
		return nil, err
	}
	return missing, nil
}

// winners returns the winning claim per claim key: highest priority, then
// highest seq. The input order does not matter.
func winners(claims []ir.RankedClaim) []ir.RankedClaim {
	sorted := slices.Clone(claims)
	slices.SortFunc(sorted, func(a, b ir.RankedClaim) int {
		return cmp.Or(
			strings.Compare(a.ClaimKey, b.ClaimKey),
			cmp.Compare(b.Priority, a.Priority),
			cmp.Compare(b.Seq, a.Seq),
		)
	})
	out := make([]ir.RankedClaim, 0, len(sorted))
	for i, c := range sorted {
		if i > 0 && sorted[i-1].ClaimKey == c.ClaimKey {
			continue
		}
		out = append(out, c)
	}
	return out
}

func (r *Resolver) resolveEntity(e ir.Entity, claims []ir.RankedClaim, orgs orgTable) (ir.ResolvedEntity, []Warning) {
	out := ir.ResolvedEntity{
		Ref:       e.Ref,
		Parent:    e.Parent,
		Group:     e.Group,
		IsDefault: e.IsDefault,
		Fields:    ir.IRObject{},
		Extra:     ir.IRObject{},
	}
	schema := r.schemas[e.Ref.Kind]
	var warnings []Warning

	for _, c := range winners(claims) {
		if ir.IsRelationship(c.Field) {
			credit, ok, w := r.relationship(e.Ref, c)
			if w != nil {
				warnings = append(warnings, *w)
			}
			if ok {
				out.Credits = append(out.Credits, credit)
			}
			continue
		}
		if ir.IsEmpty(c.Value) {
			continue
		}
		ft, modeled := schema[c.Field]
		if !modeled {
			out.Extra[c.Field] = c.Value
			continue
		}
		v, err := r.coerce(ft, c, orgs)
		if err != nil {
			raw, _ := ir.MarshalIRValue(c.Value)
			r.logger.Warn("coercion failed",
				"entity", e.Ref.String(),
				"field", c.Field,
				"source", c.SourceID,
				"error", err,
			)
			warnings = append(warnings, Warning{
				Entity:  e.Ref,
				Field:   c.Field,
				Source:  c.SourceID,
				Value:   string(raw),
				Message: err.Error(),
			})
			continue
		}
		out.Fields[c.Field] = v
	}

	r.fillFromDirectory(&out)
	slices.SortFunc(out.Credits, func(a, b ir.Credit) int {
		return cmp.Or(strings.Compare(a.Person, b.Person), strings.Compare(a.Role, b.Role))
	})
	return out, warnings
}

// relationship turns a winning credit claim into a Credit. Retractions
// (exists=false) and unknown persons produce no credit.
func (r *Resolver) relationship(ref ir.EntityRef, c ir.RankedClaim) (ir.Credit, bool, *Warning) {
	obj, ok := c.Value.(ir.IRObject)
	if !ok {
		return ir.Credit{}, false, &Warning{Entity: ref, Field: c.ClaimKey, Source: c.SourceID, Message: "relationship value is not an object"}
	}
	if exists, ok := obj["exists"].(ir.IRBool); ok && !bool(exists) {
		return ir.Credit{}, false, nil
	}
	person, _ := ir.Text(obj["person"])
	role, _ := ir.Text(obj["role"])
	if person == "" || role == "" {
		return ir.Credit{}, false, &Warning{Entity: ref, Field: c.ClaimKey, Source: c.SourceID, Message: "credit is missing person or role"}
	}
	if _, known := r.ids.Directory().Person(person); !known {
		r.logger.Warn("credit names unknown person", "entity", ref.String(), "person", person, "role", role)
		return ir.Credit{}, false, &Warning{Entity: ref, Field: c.ClaimKey, Source: c.SourceID, Message: fmt.Sprintf("unknown person %q", person)}
	}
	return ir.Credit{Person: person, Role: role}, true, nil
}

// fillFromDirectory supplies names for organizations and persons that no
// source has claimed a name for.
func (r *Resolver) fillFromDirectory(out *ir.ResolvedEntity) {
	if _, ok := out.Fields["name"]; ok {
		return
	}
	dir := r.ids.Directory()
	switch out.Ref.Kind {
	case ir.KindManufacturer:
		if b, ok := dir.Brand(out.Ref.ID); ok && b.Name != "" {
			out.Fields["name"] = ir.IRString(b.Name)
			if _, ok := out.Fields["trade_name"]; !ok && b.TradeName != "" {
				out.Fields["trade_name"] = ir.IRString(b.TradeName)
			}
		}
	case ir.KindPerson:
		if p, ok := dir.Person(out.Ref.ID); ok && p.Name != "" {
			out.Fields["name"] = ir.IRString(p.Name)
		}
	}
}
