package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/pinbase/internal/contract"
	"github.com/roach88/pinbase/internal/hierarchy"
	"github.com/roach88/pinbase/internal/identity"
	"github.com/roach88/pinbase/internal/ir"
	"github.com/roach88/pinbase/internal/overrides"
	"github.com/roach88/pinbase/internal/resolve"
	"github.com/roach88/pinbase/internal/store"
)

// Config tunes a pipeline.
type Config struct {
	Sources Sources `mapstructure:"sources"`
	// Workers bounds parallel entity resolution. Zero means one per CPU.
	Workers int `mapstructure:"workers"`
	// Rules are the warning rules evaluated after the structural checks.
	// Nil uses contract.DefaultRules.
	Rules []contract.Rule `mapstructure:"rules"`
}

// DefaultConfig returns the stock configuration.
func DefaultConfig() Config {
	return Config{Sources: DefaultSources()}
}

// Input is the raw material of one run.
type Input struct {
	Rows      []ir.MachineRow
	Flat      []ir.FlatRecord
	Overrides *overrides.File
}

// Result summarizes a run.
type Result struct {
	RunID      string                     `json:"run_id"`
	Hierarchy  *hierarchy.Hierarchy       `json:"-"`
	Entities   map[ir.EntityKind]int      `json:"entities"`
	Claims     map[string]store.BulkStats `json:"claims"`
	Pruned     map[ir.EntityKind]int      `json:"pruned,omitempty"`
	Skipped    []SkippedClaim             `json:"skipped,omitempty"`
	Unresolved []identity.Unresolved      `json:"unresolved"`
	Warnings   []resolve.Warning          `json:"warnings"`
	Report     *contract.Report           `json:"report"`
	Snapshot   *store.SnapshotInfo        `json:"snapshot,omitempty"`
	// Published is false when validation failed or the resolved catalog
	// matched the current snapshot.
	Published bool `json:"published"`
}

// Pipeline reconciles sources into published catalog snapshots.
type Pipeline struct {
	store   *store.Store
	cfg     Config
	logger  *slog.Logger
	catalog *Catalog
	now     func() time.Time
	newID   func() (string, error)
}

// New returns a pipeline over st and loads the current snapshot, if any,
// into its catalog.
func New(ctx context.Context, st *store.Store, cfg Config, logger *slog.Logger) (*Pipeline, error) {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pipeline{
		store:   st,
		cfg:     cfg,
		logger:  logger,
		catalog: &Catalog{},
		now:     func() time.Time { return time.Now().UTC() },
		newID:   newUUID,
	}
	snap, err := st.CurrentSnapshot(ctx)
	switch {
	case err == nil:
		p.catalog.swap(snap)
	case !store.IsNotFound(err):
		return nil, fmt.Errorf("load current snapshot: %w", err)
	}
	return p, nil
}

// SetClock overrides the snapshot timestamp source.
func (p *Pipeline) SetClock(now func() time.Time) {
	p.now = now
}

// SetIDSource overrides how run and snapshot IDs are generated.
func (p *Pipeline) SetIDSource(next func() string) {
	p.newID = func() (string, error) { return next(), nil }
}

func newUUID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// Catalog returns the catalog the pipeline publishes into.
func (p *Pipeline) Catalog() *Catalog {
	return p.catalog
}

// Run performs a full reconciliation pass over in.
//
// Structural entities and claims are committed as they are produced; only
// the publish step is gated on validation. When validation fails Run
// returns the result together with a *ContractError and the previous
// snapshot stays current.
func (p *Pipeline) Run(ctx context.Context, in Input) (*Result, error) {
	runID, err := p.newID()
	if err != nil {
		return nil, fmt.Errorf("run id: %w", err)
	}
	logger := p.logger.With("run", runID)
	logger.Info("run started", "rows", len(in.Rows), "flat_records", len(in.Flat))

	res := &Result{
		RunID:    runID,
		Entities: make(map[ir.EntityKind]int),
		Claims:   make(map[string]store.BulkStats),
		Pruned:   make(map[ir.EntityKind]int),
	}

	if err := ensureSources(ctx, p.store, p.cfg.Sources); err != nil {
		return nil, err
	}

	supplied := in.Overrides != nil
	if in.Overrides, err = p.curatedOverrides(ctx, in.Overrides); err != nil {
		return nil, err
	}

	dir, err := buildDirectory(ctx, p.store, in.Overrides, logger)
	if err != nil {
		return nil, err
	}
	ids := identity.NewResolver(dir, identity.WithLogger(logger))

	corp, corpUnresolved, err := registerCorporateEntities(dir, ids, in.Flat, logger)
	if err != nil {
		return nil, err
	}

	var pins map[string]string
	if in.Overrides != nil {
		if pins, err = in.Overrides.PinMap(); err != nil {
			return nil, err
		}
	}
	h, err := hierarchy.NewDeriver(ids, logger).Derive(hierarchy.Input{Rows: in.Rows, Flat: in.Flat, Pins: pins})
	if err != nil {
		return nil, fmt.Errorf("derive hierarchy: %w", err)
	}
	res.Hierarchy = h
	if supplied {
		if err := p.saveOverrides(ctx, in.Overrides); err != nil {
			return nil, err
		}
	}

	entities := append(h.Entities(), organizationEntities(dir, corp)...)
	if err := p.store.UpsertEntities(ctx, entities); err != nil {
		return nil, fmt.Errorf("write entities: %w", err)
	}
	for _, e := range entities {
		res.Entities[e.Ref.Kind]++
	}
	for _, kind := range []ir.EntityKind{ir.KindTitle, ir.KindProduction, ir.KindTier, ir.KindModel} {
		n, err := p.store.PruneEntities(ctx, kind, h.IDs(kind))
		if err != nil {
			return nil, fmt.Errorf("prune %s: %w", kind, err)
		}
		if n > 0 {
			res.Pruned[kind] = n
			logger.Info("pruned stale entities", "kind", kind, "count", n)
		}
	}

	flat, creditUnresolved := flatClaims(h, in.Flat, corp, ids)
	curated, skipped, err := p.curatedClaims(ctx, in.Overrides)
	if err != nil {
		return nil, err
	}
	res.Skipped = skipped
	for _, batch := range []struct {
		source ir.Source
		claims []ir.PendingClaim
	}{
		{p.cfg.Sources.Machines, machineClaims(h, in.Rows, dir)},
		{p.cfg.Sources.Flat, flat},
		{p.cfg.Sources.Curated, curated},
	} {
		stats, err := p.store.BulkAssert(ctx, batch.source.ID, batch.claims)
		if err != nil {
			return nil, fmt.Errorf("assert %s claims: %w", batch.source.ID, err)
		}
		res.Claims[batch.source.ID] = stats
		logger.Info("asserted claims",
			"source", batch.source.ID,
			"created", stats.Created,
			"superseded", stats.Superseded,
			"unchanged", stats.Unchanged,
		)
	}

	res.Unresolved = mergeUnresolved(h.Unresolved, corpUnresolved, creditUnresolved)
	for _, u := range res.Unresolved {
		logger.Warn("unresolved reference", "kind", u.Kind, "raw", u.Raw, "context", u.Context)
	}

	if err := p.resolveAndPublish(ctx, ids, res, logger); err != nil {
		return res, err
	}
	logger.Info("run finished", "published", res.Published)
	return res, nil
}

// curatedOverrides returns ov, or without it the overrides stored by the
// last run that carried a file, so the directory a resolution sees does
// not depend on how it was started.
func (p *Pipeline) curatedOverrides(ctx context.Context, ov *overrides.File) (*overrides.File, error) {
	if ov != nil {
		return ov, nil
	}
	doc, err := p.store.LoadOverrides(ctx)
	if store.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	stored, err := overrides.Parse("stored overrides", doc)
	if err != nil {
		return nil, fmt.Errorf("stored overrides: %w", err)
	}
	return stored, nil
}

// saveOverrides makes ov the overrides in force for later runs.
func (p *Pipeline) saveOverrides(ctx context.Context, ov *overrides.File) error {
	doc, err := ov.Marshal()
	if err != nil {
		return err
	}
	return p.store.SaveOverrides(ctx, doc)
}

// curatedClaims returns the override claims aimed at entities the ledger
// knows. The rest are reported and skipped.
func (p *Pipeline) curatedClaims(ctx context.Context, ov *overrides.File) ([]ir.PendingClaim, []SkippedClaim, error) {
	if ov == nil {
		return nil, nil, nil
	}
	pending, err := ov.PendingClaims()
	if err != nil {
		return nil, nil, fmt.Errorf("curated claims: %w", err)
	}
	all, err := p.store.ListEntities(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("curated claims: %w", err)
	}
	known := make(map[ir.EntityRef]bool, len(all))
	for _, e := range all {
		known[e.Ref] = true
	}
	keep, skipped := filterKnown(pending, known)
	for _, sk := range skipped {
		p.logger.Warn("skipping curated claim", "entity", sk.Entity.String(), "field", sk.Field, "reason", sk.Reason)
	}
	return keep, skipped, nil
}

// Republish resolves the current ledger again and publishes the result if
// it validates and differs from the current snapshot. It is used after
// source priorities change.
func (p *Pipeline) Republish(ctx context.Context) (*Result, error) {
	runID, err := p.newID()
	if err != nil {
		return nil, fmt.Errorf("run id: %w", err)
	}
	logger := p.logger.With("run", runID)
	ov, err := p.curatedOverrides(ctx, nil)
	if err != nil {
		return nil, err
	}
	dir, err := buildDirectory(ctx, p.store, ov, logger)
	if err != nil {
		return nil, err
	}
	res := &Result{RunID: runID, Unresolved: []identity.Unresolved{}}
	if err := p.resolveAndPublish(ctx, identity.NewResolver(dir, identity.WithLogger(logger)), res, logger); err != nil {
		return res, err
	}
	return res, nil
}

// Validate checks the staged resolution without publishing it.
func (p *Pipeline) Validate(ctx context.Context) (*contract.Report, error) {
	entities, err := p.store.ListResolved(ctx)
	if err != nil {
		return nil, err
	}
	v, err := contract.NewValidator(p.cfg.Rules, p.logger)
	if err != nil {
		return nil, err
	}
	return v.Validate(entities)
}

// resolveAndPublish resolves every entity, validates the result and
// publishes it as a new snapshot. Publishing is skipped when the catalog
// is identical to the current snapshot.
func (p *Pipeline) resolveAndPublish(ctx context.Context, ids *identity.Resolver, res *Result, logger *slog.Logger) error {
	resolved, err := resolve.New(p.store, ids,
		resolve.WithWorkers(p.cfg.Workers),
		resolve.WithLogger(logger),
	).ResolveAll(ctx)
	if err != nil {
		return err
	}
	res.Warnings = resolved.Warnings

	v, err := contract.NewValidator(p.cfg.Rules, logger)
	if err != nil {
		return err
	}
	report, err := v.Validate(resolved.Entities)
	if err != nil {
		return err
	}
	res.Report = report
	if !report.OK() {
		logger.Error("catalog failed validation", "violations", len(report.Violations))
		return &ContractError{Report: report}
	}

	digest, err := ir.Digest(ir.DomainSnapshot, resolved.Entities)
	if err != nil {
		return fmt.Errorf("snapshot digest: %w", err)
	}
	if cur := p.catalog.Current(); cur != nil && cur.Digest == digest {
		logger.Info("catalog unchanged", "snapshot", cur.ID)
		return nil
	}

	id, err := p.newID()
	if err != nil {
		return fmt.Errorf("snapshot id: %w", err)
	}
	snap := store.Snapshot{
		ID:        id,
		Digest:    digest,
		Version:   ir.SnapshotVersion,
		Warnings:  len(resolved.Warnings) + len(report.Warnings),
		CreatedAt: p.now(),
		Entities:  resolved.Entities,
	}
	if err := p.store.PublishSnapshot(ctx, snap); err != nil {
		return err
	}
	p.catalog.swap(snap)

	res.Published = true
	res.Snapshot = &store.SnapshotInfo{
		ID:          snap.ID,
		Digest:      snap.Digest,
		Version:     snap.Version,
		EntityCount: len(snap.Entities),
		Warnings:    snap.Warnings,
		CreatedAt:   snap.CreatedAt,
		Current:     true,
	}
	logger.Info("published snapshot", "snapshot", snap.ID, "entities", len(snap.Entities), "digest", digest)
	return nil
}
