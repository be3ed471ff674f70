package pipeline

import (
	"context"
	"fmt"

	"github.com/roach88/pinbase/internal/ir"
	"github.com/roach88/pinbase/internal/store"
)

// Sources names the three origins a run writes claims for.
type Sources struct {
	Machines ir.Source `mapstructure:"machines"` // hierarchical group/machine/alias rows
	Flat     ir.Source `mapstructure:"flat"`     // flat per-title export
	Curated  ir.Source `mapstructure:"curated"`  // editorial overrides
}

// DefaultSources returns the stock source registrations.
func DefaultSources() Sources {
	return Sources{
		Machines: ir.Source{
			ID:        "opdb",
			Name:      "Open Pinball Database",
			Category:  ir.CategoryDatabase,
			Priority:  200,
			URL:       "https://opdb.org",
			OrgScheme: ir.OrgSchemeBrand,
		},
		Flat: ir.Source{
			ID:        "ipdb",
			Name:      "Internet Pinball Database",
			Category:  ir.CategoryDatabase,
			Priority:  100,
			URL:       "https://www.ipdb.org",
			OrgScheme: ir.OrgSchemeIncarnation,
		},
		Curated: ir.Source{
			ID:       "editorial",
			Name:     "Editorial overrides",
			Category: ir.CategoryEditorial,
			Priority: 1000,
		},
	}
}

// ensureSources registers each source. A source that already exists keeps
// its stored priority so operator tuning survives runs.
func ensureSources(ctx context.Context, st *store.Store, srcs Sources) error {
	for _, src := range []ir.Source{srcs.Machines, srcs.Flat, srcs.Curated} {
		existing, err := st.GetSource(ctx, src.ID)
		switch {
		case err == nil:
			src.Priority = existing.Priority
		case !store.IsUnknownSource(err):
			return fmt.Errorf("ensure source %s: %w", src.ID, err)
		}
		if err := st.UpsertSource(ctx, src); err != nil {
			return fmt.Errorf("ensure source %s: %w", src.ID, err)
		}
	}
	return nil
}
