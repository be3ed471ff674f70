package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/pinbase/internal/ingest"
	"github.com/roach88/pinbase/internal/overrides"
	"github.com/roach88/pinbase/internal/pipeline"
	"github.com/roach88/pinbase/internal/store"
	"github.com/roach88/pinbase/internal/testutil"
)

// Harness executes scenario steps against one pipeline.
type Harness struct {
	store    *store.Store
	pipeline *pipeline.Pipeline
}

// Option configures a scenario run.
type Option func(*options)

type options struct {
	logger *slog.Logger
	config pipeline.Config
}

// WithLogger routes pipeline logs to l. Logs are discarded by default.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithConfig replaces the default pipeline configuration.
func WithConfig(cfg pipeline.Config) Option {
	return func(o *options) { o.config = cfg }
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
// Deterministic helpers ensure reproducible results.
//
// Execution flow:
// 1. Create fresh in-memory database and pipeline
// 2. Execute steps in order, recording each outcome
// 3. Evaluate assertions against the outcomes and the final catalog
//
// The returned error is reserved for scenarios that cannot execute, such
// as unreadable input files. A step whose catalog fails validation is an
// outcome, not an error.
func Run(ctx context.Context, scenario *Scenario, opts ...Option) (*Result, error) {
	o := options{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
		config: pipeline.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	clock := testutil.NewDeterministicClock(testutil.DefaultEpoch, 0)
	st.SetClock(clock.Now)

	p, err := pipeline.New(ctx, st, o.config, o.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline: %w", err)
	}
	ids := testutil.NewSequentialIDs("id")
	p.SetClock(clock.Now)
	p.SetIDSource(ids.Next)

	h := &Harness{store: st, pipeline: p}

	result := NewResult()
	for i, step := range scenario.Steps {
		out, hierarchy, err := h.execute(ctx, step)
		if err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", i+1, step.Action(), err)
		}
		out.Step = i + 1
		result.Steps = append(result.Steps, out)
		if hierarchy != "" {
			result.Hierarchy = hierarchy
		}
	}
	result.Catalog = p.Catalog().Current()

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

// execute runs one step. The rendered hierarchy is returned for run steps.
func (h *Harness) execute(ctx context.Context, step Step) (StepOutcome, string, error) {
	out := StepOutcome{Action: step.Action()}

	switch {
	case step.Run != nil:
		in, err := loadInput(step.Run)
		if err != nil {
			return out, "", err
		}
		res, err := h.pipeline.Run(ctx, in)
		if err := recordResult(&out, res, err); err != nil {
			return out, "", err
		}
		var rendered string
		if res != nil && res.Hierarchy != nil {
			rendered = res.Hierarchy.Render()
		}
		return out, rendered, nil

	case step.SetPriority != nil:
		ps := step.SetPriority
		if err := h.store.SetSourcePriority(ctx, ps.Source, ps.Priority); err != nil {
			return out, "", err
		}
		out.Outcome = OutcomeApplied
		out.Detail = fmt.Sprintf("%s=%d", ps.Source, ps.Priority)
		return out, "", nil

	case step.Republish:
		res, err := h.pipeline.Republish(ctx)
		return out, "", recordResult(&out, res, err)
	}
	return out, "", fmt.Errorf("empty step")
}

func recordResult(out *StepOutcome, res *pipeline.Result, err error) error {
	var ce *pipeline.ContractError
	switch {
	case errors.As(err, &ce):
		out.Outcome = OutcomeRejected
		out.Violations = ce.Report.Violations
	case err != nil:
		return err
	case res.Published:
		out.Outcome = OutcomePublished
		out.Snapshot = res.Snapshot.ID
	default:
		out.Outcome = OutcomeUnchanged
	}
	if res != nil {
		out.Unresolved = res.Unresolved
		out.Skipped = res.Skipped
	}
	return nil
}

func loadInput(rs *RunStep) (pipeline.Input, error) {
	var in pipeline.Input
	for _, path := range rs.Rows {
		rows, err := ingest.LoadMachineRows(path)
		if err != nil {
			return in, err
		}
		in.Rows = append(in.Rows, rows...)
	}
	for _, path := range rs.Flat {
		recs, err := ingest.LoadFlatRecords(path)
		if err != nil {
			return in, err
		}
		in.Flat = append(in.Flat, recs...)
	}
	if len(rs.Overrides) > 0 {
		ov, err := overrides.Load(rs.Overrides...)
		if err != nil {
			return in, err
		}
		in.Overrides = ov
	}
	return in, nil
}
