package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/pinbase/internal/hierarchy"
	"github.com/roach88/pinbase/internal/ingest"
	"github.com/roach88/pinbase/internal/overrides"
	"github.com/roach88/pinbase/internal/pipeline"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Rows      []string
	Flat      []string
	Overrides []string
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Reconcile source files and publish a catalog",
		Long: `Run a full reconciliation pass.

Reads hierarchical machine rows and flat export records (JSON or YAML),
applies curated overrides, derives the hierarchy, records every fact as a
claim, resolves and validates the catalog and publishes a new snapshot if
it changed. A catalog that fails validation is not published and the
previous snapshot stays current.

Only one run may write to a database at a time.

Example:
  pinbase run --db ./pinbase.db --rows opdb.json --flat ipdb.json --overrides curated.yaml`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(opts, cmd)
		},
	}

	cmd.Flags().StringSliceVar(&opts.Rows, "rows", nil, "hierarchical machine row file (repeatable)")
	cmd.Flags().StringSliceVar(&opts.Flat, "flat", nil, "flat export record file (repeatable)")
	cmd.Flags().StringSliceVar(&opts.Overrides, "overrides", nil, "curated override file (repeatable)")

	return cmd
}

func runPipeline(opts *RunOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	if len(opts.Rows) == 0 && len(opts.Flat) == 0 {
		return NewExitError(ExitCommandError, "nothing to run: pass --rows and/or --flat")
	}

	in, err := loadInput(opts)
	if err != nil {
		_ = formatter.Error(ErrCodeInput, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load input", err)
	}
	formatter.VerboseLog("Loaded %d rows, %d flat records", len(in.Rows), len(in.Flat))

	lock, err := acquireRunLock(opts.RootOptions)
	if err != nil {
		_ = formatter.Error(ErrCodeLocked, err.Error(), nil)
		return err
	}
	defer lock.Unlock()

	st, err := openStore(opts.RootOptions)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	p, err := pipeline.New(ctx, st, opts.Config.Pipeline(), opts.logger(cmd.ErrOrStderr()))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to start pipeline", err)
	}

	res, err := p.Run(ctx, in)
	return finishRun(formatter, res, err)
}

// finishRun prints a run or republish result and maps its error to an exit
// code.
func finishRun(formatter *OutputFormatter, res *pipeline.Result, err error) error {
	var ce *pipeline.ContractError
	var de *hierarchy.DerivationError
	switch {
	case errors.As(err, &ce):
		msg := fmt.Sprintf("catalog failed validation with %d violation(s)", len(ce.Report.Violations))
		if ferr := formatter.Failure(ErrCodeContract, msg, res, func(w io.Writer) { renderResult(w, res) }); ferr != nil {
			return ferr
		}
		return NewExitError(ExitFailure, msg)
	case errors.As(err, &de):
		_ = formatter.Error(ErrCodeDerivation, de.Error(), de.Rows)
		return WrapExitError(ExitCommandError, "failed to derive hierarchy", err)
	case err != nil:
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitCommandError, "run failed", err)
	}
	return formatter.Success(res, func(w io.Writer) { renderResult(w, res) })
}

func loadInput(opts *RunOptions) (pipeline.Input, error) {
	var in pipeline.Input
	for _, path := range opts.Rows {
		rows, err := ingest.LoadMachineRows(path)
		if err != nil {
			return in, err
		}
		in.Rows = append(in.Rows, rows...)
	}
	for _, path := range opts.Flat {
		recs, err := ingest.LoadFlatRecords(path)
		if err != nil {
			return in, err
		}
		in.Flat = append(in.Flat, recs...)
	}
	if len(opts.Overrides) > 0 {
		ov, err := overrides.Load(opts.Overrides...)
		if err != nil {
			return in, err
		}
		in.Overrides = ov
	}
	return in, nil
}
