package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/pinbase/internal/pipeline"
)

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the staged catalog without publishing",
		Long: `Check the most recent resolution against the catalog contract: unique
cross-reference IDs, complete parent chains and exactly one default model
per tier, plus the configured warning rules.

Nothing is published. Exits 1 when there are violations.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, cmd)
		},
	}
	return cmd
}

func runValidate(opts *RootOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	st, err := openStore(opts)
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
	report, err := p.Validate(ctx)
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitCommandError, "validation could not run", err)
	}

	render := func(w io.Writer) { renderReport(w, report) }
	if !report.OK() {
		msg := fmt.Sprintf("validation failed with %d violation(s)", len(report.Violations))
		if err := formatter.Failure(ErrCodeContract, msg, report, render); err != nil {
			return err
		}
		// Validation failures = exit code 1
		return NewExitError(ExitFailure, msg)
	}
	return formatter.Success(report, func(w io.Writer) {
		render(w)
		fmt.Fprintln(w, "✓ Catalog is valid")
	})
}
