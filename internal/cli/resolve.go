package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/roach88/pinbase/internal/pipeline"
)

// NewResolveCommand creates the resolve command.
func NewResolveCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Re-resolve the ledger and publish",
		Long: `Resolve every entity from the claims already in the ledger, validate the
result and publish it if it changed.

Use after changing source priorities; no source files are read.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolve(rootOpts, cmd)
		},
	}
	return cmd
}

func runResolve(opts *RootOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	lock, err := acquireRunLock(opts)
	if err != nil {
		_ = formatter.Error(ErrCodeLocked, err.Error(), nil)
		return err
	}
	defer lock.Unlock()

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
	res, err := p.Republish(ctx)
	return finishRun(formatter, res, err)
}
