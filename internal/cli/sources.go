package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/pinbase/internal/ir"
	"github.com/roach88/pinbase/internal/store"
)

// NewSourcesCommand creates the sources command group.
func NewSourcesCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sources",
		Short: "List and tune data sources",
		Long: `Manage the registered data sources.

A source's priority decides conflicts: a claim from a higher-priority
source always beats one from a lower-priority source. Stored priorities
survive later runs; run "pinbase resolve" to republish after a change.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(&cobra.Command{
		Use:           "list",
		Short:         "List sources by priority",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSourcesList(rootOpts, cmd)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:           "set-priority <id> <priority>",
		Short:         "Change a source's priority",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			priority, err := strconv.Atoi(args[1])
			if err != nil {
				return WrapExitError(ExitCommandError, "priority must be an integer", err)
			}
			return runSetPriority(rootOpts, cmd, args[0], priority)
		},
	})
	return cmd
}

func runSourcesList(opts *RootOptions, cmd *cobra.Command) error {
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
	sources, err := st.ListSources(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list sources", err)
	}
	return formatter.Success(sources, func(w io.Writer) { renderSources(w, sources) })
}

func runSetPriority(opts *RootOptions, cmd *cobra.Command, id string, priority int) error {
	formatter := opts.formatter(cmd)

	// Rankings must not change under a run in progress
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
	if err := st.SetSourcePriority(ctx, id, priority); err != nil {
		if store.IsUnknownSource(err) {
			_ = formatter.Error(ErrCodeNotFound, fmt.Sprintf("no source %q", id), nil)
			return WrapExitError(ExitCommandError, "unknown source", err)
		}
		return WrapExitError(ExitCommandError, "failed to set priority", err)
	}
	src, err := st.GetSource(ctx, id)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read source", err)
	}
	return formatter.Success(src, func(w io.Writer) {
		fmt.Fprintf(w, "✓ %s priority is now %d\n", src.ID, src.Priority)
	})
}

func renderSources(w io.Writer, sources []ir.Source) {
	rows := make([][]string, 0, len(sources))
	for _, s := range sources {
		rows = append(rows, []string{s.ID, s.Name, string(s.Category), strconv.Itoa(s.Priority), string(s.OrgScheme)})
	}
	renderTable(w, []string{"ID", "Name", "Category", "Priority", "Org scheme"}, rows,
		alignLeft, alignLeft, alignLeft, alignRight)
}
