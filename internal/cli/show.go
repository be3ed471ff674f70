package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/pinbase/internal/ir"
	"github.com/roach88/pinbase/internal/pipeline"
)

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <kind> <id>",
		Short: "Show an entity from the published catalog",
		Long: `Print one resolved entity from the current published snapshot.

Example:
  pinbase show model G1-M1`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(rootOpts, cmd, ir.Ref(ir.EntityKind(args[0]), args[1]))
		},
	}
	return cmd
}

func runShow(opts *RootOptions, cmd *cobra.Command, ref ir.EntityRef) error {
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
		return WrapExitError(ExitCommandError, "failed to load catalog", err)
	}
	cur := p.Catalog().Current()
	if cur == nil {
		_ = formatter.Error(ErrCodeNotFound, "no catalog has been published", nil)
		return NewExitError(ExitCommandError, "no catalog has been published")
	}
	e, ok := cur.Lookup(ref)
	if !ok {
		_ = formatter.Error(ErrCodeNotFound, fmt.Sprintf("no entity %s in snapshot %s", ref, cur.ID), nil)
		return NewExitError(ExitCommandError, fmt.Sprintf("no entity %s", ref))
	}
	return formatter.Success(e, func(w io.Writer) { renderEntity(w, e) })
}

func renderEntity(w io.Writer, e ir.ResolvedEntity) {
	fmt.Fprintln(w, e.Ref.String())
	if e.Parent != nil {
		fmt.Fprintf(w, "  parent: %s\n", e.Parent)
	}
	if e.IsDefault {
		fmt.Fprintln(w, "  default")
	}
	rows := [][]string{}
	for _, k := range e.Fields.SortedKeys() {
		rows = append(rows, []string{k, formatValue(e.Fields[k])})
	}
	for _, k := range e.Extra.SortedKeys() {
		rows = append(rows, []string{k + " (extra)", formatValue(e.Extra[k])})
	}
	for _, c := range e.Credits {
		rows = append(rows, []string{"credit", c.Role + ": " + c.Person})
	}
	renderTable(w, []string{"Field", "Value"}, rows)
}
