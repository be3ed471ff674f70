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

// HistoryResult is the JSON payload of the history command.
type HistoryResult struct {
	Entity   ir.EntityRef        `json:"entity"`
	Field    string              `json:"field,omitempty"`
	Activity []store.KeyActivity `json:"activity"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history <kind> <id> [field]",
		Short: "Show the claim history of an entity",
		Long: `Show every claim ever made about an entity, newest first, grouped by
claim key. Superseded claims are kept; each key is flagged when its active
claims from different sources disagree.

Examples:
  pinbase history model G1-M1
  pinbase history model G1-M1 year --format json`,
		Args:          cobra.RangeArgs(2, 3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			field := ""
			if len(args) == 3 {
				field = args[2]
			}
			return runHistory(rootOpts, cmd, ir.Ref(ir.EntityKind(args[0]), args[1]), field)
		},
	}
	return cmd
}

func runHistory(opts *RootOptions, cmd *cobra.Command, ref ir.EntityRef, field string) error {
	formatter := opts.formatter(cmd)
	if !ir.ValidKinds[ref.Kind] {
		_ = formatter.Error(ErrCodeInput, fmt.Sprintf("unknown entity kind %q", ref.Kind), nil)
		return NewExitError(ExitCommandError, fmt.Sprintf("unknown entity kind %q", ref.Kind))
	}

	st, err := openStore(opts)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if _, err := st.GetEntity(ctx, ref); err != nil {
		if store.IsNotFound(err) {
			_ = formatter.Error(ErrCodeNotFound, fmt.Sprintf("no entity %s", ref), nil)
			return WrapExitError(ExitCommandError, "entity not found", err)
		}
		return WrapExitError(ExitCommandError, "failed to read entity", err)
	}

	activity, err := st.Activity(ctx, ref)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read history", err)
	}
	if field != "" {
		kept := activity[:0]
		for _, a := range activity {
			if a.Field == field {
				kept = append(kept, a)
			}
		}
		activity = kept
	}

	res := HistoryResult{Entity: ref, Field: field, Activity: activity}
	return formatter.Success(res, func(w io.Writer) { renderHistory(w, res) })
}

func renderHistory(w io.Writer, res HistoryResult) {
	if len(res.Activity) == 0 {
		fmt.Fprintf(w, "No claims for %s\n", res.Entity)
		return
	}
	rows := [][]string{}
	for _, a := range res.Activity {
		for i, c := range a.Claims {
			key, status := "", ""
			if i == 0 {
				key, status = a.Key, a.Status()
			}
			active := ""
			if c.Active {
				active = "✓"
			}
			rows = append(rows, []string{
				key,
				status,
				strconv.FormatInt(c.Seq, 10),
				c.SourceID,
				formatValue(c.Value),
				active,
				c.Citation,
			})
		}
	}
	fmt.Fprintf(w, "History of %s\n", res.Entity)
	renderTable(w, []string{"Key", "Status", "Seq", "Source", "Value", "Active", "Citation"}, rows,
		alignLeft, alignLeft, alignRight)
}
