package cli

import (
	"context"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/pinbase/internal/store"
)

// NewSnapshotsCommand creates the snapshots command.
func NewSnapshotsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "snapshots",
		Short:         "List published catalog snapshots",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSnapshots(rootOpts, cmd)
		},
	}
	return cmd
}

func runSnapshots(opts *RootOptions, cmd *cobra.Command) error {
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
	snaps, err := st.ListSnapshots(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list snapshots", err)
	}
	return formatter.Success(snaps, func(w io.Writer) { renderSnapshots(w, snaps) })
}

func renderSnapshots(w io.Writer, snaps []store.SnapshotInfo) {
	rows := make([][]string, 0, len(snaps))
	for _, s := range snaps {
		current := ""
		if s.Current {
			current = "✓"
		}
		digest := s.Digest
		if len(digest) > 12 {
			digest = digest[:12]
		}
		rows = append(rows, []string{
			s.ID,
			s.CreatedAt.Format(time.RFC3339),
			strconv.Itoa(s.EntityCount),
			strconv.Itoa(s.Warnings),
			digest,
			current,
		})
	}
	renderTable(w, []string{"ID", "Created", "Entities", "Warnings", "Digest", "Current"}, rows,
		alignLeft, alignLeft, alignRight, alignRight)
}
