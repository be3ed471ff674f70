package cli

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/roach88/pinbase/internal/contract"
	"github.com/roach88/pinbase/internal/ir"
	"github.com/roach88/pinbase/internal/pipeline"
)

// renderReport prints violations, then rule warnings.
func renderReport(w io.Writer, r *contract.Report) {
	if r == nil {
		return
	}
	if len(r.Violations) > 0 {
		rows := make([][]string, 0, len(r.Violations))
		for _, v := range r.Violations {
			rows = append(rows, []string{string(v.Code), v.Entity.String(), v.Field, v.Message})
		}
		fmt.Fprintf(w, "Violations (%d)\n", len(r.Violations))
		renderTable(w, []string{"Code", "Entity", "Field", "Message"}, rows)
	}
	if len(r.Warnings) > 0 {
		rows := make([][]string, 0, len(r.Warnings))
		for _, v := range r.Warnings {
			rows = append(rows, []string{v.Rule, v.Entity.String(), v.Field, v.Message})
		}
		fmt.Fprintf(w, "Warnings (%d)\n", len(r.Warnings))
		renderTable(w, []string{"Rule", "Entity", "Field", "Message"}, rows)
	}
}

// renderResult prints a run summary.
func renderResult(w io.Writer, res *pipeline.Result) {
	fmt.Fprintf(w, "Run %s\n", res.RunID)

	if len(res.Entities) > 0 {
		rows := [][]string{}
		for _, kind := range slices.Sorted(maps.Keys(res.Entities)) {
			rows = append(rows, []string{string(kind), strconv.Itoa(res.Entities[kind]), strconv.Itoa(res.Pruned[kind])})
		}
		renderTable(w, []string{"Kind", "Entities", "Pruned"}, rows, alignLeft, alignRight, alignRight)
	}

	if len(res.Claims) > 0 {
		rows := [][]string{}
		for _, src := range slices.Sorted(maps.Keys(res.Claims)) {
			s := res.Claims[src]
			rows = append(rows, []string{
				src,
				strconv.Itoa(s.Created),
				strconv.Itoa(s.Superseded),
				strconv.Itoa(s.Unchanged),
				strconv.Itoa(s.DuplicatesRemoved),
			})
		}
		renderTable(w, []string{"Source", "Created", "Superseded", "Unchanged", "Duplicates"}, rows,
			alignLeft, alignRight, alignRight, alignRight, alignRight)
	}

	if len(res.Unresolved) > 0 {
		rows := make([][]string, 0, len(res.Unresolved))
		for _, u := range res.Unresolved {
			rows = append(rows, []string{u.Kind, u.Raw, u.Context})
		}
		fmt.Fprintf(w, "Unresolved (%d)\n", len(res.Unresolved))
		renderTable(w, []string{"Kind", "Raw", "Context"}, rows)
	}

	if len(res.Skipped) > 0 {
		rows := make([][]string, 0, len(res.Skipped))
		for _, s := range res.Skipped {
			rows = append(rows, []string{s.Entity.String(), s.Field, s.Reason})
		}
		fmt.Fprintf(w, "Skipped curated claims (%d)\n", len(res.Skipped))
		renderTable(w, []string{"Entity", "Field", "Reason"}, rows)
	}

	if len(res.Warnings) > 0 {
		rows := make([][]string, 0, len(res.Warnings))
		for _, wn := range res.Warnings {
			rows = append(rows, []string{wn.Entity.String(), wn.Field, wn.Source, wn.Message})
		}
		fmt.Fprintf(w, "Resolution warnings (%d)\n", len(res.Warnings))
		renderTable(w, []string{"Entity", "Field", "Source", "Message"}, rows)
	}

	renderReport(w, res.Report)

	switch {
	case res.Published:
		fmt.Fprintf(w, "✓ Published snapshot %s (%d entities)\n", res.Snapshot.ID, res.Snapshot.EntityCount)
	case res.Report != nil && res.Report.OK():
		fmt.Fprintln(w, "✓ Catalog unchanged; nothing published")
	}
}

// formatValue renders a claim or field value for tables.
func formatValue(v ir.IRValue) string {
	if s, ok := ir.Text(v); ok {
		return s
	}
	data, err := ir.MarshalIRValue(v)
	if err != nil {
		return "?"
	}
	return strings.TrimSpace(string(data))
}
