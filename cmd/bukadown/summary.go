package cmd

import (
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/kerbaras/bukadown/pkg/services"
)

// maxListedProblems caps how many failures are listed after the summary.
const maxListedProblems = 20

func newTable() table.Writer {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	return tw
}

// renderSummary prints the totals of a run followed by every problem it
// hit, up to maxListedProblems.
func renderSummary(w io.Writer, r *services.Report) {
	tw := newTable()
	tw.AppendHeader(table.Row{"Step", "Count", "Detail"})
	tw.AppendRow(table.Row{"Copied", r.Copied, humanize.Bytes(uint64(r.CopiedBytes))})
	tw.AppendRow(table.Row{"Containers", r.Containers, humanize.Bytes(uint64(r.Bytes))})
	tw.AppendRow(table.Row{"View files", r.Views, ""})
	tw.AppendRow(table.Row{"Pages decoded", r.Decoded, fmt.Sprintf("%d queued", r.Queued)})
	tw.AppendRow(table.Row{"Decode failures", len(r.Failures), ""})
	tw.AppendRow(table.Row{"Organized", len(r.Renames) - r.RenameFailures(), fmt.Sprintf("%d comics, %d chapters", r.Comics, r.Chapters)})
	tw.AppendRow(table.Row{"Rename failures", r.RenameFailures(), ""})
	tw.AppendRow(table.Row{"Skipped", len(r.Skipped), ""})
	tw.AppendRow(table.Row{"Not removed", len(r.Cleanup), ""})
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight, AlignHeader: text.AlignLeft},
	})
	tw.SetCaption("%s in %s", r.Output, r.Duration.Round(time.Millisecond))
	fmt.Fprintln(w, tw.Render())

	problems := problemRows(r)
	if len(problems) == 0 {
		return
	}
	pt := newTable()
	pt.AppendHeader(table.Row{"Problem", "Path", "Error"})
	for i, row := range problems {
		if i == maxListedProblems {
			pt.AppendFooter(table.Row{"", strconv.Itoa(len(problems)-maxListedProblems) + " more", ""})
			break
		}
		pt.AppendRow(row)
	}
	fmt.Fprintln(w, pt.Render())
}

func problemRows(r *services.Report) []table.Row {
	var rows []table.Row
	for _, f := range r.Failures {
		rows = append(rows, table.Row{"decode", f.Dest, f.Err})
	}
	for _, rn := range r.Renames {
		if rn.Err != nil {
			rows = append(rows, table.Row{"rename", rn.From, rn.Err})
		}
	}
	for _, s := range r.Cleanup {
		rows = append(rows, table.Row{"remove", s.Path, s.Err})
	}
	for _, s := range r.Skipped {
		rows = append(rows, table.Row{"skip", filepath.Base(s.Path), s.Err})
	}
	return rows
}
