package main

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/rewired-gh/rulesweep/internal/models"
	"github.com/rewired-gh/rulesweep/internal/summary"
)

func newTableWriter(out io.Writer) table.Writer {
	w := table.NewWriter()
	w.SetOutputMirror(out)
	w.SetStyle(table.StyleLight)
	return w
}

// printTable renders a summary table. Undefined statistics show as "n/a".
func printTable(out io.Writer, header []string, records [][]string) {
	w := newTableWriter(out)

	hr := make(table.Row, len(header))
	for i, h := range header {
		hr[i] = h
	}
	w.AppendHeader(hr)

	cfgs := make([]table.ColumnConfig, len(header))
	for i := range header {
		cfgs[i] = table.ColumnConfig{Number: i + 1, Align: text.AlignRight}
	}
	w.SetColumnConfigs(cfgs)

	for _, rec := range records {
		row := make(table.Row, len(rec))
		for i, cell := range rec {
			if cell == "" {
				row[i] = "n/a"
				continue
			}
			row[i] = cell
		}
		w.AppendRow(row)
	}
	w.AppendFooter(table.Row{fmt.Sprintf("%d points", len(records))})
	w.Render()
}

// formatRunsList renders recorded runs, newest first.
func formatRunsList(out io.Writer, runs []models.Run) {
	w := newTableWriter(out)
	w.AppendHeader(table.Row{"ID", "MODE", "STATUS", "DATASET", "POINTS", "DEGRADED", "CREATED"})
	for _, r := range runs {
		id := r.ID
		if len(id) > 8 {
			id = id[:8]
		}
		w.AppendRow(table.Row{
			id,
			r.Mode,
			string(r.Status),
			r.Dataset,
			r.Points,
			r.Degraded,
			r.CreatedAt.Local().Format("2006-01-02 15:04"),
		})
	}
	w.Render()
}

// formatPoints renders the stored rows of one run.
func formatPoints(out io.Writer, points []models.RunPoint) {
	w := newTableWriter(out)
	w.AppendHeader(table.Row{"POINT", "SUPPORT", "CONFIDENCE", "LIFT", "ITEMSETS", "RULES", "CLUSTERS", "LARGEST", "DEGRADED"})
	for _, p := range points {
		degraded := ""
		if p.Degraded {
			degraded = "yes"
		}
		w.AppendRow(table.Row{
			p.Point,
			summary.FormatFloat(p.MinSupport),
			summary.FormatFloat(p.MinConfidence),
			summary.FormatFloat(p.MinLift),
			p.FrequentItemsets,
			p.RulesAfterFilter,
			p.NumClusters,
			p.LargestClusterSize,
			degraded,
		})
	}
	w.Render()
}
