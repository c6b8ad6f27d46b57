package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/tagarr/tagarr/internal/reconcile"
	"github.com/tagarr/tagarr/internal/tagging"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(title string, headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	if title != "" {
		tw.SetTitle(title)
	}

	header := make(table.Row, columns)
	for i := 0; i < columns; i++ {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{Number: i + 1, Align: align, AlignHeader: text.AlignLeft})
	}
	tw.SetColumnConfigs(configs)

	return tw.Render()
}

func itoa(n int) string {
	return strconv.Itoa(n)
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}

// renderSummary formats a run summary as a set of tables.
func renderSummary(s *tagging.Summary) string {
	var b strings.Builder

	title := "Tagging run " + s.RunID
	if s.DryRun {
		title += " (dry run)"
	}
	overview := [][]string{
		{"Mode", string(s.Mode)},
		{"Duration", s.Duration.Round(time.Millisecond).String()},
		{"Items", itoa(s.Items)},
		{"Skipped (no file)", itoa(s.Skipped)},
		{"Analyzer failures", itoa(s.AnalyzerFailures)},
		{"Labels added", itoa(s.Added())},
		{"Labels removed", itoa(s.Removed())},
		{"Labels deleted", itoa(s.LabelsDeleted())},
		{"Not in secondary", itoa(len(s.NotFoundInSecondary))},
		{"Orphaned labels", itoa(len(s.Orphaned))},
		{"Discovered groups", itoa(len(s.Candidates))},
		{"Failures", itoa(s.Failures)},
		{"Interrupted", yesNo(s.Interrupted)},
	}
	b.WriteString(renderTable(title, []string{"Metric", "Value"}, overview, []columnAlignment{alignLeft, alignRight}))
	b.WriteString("\n")

	if cats := s.Categories(); len(cats) > 0 {
		rows := make([][]string, 0, len(cats))
		for _, c := range cats {
			rows = append(rows, []string{c, itoa(s.CategoryCounts[c])})
		}
		b.WriteString(renderTable("Categories", []string{"Category", "Items"}, rows, []columnAlignment{alignLeft, alignRight}))
		b.WriteString("\n")
	}

	if len(s.Apply.Edits) > 0 {
		rows := make([][]string, 0, len(s.Apply.Edits))
		for _, e := range s.Apply.Edits {
			status := "ok"
			if e.Err != nil {
				status = e.Err.Error()
			} else if s.DryRun {
				status = "planned"
			}
			rows = append(rows, []string{e.Key.Registry, e.Key.Category, string(e.Key.Op), itoa(e.Items), status})
		}
		b.WriteString(renderTable("Label edits", []string{"Registry", "Category", "Op", "Items", "Status"}, rows,
			[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft}))
		b.WriteString("\n")
	}

	if len(s.Candidates) > 0 {
		rows := make([][]string, 0, len(s.Candidates))
		for _, c := range s.Candidates {
			rows = append(rows, []string{c.Token, c.Quality, c.Audio, itoa(c.Occurrences), c.FirstSeenTitle})
		}
		b.WriteString(renderTable("Discovered release groups", []string{"Token", "Quality", "Audio", "Seen", "First seen"}, rows,
			[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft}))
		b.WriteString("\n")
	}

	if outcomes := append(append([]reconcile.Outcome(nil), s.NotFoundInSecondary...), s.Orphaned...); len(outcomes) > 0 {
		rows := make([][]string, 0, len(outcomes))
		for _, o := range outcomes {
			rows = append(rows, []string{string(o.Kind), o.Registry, fmt.Sprintf("%d", o.ExternalID), o.Title, o.Category})
		}
		b.WriteString(renderTable("Outcomes", []string{"Kind", "Registry", "TMDb", "Title", "Category"}, rows, nil))
		b.WriteString("\n")
	}

	return b.String()
}
