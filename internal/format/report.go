// Package format renders activity reports for the command line.
package format

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/ashureev/chatpulse/internal/analysis"
)

// Supported output formats.
const (
	Table = "table"
	Plain = "plain"
	JSON  = "json"
)

// ParseFormat normalizes a user-supplied format name.
func ParseFormat(s string) (string, error) {
	switch f := strings.ToLower(strings.TrimSpace(s)); f {
	case Table, Plain, JSON:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported format: %s", s)
	}
}

// WriteReport writes report to w in the requested format.
func WriteReport(w io.Writer, report *analysis.Report, format string) error {
	switch strings.ToLower(format) {
	case "", Table:
		return writeReportTable(w, report)
	case Plain:
		return writeReportPlain(w, report)
	case JSON:
		return writeReportJSON(w, report)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

func writeReportPlain(w io.Writer, report *analysis.Report) error {
	if _, err := fmt.Fprintf(w, "range\t%s\t%s\n", report.Range.Start, report.Range.End); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w, "date\tnew_users\tactive_users"); err != nil {
		return err
	}
	for _, day := range report.DayWise {
		if _, err := fmt.Fprintf(w, "%s\t%d\t%d\n", day.Date, day.NewUsers, day.ActiveUsers); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "frequent\t%s\n", strings.Join(report.FrequentUsers, ", "))
	return err
}

func writeReportJSON(w io.Writer, report *analysis.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

func writeReportTable(w io.Writer, report *analysis.Report) error {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleRounded)
	tw.Style().Options.SeparateHeader = true
	tw.Style().Options.DrawBorder = true
	tw.Style().Format.Footer = text.FormatDefault
	tw.SetTitle("%s to %s (%d days)", report.Range.Start, report.Range.End, report.Range.Days())

	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignLeft, AlignHeader: text.AlignCenter},
		{Number: 2, Align: text.AlignRight, AlignHeader: text.AlignCenter},
		{Number: 3, Align: text.AlignRight, AlignHeader: text.AlignCenter},
	})

	tw.AppendHeader(table.Row{"Date", "New users", "Active users"})
	for _, day := range report.DayWise {
		tw.AppendRow(table.Row{day.Date.String(), day.NewUsers, day.ActiveUsers})
	}

	frequent := "(none)"
	if len(report.FrequentUsers) > 0 {
		frequent = strings.Join(report.FrequentUsers, ", ")
	}
	tw.AppendFooter(table.Row{"Active 4+ days", frequent})

	_ = tw.Render()
	return nil
}
