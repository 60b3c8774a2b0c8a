package main

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

type column struct {
	title string
	align text.Align
}

func left(title string) column { return column{title, text.AlignLeft} }
func right(title string) column { return column{title, text.AlignRight} }

var (
	countColumns   = []column{left("Status"), right("Count")}
	queueColumns   = []column{right("#"), left("ID"), left("Name"), left("Status"), right("Files"), right("Progress")}
	resultColumns  = []column{left("ID"), left("Name"), left("Status"), right("Done/Failed/Canceled"), right("Input"), right("Output"), right("Saved"), right("Reduction"), right("Time")}
	failureColumns = []column{left("Project"), right("File"), left("Source"), left("Cause"), left("Message")}
)

// renderTable draws rows under cols. Short rows are padded and long rows
// truncated to the column count. A non-nil footer becomes a totals row.
func renderTable(cols []column, rows [][]string, footer []string) string {
	if len(cols) == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make([]string, len(cols))
	configs := make([]table.ColumnConfig, len(cols))
	for i, c := range cols {
		header[i] = c.title
		configs[i] = table.ColumnConfig{Number: i + 1, Align: c.align, AlignHeader: text.AlignLeft, AlignFooter: c.align}
	}
	tw.SetColumnConfigs(configs)
	tw.AppendHeader(fitRow(header, len(cols)))
	for _, r := range rows {
		tw.AppendRow(fitRow(r, len(cols)))
	}
	if footer != nil {
		tw.AppendFooter(fitRow(footer, len(cols)))
	}
	return tw.Render() + "\n"
}

func fitRow(values []string, width int) table.Row {
	row := make(table.Row, width)
	for i := range row {
		row[i] = ""
		if i < len(values) {
			row[i] = values[i]
		}
	}
	return row
}
