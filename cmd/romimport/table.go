package main

import (
	"fmt"
	"io"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"

	"romimport/internal/queue"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

// printTable renders rows under headers. Terminals get rounded borders and a
// bold header; pipes and files get plain ASCII that greps cleanly.
func printTable(out io.Writer, headers []string, rows [][]string, aligns []columnAlignment) {
	if len(headers) == 0 {
		return
	}
	tw := table.NewWriter()
	if shouldColorize(out) {
		tw.SetStyle(table.StyleRounded)
		tw.Style().Format.Header = text.FormatDefault
		tw.Style().Color.Header = text.Colors{text.Bold}
	} else {
		tw.SetStyle(table.StyleDefault)
	}

	tw.AppendHeader(toRow(headers, len(headers)))
	for _, row := range rows {
		tw.AppendRow(toRow(row, len(headers)))
	}

	configs := make([]table.ColumnConfig, len(headers))
	for i := range headers {
		configs[i] = table.ColumnConfig{Number: i + 1, Align: text.AlignLeft, AlignHeader: text.AlignLeft}
		if i < len(aligns) && aligns[i] == alignRight {
			configs[i].Align = text.AlignRight
		}
	}
	tw.SetColumnConfigs(configs)

	fmt.Fprintln(out, tw.Render())
}

// toRow pads or cuts values to exactly columns cells.
func toRow(values []string, columns int) table.Row {
	row := make(table.Row, columns)
	for i := range row {
		if i < len(values) {
			row[i] = values[i]
		}
	}
	return row
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// statusLabel colors a status for terminals and leaves it plain otherwise.
func statusLabel(status queue.Status, color bool) string {
	label := string(status)
	if !color {
		return label
	}
	switch status {
	case queue.StatusSuccess:
		return text.FgGreen.Sprint(label)
	case queue.StatusFailure:
		return text.FgRed.Sprint(label)
	case queue.StatusConflict, queue.StatusPartial:
		return text.FgYellow.Sprint(label)
	case queue.StatusProcessing:
		return text.FgCyan.Sprint(label)
	default:
		return label
	}
}
