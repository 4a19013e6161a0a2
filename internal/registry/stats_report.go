package registry

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"assetreg/internal/catalog"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

// RenderStats formats per-category counts as a rounded table followed by
// edge and fingerprint totals. Empty categories are omitted.
func RenderStats(stats Stats) string {
	var rows [][]string
	for _, c := range catalog.Categories() {
		n, ok := stats.Entries[c]
		if !ok || n == 0 {
			continue
		}
		rows = append(rows, []string{string(c), humanize.Comma(int64(n)), humanize.IBytes(uint64(max(stats.Bytes[c], 0)))})
	}
	rows = append(rows,
		[]string{"containment edges", humanize.Comma(int64(stats.ContainmentEdges)), ""},
		[]string{"composition edges", humanize.Comma(int64(stats.CompositionEdges)), ""},
		[]string{"fingerprinted images", humanize.Comma(int64(stats.Fingerprinted)), ""},
	)
	return renderTable(
		[]string{"Category", "Entries", "Size"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignRight},
		fmt.Sprintf("%s entries", humanize.Comma(int64(stats.Total()))),
	)
}

func renderTable(headers []string, rows [][]string, aligns []columnAlignment, caption string) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

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
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}
	if caption != "" {
		tw.SetCaption("%s", caption)
	}

	columnConfigs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		columnConfigs = append(columnConfigs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(columnConfigs)

	return tw.Render()
}
