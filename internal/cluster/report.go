package cluster

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

const shortIdentity = 12

// Render formats clusters as a rounded table: one row per member, grouped by
// cluster, with a reclaimable-bytes footer counting every member beyond the
// first in each cluster.
func Render(clusters []Cluster) string {
	if len(clusters) == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Cluster", "Identity", "Path", "Size", "Max Edge"})

	var reclaimable uint64
	for n, c := range clusters {
		for i, m := range c.Members {
			edge := ""
			if i == 0 {
				edge = fmt.Sprintf("%d", c.MaxEdge)
			} else if m.SizeBytes > 0 {
				reclaimable += uint64(m.SizeBytes)
			}
			tw.AppendRow(table.Row{n + 1, truncate(m.Identity), m.Label, humanize.IBytes(uint64(max(m.SizeBytes, 0))), edge})
		}
		tw.AppendSeparator()
	}
	tw.AppendFooter(table.Row{"", "", fmt.Sprintf("%d clusters", len(clusters)), humanize.IBytes(reclaimable), "reclaimable"})

	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight, AlignHeader: text.AlignLeft, AutoMerge: true},
		{Number: 2, Align: text.AlignLeft, AlignHeader: text.AlignLeft},
		{Number: 3, Align: text.AlignLeft, AlignHeader: text.AlignLeft},
		{Number: 4, Align: text.AlignRight, AlignHeader: text.AlignLeft},
		{Number: 5, Align: text.AlignRight, AlignHeader: text.AlignLeft},
	})
	return tw.Render()
}

func truncate(identity string) string {
	if len(identity) <= shortIdentity {
		return identity
	}
	return identity[:shortIdentity]
}
