package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"lyriscope/internal/index"
)

// renderMatchTable formats index search results with right-aligned scores.
func renderMatchTable(matches []index.Match) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Score", "Path", "Label"})
	for _, match := range matches {
		tw.AppendRow(table.Row{fmt.Sprintf("%.3f", match.Score), match.Path, match.Label})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight, AlignHeader: text.AlignLeft},
	})
	return tw.Render()
}
