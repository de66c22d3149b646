package report

import (
	"io"

	"github.com/olekukonko/tablewriter"
)

// renderTable writes rows in one of the table styles. Cells may span
// several lines.
func renderTable(w io.Writer, style string, header []string, rows [][]string) {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)

	switch style {
	case StylePipe:
		table.SetBorders(tablewriter.Border{Left: true, Top: false, Right: true, Bottom: false})
		table.SetCenterSeparator("|")
	case StyleGrid:
		table.SetRowLine(true)
	}

	table.AppendBulk(rows)
	table.Render()
}
