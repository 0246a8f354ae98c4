package main

import (
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// listTable renders operator listings. Columns named in numeric are right
// aligned.
type listTable struct {
	headers []string
	rows    [][]string
	numeric map[int]bool
}

func newListTable(headers ...string) *listTable {
	return &listTable{headers: headers, numeric: map[int]bool{}}
}

// alignRight marks columns (zero based) as numeric.
func (t *listTable) alignRight(columns ...int) *listTable {
	for _, c := range columns {
		t.numeric[c] = true
	}
	return t
}

func (t *listTable) add(cells ...string) {
	t.rows = append(t.rows, cells)
}

func (t *listTable) render(w io.Writer) {
	columns := len(t.headers)
	if columns == 0 {
		return
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i, h := range t.headers {
		header[i] = h
	}
	tw.AppendHeader(header)

	for _, cells := range t.rows {
		row := make(table.Row, columns)
		for i := range columns {
			if i < len(cells) {
				row[i] = cells[i]
			} else {
				row[i] = ""
			}
		}
		tw.AppendRow(row)
	}

	configs := make([]table.ColumnConfig, 0, columns)
	for i := range columns {
		align := text.AlignLeft
		if t.numeric[i] {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(configs)
	tw.Render()
}
