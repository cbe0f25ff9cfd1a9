package command

import (
	"io"
	"strings"

	"github.com/rivo/uniseg"
)

// table lays out rows as left-aligned columns. Cells are measured in
// terminal cells, so node names and descriptions holding wide runes still
// line up.
type table struct {
	gap  int
	rows [][]string
}

func newTable(gap int) *table {
	return &table{gap: gap}
}

func (t *table) add(cells ...string) {
	t.rows = append(t.rows, cells)
}

// write writes every row. The last cell of a row is not padded.
func (t *table) write(w io.Writer) error {
	var widths []int
	for _, row := range t.rows {
		for i, cell := range row[:max(len(row)-1, 0)] {
			if i == len(widths) {
				widths = append(widths, 0)
			}
			widths[i] = max(widths[i], uniseg.StringWidth(cell))
		}
	}
	var b strings.Builder
	for _, row := range t.rows {
		for i, cell := range row {
			b.WriteString(cell)
			if i < len(row)-1 {
				b.WriteString(strings.Repeat(" ", widths[i]-uniseg.StringWidth(cell)+t.gap))
			}
		}
		b.WriteByte('\n')
	}
	_, err := io.WriteString(w, b.String())
	return err
}
