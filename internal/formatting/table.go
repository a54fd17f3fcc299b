package formatting

import (
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
)

// NewTable returns a table writer rendering to w in the rounded style used
// across the CLI.
func NewTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	return t
}
