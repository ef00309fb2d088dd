package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/komsit37/screener/pkg/screener/columns"
	"github.com/komsit37/screener/pkg/screener/types"
	"github.com/komsit37/screener/pkg/screener/view"
)

// CardRenderer is the narrow layout: one card per row, titled by the
// instrument with the derivative as a badge and every other visible column
// as a label/value line.
type CardRenderer struct{}

func NewCardRenderer() *CardRenderer { return &CardRenderer{} }

func (r *CardRenderer) Render(w io.Writer, v view.View, opts Options) error {
	loc := locale(opts)
	var rest []types.ColumnKey
	width := 0
	for _, c := range v.Columns {
		if c == columns.Instrument || c == columns.Derivative {
			continue
		}
		l := columns.Label(c, loc)
		width = max(width, text.RuneWidthWithoutEscSequences(l))
		rest = append(rest, c)
	}

	for i, row := range v.Rows {
		if i > 0 {
			if _, err := fmt.Fprintln(w); err != nil {
				return err
			}
		}
		title := columns.Format(row, columns.Instrument, loc)
		badge := "[" + columns.Format(row, columns.Derivative, loc) + "]"
		if opts.Color {
			title = text.Bold.Sprint(title)
			badge = text.FgCyan.Sprint(badge)
		}
		if _, err := fmt.Fprintf(w, "%s %s\n", title, badge); err != nil {
			return err
		}
		for _, c := range rest {
			label := columns.Label(c, loc)
			pad := strings.Repeat(" ", width-text.RuneWidthWithoutEscSequences(label))
			if _, err := fmt.Fprintf(w, "  %s%s  %s\n", label, pad, cell(row, c, loc, opts.Color)); err != nil {
				return err
			}
		}
	}
	return nil
}
