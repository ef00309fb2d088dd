package render

import (
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/komsit37/screener/pkg/screener/columns"
	"github.com/komsit37/screener/pkg/screener/types"
	"github.com/komsit37/screener/pkg/screener/view"
)

// TableRenderer draws the desktop grid. Column order is exactly v.Columns,
// which always starts with the locked instrument column.
type TableRenderer struct{}

func NewTableRenderer() *TableRenderer { return &TableRenderer{} }

func (r *TableRenderer) Render(w io.Writer, v view.View, opts Options) error {
	loc := locale(opts)
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	if opts.Color {
		tw.SetStyle(table.StyleColoredDark)
	} else {
		tw.SetStyle(table.StyleLight)
	}
	tw.Style().Options.DrawBorder = false
	tw.Style().Options.SeparateRows = false
	tw.Style().Options.SeparateColumns = false

	hdr := make(table.Row, len(v.Columns))
	for i, c := range v.Columns {
		hdr[i] = columns.Label(c, loc)
	}
	tw.AppendHeader(hdr)

	maxWidth := opts.MaxColWidth
	if maxWidth <= 0 {
		maxWidth = 24
	}
	cfgs := make([]table.ColumnConfig, 0, len(v.Columns))
	for i, c := range v.Columns {
		cfg := table.ColumnConfig{Number: i + 1, WidthMax: maxWidth}
		if d, ok := columns.GetDef(c); ok && d.Align == text.AlignRight {
			cfg.Align = text.AlignRight
			cfg.AlignHeader = text.AlignRight
		}
		cfgs = append(cfgs, cfg)
	}
	if len(cfgs) > 0 {
		tw.SetColumnConfigs(cfgs)
	}

	for _, row := range v.Rows {
		out := make(table.Row, len(v.Columns))
		for i, c := range v.Columns {
			out[i] = cell(row, c, loc, opts.Color)
		}
		tw.AppendRow(out)
	}
	tw.Render()
	return nil
}

// cell formats one value, colouring signed percentages when asked.
func cell(row types.ScreenRow, c types.ColumnKey, loc columns.Locale, color bool) string {
	s := columns.Format(row, c, loc)
	if !color || !signed(c) {
		return s
	}
	switch columns.Sign(row, c) {
	case -1:
		return text.Colors{text.FgRed}.Sprint(s)
	case 1:
		return text.Colors{text.FgGreen}.Sprint(s)
	}
	return s
}

func signed(c types.ColumnKey) bool {
	switch c {
	case columns.EntrySpread, columns.ExitSpread, columns.Delta, columns.TotalCapital,
		columns.IncomeToExDate, columns.IncomeToExpiration:
		return true
	}
	return false
}
