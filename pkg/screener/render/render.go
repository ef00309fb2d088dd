// Package render turns a derived view into terminal or machine output.
// Renderers are pure functions of the view.
package render

import (
	"fmt"
	"io"

	"github.com/komsit37/screener/pkg/screener/columns"
	"github.com/komsit37/screener/pkg/screener/view"
)

// Renderer renders a view to an output writer.
type Renderer interface {
	Render(w io.Writer, v view.View, opts Options) error
}

type Options struct {
	Locale      columns.Locale
	Color       bool
	PrettyJSON  bool
	MaxColWidth int
}

// Layout names accepted by New.
const (
	LayoutAuto  = "auto"
	LayoutTable = "table"
	LayoutCards = "cards"
	LayoutJSON  = "json"
	LayoutSyms  = "syms"
)

// CardWidth is the terminal width below which the auto layout switches to
// cards.
const CardWidth = 100

// New returns the renderer for layout. Auto resolves against width; a zero
// width means unknown and picks the table.
func New(layout string, width int) (Renderer, error) {
	switch layout {
	case "", LayoutAuto:
		if width > 0 && width < CardWidth {
			return NewCardRenderer(), nil
		}
		return NewTableRenderer(), nil
	case LayoutTable:
		return NewTableRenderer(), nil
	case LayoutCards:
		return NewCardRenderer(), nil
	case LayoutJSON:
		return NewJSONRenderer(), nil
	case LayoutSyms:
		return NewSymsRenderer(), nil
	}
	return nil, fmt.Errorf("unknown layout %q", layout)
}

func locale(opts Options) columns.Locale {
	if opts.Locale == "" {
		return columns.LocaleRU
	}
	return opts.Locale
}
