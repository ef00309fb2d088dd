package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/komsit37/screener/pkg/screener/view"
)

// symsRenderer prints the visible instruments on a single comma-separated
// line.
type symsRenderer struct{}

func NewSymsRenderer() Renderer {
	return symsRenderer{}
}

func (symsRenderer) Render(w io.Writer, v view.View, _ Options) error {
	symbols := make([]string, 0, len(v.Rows))
	for _, row := range v.Rows {
		if s := strings.TrimSpace(row.InstrumentSymbol); s != "" {
			symbols = append(symbols, s)
		}
	}
	_, err := fmt.Fprintln(w, strings.Join(symbols, ","))
	return err
}
