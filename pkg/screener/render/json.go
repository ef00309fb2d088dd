package render

import (
	"encoding/json"
	"io"

	"github.com/komsit37/screener/pkg/screener/decode"
	"github.com/komsit37/screener/pkg/screener/types"
	"github.com/komsit37/screener/pkg/screener/view"
)

// jsonModel is the output shape for JSONRenderer. Rows use the canonical
// wire names and carry only the visible columns.
type jsonModel struct {
	Mode     types.RefreshMode `json:"mode"`
	Selected []string          `json:"selected"`
	Columns  []string          `json:"columns"`
	Rows     []map[string]any  `json:"rows"`
}

type JSONRenderer struct{}

func NewJSONRenderer() *JSONRenderer { return &JSONRenderer{} }

func (r *JSONRenderer) Render(w io.Writer, v view.View, opts Options) error {
	out := jsonModel{
		Mode:     v.Mode,
		Selected: v.Selected,
		Columns:  make([]string, 0, len(v.Columns)),
		Rows:     make([]map[string]any, 0, len(v.Rows)),
	}
	if out.Selected == nil {
		out.Selected = []string{}
	}
	names := make([]string, len(v.Columns))
	for i, c := range v.Columns {
		names[i] = decode.Aliases[c][0]
		out.Columns = append(out.Columns, string(c))
	}
	for _, row := range v.Rows {
		wire := decode.Encode(row)
		m := make(map[string]any, len(names))
		for _, n := range names {
			m[n] = wire[n]
		}
		out.Rows = append(out.Rows, m)
	}
	enc := json.NewEncoder(w)
	if opts.PrettyJSON {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(out)
}
