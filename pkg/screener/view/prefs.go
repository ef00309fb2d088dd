package view

import (
	"sort"
	"strings"

	"github.com/komsit37/screener/pkg/screener/columns"
	"github.com/komsit37/screener/pkg/screener/types"
)

// Defaults returns the preferences of a first run: canonical order, nothing
// hidden, no ticker filter, fast refresh.
func Defaults(canonical []types.ColumnKey) types.ViewPreferences {
	return types.ViewPreferences{
		SelectedTickers: []string{},
		ColumnOrder:     append([]types.ColumnKey(nil), canonical...),
		HiddenColumns:   []types.ColumnKey{},
		RefreshMode:     types.RefreshFast,
	}
}

// Initialize produces a self-consistent preference set from whatever was
// persisted. A nil persisted value yields Defaults. Otherwise the column order
// is healed against canonical, locked and unknown keys are stripped from the
// hidden set and an unknown refresh mode falls back to fast. The ticker
// selection keeps its meaning; it is validated against the universe only at
// render time.
func Initialize(persisted *types.ViewPreferences, canonical, locked []types.ColumnKey) types.ViewPreferences {
	if persisted == nil {
		return Defaults(canonical)
	}
	p := types.ViewPreferences{
		SelectedTickers: normalizeTickers(persisted.SelectedTickers),
		ColumnOrder:     columns.Compute(persisted.ColumnOrder, canonical),
		HiddenColumns:   columns.ComputeHidden(persisted.HiddenColumns, canonical, locked),
		RefreshMode:     persisted.RefreshMode,
	}
	if !p.RefreshMode.Valid() {
		p.RefreshMode = types.RefreshFast
	}
	return p
}

// normalizeTickers returns a sorted, duplicate free copy with blanks removed.
func normalizeTickers(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, t := range in {
		t = normalizeTicker(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func normalizeTicker(t string) string {
	return strings.ToUpper(strings.TrimSpace(t))
}

// union merges add into base; both sorted results.
func union(base, add []string) []string {
	return normalizeTickers(append(append([]string(nil), base...), add...))
}

func containsTicker(set []string, t string) bool {
	i := sort.SearchStrings(set, t)
	return i < len(set) && set[i] == t
}
