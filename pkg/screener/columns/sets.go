package columns

import (
	"sort"
	"strings"

	"github.com/komsit37/screener/pkg/screener/types"
)

// Sets defines named column groups that expand into lists of columns.
var Sets = map[string][]types.ColumnKey{
	"identity": {Instrument, Derivative},
	"prices":   {Spot, Futures, FairValue, MarginPerShare},
	"dividends": {
		DividendExDate,
		DividendAmount,
		DividendBeforeExp,
		DaysToExDate,
	},
	"spreads": {EntrySpread, ExitSpread, Delta},
	"income":  {TotalCapital, DaysToExpiry, IncomeToExDate, IncomeToExpiration},
}

// ExpandSets returns the union of columns for the given set names, keeping
// set order and first occurrence. A name that is not a set but is a column
// key expands to itself.
func ExpandSets(setNames []string) ([]types.ColumnKey, error) {
	out := make([]types.ColumnKey, 0, 16)
	seen := map[types.ColumnKey]struct{}{}
	add := func(k types.ColumnKey) {
		if _, ok := seen[k]; ok {
			return
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	for _, name := range setNames {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if cols, ok := Sets[name]; ok {
			for _, c := range cols {
				add(c)
			}
			continue
		}
		if Known(types.ColumnKey(name)) {
			add(types.ColumnKey(name))
			continue
		}
		return nil, &UnknownSetError{Name: name, Available: availableSets()}
	}
	return out, nil
}

// UnknownSetError reports a name that is neither a column set nor a column.
type UnknownSetError struct {
	Name      string
	Available []string
}

func (e *UnknownSetError) Error() string {
	return "unknown column or set: " + e.Name + "; sets: " + strings.Join(e.Available, ", ")
}

func availableSets() []string {
	keys := make([]string, 0, len(Sets))
	for k := range Sets {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
