package view

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/komsit37/screener/pkg/screener/columns"
	"github.com/komsit37/screener/pkg/screener/types"
)

// keyPool mixes every known key with ids a stale or tampered store may hold.
func keyPool() []types.ColumnKey {
	return append(columns.Canonical(), "", "ghost", "AKTSIYA", "spot ", "Цена_акции")
}

func pick(pool []types.ColumnKey, idx []int) []types.ColumnKey {
	out := make([]types.ColumnKey, len(idx))
	for i, n := range idx {
		out[i] = pool[n]
	}
	return out
}

// Property: for any persisted blob, including none at all, Initialize yields
// an order that is a permutation of the canonical set and a hidden set
// disjoint from the locked set.
func TestProperty_InitializeAlwaysSanitizes(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)
	pool := keyPool()
	idxGen := gen.SliceOf(gen.IntRange(0, len(pool)-1))

	properties.Property("order is a permutation and hidden avoids locked", prop.ForAll(
		func(absent bool, order, hidden []int, mode string) bool {
			var persisted *types.ViewPreferences
			if !absent {
				persisted = &types.ViewPreferences{
					ColumnOrder:   pick(pool, order),
					HiddenColumns: pick(pool, hidden),
					RefreshMode:   types.RefreshMode(mode),
				}
			}
			p := Initialize(persisted, columns.Canonical(), columns.Locked())
			if !columns.IsPermutation(p.ColumnOrder, columns.Canonical()) {
				return false
			}
			for _, k := range p.HiddenColumns {
				if columns.Contains(columns.Locked(), k) || !columns.Known(k) {
					return false
				}
			}
			return p.RefreshMode.Valid()
		},
		gen.Bool(),
		idxGen,
		idxGen,
		gen.OneConstOf("fast", "slow", "", "FAST", "x"),
	))

	properties.TestingRun(t)
}

// Property: whatever sequence of reorders is attempted, the published order
// stays a permutation with every locked column at its canonical index.
func TestProperty_ReorderKeepsPermutation(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)
	pool := keyPool()
	canon := columns.Canonical()

	properties.Property("reorders never corrupt the order", prop.ForAll(
		func(moves []int, attempt []int) bool {
			r := newDefault()
			for i := 0; i+1 < len(moves); i += 2 {
				_ = r.MoveColumn(canon[moves[i]], canon[moves[i+1]])
			}
			_ = r.SetColumnOrder(pick(pool, attempt))
			got := r.Preferences().ColumnOrder
			if !columns.IsPermutation(got, canon) {
				return false
			}
			for _, k := range columns.Locked() {
				if columns.IndexOf(got, k) != columns.IndexOf(canon, k) {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, len(canon)-1)),
		gen.SliceOf(gen.IntRange(0, len(pool)-1)),
	))

	properties.TestingRun(t)
}
