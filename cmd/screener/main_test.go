package main

import (
	"reflect"
	"testing"

	"github.com/komsit37/screener/pkg/screener/columns"
	"github.com/komsit37/screener/pkg/screener/types"
)

func TestPromoteKeepsLockedPrefix(t *testing.T) {
	order := columns.Canonical()
	got := promote(order, []types.ColumnKey{columns.Delta, columns.Instrument, columns.Spot})
	want := []types.ColumnKey{columns.Instrument, columns.Derivative, columns.DividendExDate, columns.Delta, columns.Spot}
	if !reflect.DeepEqual(got[:5], want) {
		t.Errorf("prefix = %v, want %v", got[:5], want)
	}
	if !columns.IsPermutation(got, order) {
		t.Errorf("not a permutation: %v", got)
	}
}
