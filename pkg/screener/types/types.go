package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// ScreenRow is one instrument pair's computed snapshot as delivered by the
// screener backend. Only the two symbols are guaranteed; every other field
// is nil when the backend did not send it.
type ScreenRow struct {
	InstrumentSymbol string
	DerivativeSymbol string

	DividendExDate          *time.Time
	DividendAmount          *decimal.Decimal
	HasDividendBeforeExpiry *bool

	SpotPrice      *decimal.Decimal
	FuturesPrice   *decimal.Decimal
	MarginPerShare *decimal.Decimal

	EntrySpreadPct  *decimal.Decimal
	ExitSpreadPct   *decimal.Decimal
	FairValue       *decimal.Decimal
	DeltaPct        *decimal.Decimal
	TotalCapitalPct *decimal.Decimal

	DaysToExDate *int
	DaysToExpiry *int

	IncomeToExPct     *decimal.Decimal
	IncomeToExpiryPct *decimal.Decimal
}

// Valid reports whether the row carries both identity symbols.
func (r ScreenRow) Valid() bool {
	return r.InstrumentSymbol != "" && r.DerivativeSymbol != ""
}

// ColumnKey identifies one screener column. The closed set of keys and their
// labels live in package columns.
type ColumnKey string

// RefreshMode selects the polling cadence.
type RefreshMode string

const (
	RefreshFast RefreshMode = "fast"
	RefreshSlow RefreshMode = "slow"
)

// Interval returns the polling period for the mode. Unknown modes poll fast.
func (m RefreshMode) Interval() time.Duration {
	if m == RefreshSlow {
		return 10 * time.Minute
	}
	return 3 * time.Second
}

// Valid reports whether m is one of the known modes.
func (m RefreshMode) Valid() bool {
	return m == RefreshFast || m == RefreshSlow
}

// ViewPreferences are the user-controlled, persisted view settings.
//
// SelectedTickers is kept sorted and duplicate free; an empty selection means
// "show every ticker". ColumnOrder is a permutation of the known column set
// and HiddenColumns never contains a locked column once sanitized.
type ViewPreferences struct {
	SelectedTickers []string
	ColumnOrder     []ColumnKey
	HiddenColumns   []ColumnKey
	RefreshMode     RefreshMode
}

// Clone returns a deep copy so callers can hand preferences across goroutines.
func (p ViewPreferences) Clone() ViewPreferences {
	return ViewPreferences{
		SelectedTickers: append([]string(nil), p.SelectedTickers...),
		ColumnOrder:     append([]ColumnKey(nil), p.ColumnOrder...),
		HiddenColumns:   append([]ColumnKey(nil), p.HiddenColumns...),
		RefreshMode:     p.RefreshMode,
	}
}
