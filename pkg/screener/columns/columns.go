package columns

import (
	"fmt"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/shopspring/decimal"

	"github.com/komsit37/screener/pkg/screener/types"
)

// Column keys in canonical declaration order.
const (
	Instrument         types.ColumnKey = "aktsiya"
	Derivative         types.ColumnKey = "fyuchers"
	DividendExDate     types.ColumnKey = "div_ex_date"
	DividendAmount     types.ColumnKey = "div_amount"
	DividendBeforeExp  types.ColumnKey = "has_div_before_exp"
	Spot               types.ColumnKey = "spot"
	Futures            types.ColumnKey = "fut"
	MarginPerShare     types.ColumnKey = "go_per_share"
	EntrySpread        types.ColumnKey = "spread_in"
	ExitSpread         types.ColumnKey = "spread_out"
	FairValue          types.ColumnKey = "fair"
	Delta              types.ColumnKey = "delta"
	TotalCapital       types.ColumnKey = "total_capital"
	DaysToExDate       types.ColumnKey = "days_to_ex_date"
	DaysToExpiry       types.ColumnKey = "days_to_exp"
	IncomeToExDate     types.ColumnKey = "income_to_ex"
	IncomeToExpiration types.ColumnKey = "income_to_exp"
)

// Placeholder is rendered for absent values.
const Placeholder = "—"

// Locale selects the label and boolean vocabulary.
type Locale string

const (
	LocaleRU Locale = "ru"
	LocaleEN Locale = "en"
)

// Def describes one column: its labels and how to read it from a row.
type Def struct {
	Key    types.ColumnKey
	Labels map[Locale]string
	Align  text.Align
	// Value returns the raw cell value or nil when the row lacks it.
	Value func(r types.ScreenRow) any
}

// Label returns the display label for the locale, falling back to Russian
// and then to the key itself.
func (d Def) Label(loc Locale) string {
	if l, ok := d.Labels[loc]; ok && l != "" {
		return l
	}
	if l, ok := d.Labels[LocaleRU]; ok && l != "" {
		return l
	}
	return string(d.Key)
}

var defs = []Def{
	{Key: Instrument, Labels: labels("АКЦИЯ", "STOCK"), Value: func(r types.ScreenRow) any { return r.InstrumentSymbol }},
	{Key: Derivative, Labels: labels("ФЬЮЧЕРС", "FUTURE"), Value: func(r types.ScreenRow) any { return r.DerivativeSymbol }},
	{Key: DividendExDate, Labels: labels("ДАТА ДИВ. ОТСЕЧКИ", "DIV EX-DATE"), Value: func(r types.ScreenRow) any { return timeOrNil(r.DividendExDate) }},
	{Key: DividendAmount, Labels: labels("РАЗМЕР ДИВ.(₽)", "DIV AMOUNT"), Align: text.AlignRight, Value: func(r types.ScreenRow) any { return decOrNil(r.DividendAmount) }},
	{Key: DividendBeforeExp, Labels: labels("ДИВ.(%)", "DIV BEFORE EXP"), Value: func(r types.ScreenRow) any { return boolOrNil(r.HasDividendBeforeExpiry) }},
	{Key: Spot, Labels: labels("ЦЕНА АКЦИИ", "SPOT"), Align: text.AlignRight, Value: func(r types.ScreenRow) any { return decOrNil(r.SpotPrice) }},
	{Key: Futures, Labels: labels("ЦЕНА ФЬЮЧЕРСА", "FUTURES"), Align: text.AlignRight, Value: func(r types.ScreenRow) any { return decOrNil(r.FuturesPrice) }},
	{Key: MarginPerShare, Labels: labels("ГО(%)", "MARGIN"), Align: text.AlignRight, Value: func(r types.ScreenRow) any { return decOrNil(r.MarginPerShare) }},
	{Key: EntrySpread, Labels: labels("СПРЕД ВХОДА(%)", "ENTRY SPREAD%"), Align: text.AlignRight, Value: func(r types.ScreenRow) any { return decOrNil(r.EntrySpreadPct) }},
	{Key: ExitSpread, Labels: labels("СПРЕД ВЫХОДА(%)", "EXIT SPREAD%"), Align: text.AlignRight, Value: func(r types.ScreenRow) any { return decOrNil(r.ExitSpreadPct) }},
	{Key: FairValue, Labels: labels("СПРАВ. СТОИМОСТЬ", "FAIR VALUE"), Align: text.AlignRight, Value: func(r types.ScreenRow) any { return decOrNil(r.FairValue) }},
	{Key: Delta, Labels: labels("ДЕЛЬТА(%)", "DELTA%"), Align: text.AlignRight, Value: func(r types.ScreenRow) any { return decOrNil(r.DeltaPct) }},
	{Key: TotalCapital, Labels: labels("ВСЕГО(%)", "TOTAL%"), Align: text.AlignRight, Value: func(r types.ScreenRow) any { return decOrNil(r.TotalCapitalPct) }},
	{Key: DaysToExDate, Labels: labels("ДНЕЙ ДО ОТСЕЧКИ", "DAYS TO EX"), Align: text.AlignRight, Value: func(r types.ScreenRow) any { return intOrNil(r.DaysToExDate) }},
	{Key: DaysToExpiry, Labels: labels("ДНЕЙ ДО ЭКСП.", "DAYS TO EXP"), Align: text.AlignRight, Value: func(r types.ScreenRow) any { return intOrNil(r.DaysToExpiry) }},
	{Key: IncomeToExDate, Labels: labels("ДОХОД К ОТСЕЧКЕ(%)", "INCOME TO EX%"), Align: text.AlignRight, Value: func(r types.ScreenRow) any { return decOrNil(r.IncomeToExPct) }},
	{Key: IncomeToExpiration, Labels: labels("ДОХОД К ЭКСП.(%)", "INCOME TO EXP%"), Align: text.AlignRight, Value: func(r types.ScreenRow) any { return decOrNil(r.IncomeToExpiryPct) }},
}

// Registry maps column keys to their definitions.
var Registry = map[types.ColumnKey]Def{}

func init() {
	for _, d := range defs {
		Registry[d.Key] = d
	}
}

// Canonical returns every known key in declaration order.
func Canonical() []types.ColumnKey {
	out := make([]types.ColumnKey, len(defs))
	for i, d := range defs {
		out[i] = d.Key
	}
	return out
}

// Locked returns the columns that can never be hidden or moved.
func Locked() []types.ColumnKey {
	return []types.ColumnKey{Instrument, Derivative, DividendExDate}
}

// Known reports whether k belongs to the registry.
func Known(k types.ColumnKey) bool {
	_, ok := Registry[k]
	return ok
}

// GetDef returns the definition for k.
func GetDef(k types.ColumnKey) (Def, bool) {
	d, ok := Registry[k]
	return d, ok
}

// Label returns the display label of k, or the raw key for unknown columns.
func Label(k types.ColumnKey, loc Locale) string {
	if d, ok := Registry[k]; ok {
		return d.Label(loc)
	}
	return string(k)
}

// Value reads the raw value of column k from r; nil when absent or unknown.
func Value(r types.ScreenRow, k types.ColumnKey) any {
	d, ok := Registry[k]
	if !ok {
		return nil
	}
	return d.Value(r)
}

// Format renders one cell. Absent values render as Placeholder, never as a
// zero value.
func Format(r types.ScreenRow, k types.ColumnKey, loc Locale) string {
	return FormatValue(Value(r, k), loc)
}

// FormatValue renders a raw value returned by Value.
func FormatValue(v any, loc Locale) string {
	switch t := v.(type) {
	case nil:
		return Placeholder
	case string:
		if t == "" {
			return Placeholder
		}
		return t
	case decimal.Decimal:
		return t.StringFixed(2)
	case int:
		return strconv.Itoa(t)
	case time.Time:
		return t.Format("02.01.2006")
	case bool:
		if loc == LocaleEN {
			if t {
				return "Yes"
			}
			return "No"
		}
		if t {
			return "Да"
		}
		return "Нет"
	default:
		return fmt.Sprint(t)
	}
}

// Sign returns -1, 0 or 1 for numeric cells, used for colouring. Non-numeric
// and absent cells return 0.
func Sign(r types.ScreenRow, k types.ColumnKey) int {
	switch t := Value(r, k).(type) {
	case decimal.Decimal:
		return t.Sign()
	case int:
		switch {
		case t < 0:
			return -1
		case t > 0:
			return 1
		}
	}
	return 0
}

func labels(ru, en string) map[Locale]string {
	return map[Locale]string{LocaleRU: ru, LocaleEN: en}
}

func decOrNil(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return *d
}

func intOrNil(i *int) any {
	if i == nil {
		return nil
	}
	return *i
}

func boolOrNil(b *bool) any {
	if b == nil {
		return nil
	}
	return *b
}

func timeOrNil(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
