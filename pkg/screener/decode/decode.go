// Package decode turns backend wire rows into canonical screener rows.
//
// The backend has shipped two field dialects (latin snake_case and the
// cyrillic names of the MOEX service); both map through one translation
// table. Decoding a row never fails: anything missing or of the wrong type
// becomes an absent field.
package decode

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/komsit37/screener/pkg/screener/columns"
	"github.com/komsit37/screener/pkg/screener/types"
)

// ErrMalformed marks a payload that is not valid JSON of the expected shape.
var ErrMalformed = errors.New("malformed payload")

// Aliases lists, per canonical column, the wire names accepted for it. The
// first alias is the canonical wire name used by Encode.
var Aliases = map[types.ColumnKey][]string{
	columns.Instrument:         {"aktsiya", "Акция"},
	columns.Derivative:         {"fyuchers", "Фьючерс"},
	columns.DividendExDate:     {"div_ex_date", "Дата_див_отсечки"},
	columns.DividendAmount:     {"div_amount", "Размер_див_руб"},
	columns.DividendBeforeExp:  {"has_div_before_exp"},
	columns.Spot:               {"spot", "Цена_акции"},
	columns.Futures:            {"fut", "Цена_фьючерса"},
	columns.MarginPerShare:     {"go_per_share", "ГО_pct"},
	columns.EntrySpread:        {"spread_in", "Спред_Входа_pct"},
	columns.ExitSpread:         {"spread_out", "Спред_Выхода_pct"},
	columns.FairValue:          {"fair", "Справ_Стоимость"},
	columns.Delta:              {"delta", "Дельта_pct"},
	columns.TotalCapital:       {"total_capital", "Всего_pct"},
	columns.DaysToExDate:       {"days_to_ex_date", "Дней_до_отсечки"},
	columns.DaysToExpiry:       {"days_to_exp", "Дней_до_эксп"},
	columns.IncomeToExDate:     {"income_to_ex", "Доход_к_отсечке_pct"},
	columns.IncomeToExpiration: {"income_to_exp", "Доход_к_эксп_pct"},
}

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"02.01.2006",
}

// Row maps one wire object onto a ScreenRow. Unknown wire fields are
// ignored.
func Row(wire map[string]any) types.ScreenRow {
	var r types.ScreenRow
	r.InstrumentSymbol = strings.ToUpper(str(lookup(wire, columns.Instrument)))
	r.DerivativeSymbol = str(lookup(wire, columns.Derivative))

	r.DividendExDate = date(lookup(wire, columns.DividendExDate))
	r.DividendAmount = dec(lookup(wire, columns.DividendAmount))
	r.HasDividendBeforeExpiry = boolean(lookup(wire, columns.DividendBeforeExp))

	r.SpotPrice = dec(lookup(wire, columns.Spot))
	r.FuturesPrice = dec(lookup(wire, columns.Futures))
	r.MarginPerShare = dec(lookup(wire, columns.MarginPerShare))

	r.EntrySpreadPct = dec(lookup(wire, columns.EntrySpread))
	r.ExitSpreadPct = dec(lookup(wire, columns.ExitSpread))
	r.FairValue = dec(lookup(wire, columns.FairValue))
	r.DeltaPct = dec(lookup(wire, columns.Delta))
	r.TotalCapitalPct = dec(lookup(wire, columns.TotalCapital))

	r.DaysToExDate = integer(lookup(wire, columns.DaysToExDate))
	r.DaysToExpiry = integer(lookup(wire, columns.DaysToExpiry))

	r.IncomeToExPct = dec(lookup(wire, columns.IncomeToExDate))
	r.IncomeToExpiryPct = dec(lookup(wire, columns.IncomeToExpiration))
	return r
}

// Rows decodes a JSON array of wire rows. Rows lacking either symbol are
// dropped; a payload that is not a JSON array of objects fails as a whole.
func Rows(payload []byte) ([]types.ScreenRow, error) {
	var wire []map[string]any
	if err := unmarshal(payload, &wire); err != nil {
		return nil, err
	}
	return fromWire(wire), nil
}

// Message decodes a push envelope. ok is false for envelopes whose type is
// not "screener"; those carry nothing to apply.
func Message(payload []byte) (rows []types.ScreenRow, ok bool, err error) {
	var env struct {
		Type string           `json:"type"`
		Data *[]map[string]any `json:"data"`
	}
	if err := unmarshal(payload, &env); err != nil {
		return nil, false, err
	}
	if env.Type != "screener" {
		return nil, false, nil
	}
	if env.Data == nil {
		return nil, false, fmt.Errorf("%w: screener message without data", ErrMalformed)
	}
	return fromWire(*env.Data), true, nil
}

// Symbols decodes a /symbols response: upper-cased, trimmed, deduplicated,
// first-seen order kept.
func Symbols(payload []byte) ([]string, error) {
	var raw []any
	if err := unmarshal(payload, &raw); err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		s := strings.ToUpper(str(v))
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out, nil
}

// Encode renders r with canonical wire names. Absent fields are emitted as
// null so the output round-trips through Row.
func Encode(r types.ScreenRow) map[string]any {
	out := make(map[string]any, len(Aliases))
	for _, k := range columns.Canonical() {
		name := Aliases[k][0]
		switch v := columns.Value(r, k).(type) {
		case nil:
			out[name] = nil
		case decimal.Decimal:
			out[name] = json.Number(v.String())
		case time.Time:
			out[name] = v.Format("2006-01-02")
		default:
			out[name] = v
		}
	}
	return out
}

func fromWire(wire []map[string]any) []types.ScreenRow {
	rows := make([]types.ScreenRow, 0, len(wire))
	for _, w := range wire {
		if w == nil {
			continue
		}
		r := Row(w)
		if !r.Valid() {
			continue
		}
		rows = append(rows, r)
	}
	return rows
}

func unmarshal(payload []byte, v any) error {
	d := json.NewDecoder(bytes.NewReader(payload))
	d.UseNumber()
	if err := d.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}

func lookup(wire map[string]any, k types.ColumnKey) any {
	for _, name := range Aliases[k] {
		if v, ok := wire[name]; ok && v != nil {
			return v
		}
	}
	return nil
}

func str(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	default:
		return ""
	}
}

func dec(v any) *decimal.Decimal {
	var s string
	switch t := v.(type) {
	case json.Number:
		s = t.String()
	case string:
		s = strings.TrimSpace(t)
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return nil
		}
		d := decimal.NewFromFloat(t)
		if !inRange(d) {
			return nil
		}
		return &d
	case int:
		d := decimal.NewFromInt(int64(t))
		return &d
	default:
		return nil
	}
	if s == "" {
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil || !inRange(d) {
		return nil
	}
	return &d
}

var (
	minInt = decimal.NewFromInt(math.MinInt64)
	maxInt = decimal.NewFromInt(math.MaxInt64)
)

// inRange rejects magnitudes of 1e19 and above and more than 28 fractional
// digits. It looks only at the exponent and coefficient length, so it never
// rescales.
func inRange(d decimal.Decimal) bool {
	exp := int(d.Exponent())
	if exp > 18 || exp < -28 {
		return false
	}
	if d.IsZero() {
		return true
	}
	return d.NumDigits()+exp <= 19
}

func integer(v any) *int {
	d := dec(v)
	if d == nil || d.LessThan(minInt) || d.GreaterThan(maxInt) || !d.Equal(d.Truncate(0)) {
		return nil
	}
	n := int(d.IntPart())
	return &n
}

func boolean(v any) *bool {
	b, ok := v.(bool)
	if !ok {
		return nil
	}
	return &b
}

func date(v any) *time.Time {
	s, ok := v.(string)
	if !ok {
		return nil
	}
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}
