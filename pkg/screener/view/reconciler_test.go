package view

import (
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/komsit37/screener/pkg/screener/columns"
	"github.com/komsit37/screener/pkg/screener/types"
)

type recordingSaver struct {
	mu    sync.Mutex
	saved []types.ViewPreferences
}

func (s *recordingSaver) Save(p types.ViewPreferences) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, p)
}

func (s *recordingSaver) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.saved)
}

func (s *recordingSaver) last() types.ViewPreferences {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saved[len(s.saved)-1]
}

func row(inst, deriv string) types.ScreenRow {
	spot := decimal.NewFromInt(100)
	return types.ScreenRow{InstrumentSymbol: inst, DerivativeSymbol: deriv, SpotPrice: &spot}
}

func newDefault(opts ...Option) *Reconciler {
	return New(Initialize(nil, columns.Canonical(), columns.Locked()), opts...)
}

func symbols(rows []types.ScreenRow) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.InstrumentSymbol
	}
	return out
}

func TestInitializeDefaults(t *testing.T) {
	p := Initialize(nil, columns.Canonical(), columns.Locked())
	if !reflect.DeepEqual(p.ColumnOrder, columns.Canonical()) {
		t.Errorf("ColumnOrder = %v", p.ColumnOrder)
	}
	if len(p.HiddenColumns) != 0 || len(p.SelectedTickers) != 0 {
		t.Errorf("defaults not empty: %+v", p)
	}
	if p.RefreshMode != types.RefreshFast {
		t.Errorf("RefreshMode = %q", p.RefreshMode)
	}
}

func TestInitializeSanitizes(t *testing.T) {
	persisted := &types.ViewPreferences{
		SelectedTickers: []string{"sber", "GAZP", "SBER"},
		ColumnOrder:     []types.ColumnKey{columns.Delta, "ghost", columns.Delta},
		HiddenColumns:   []types.ColumnKey{columns.Instrument, columns.Spot, "ghost"},
		RefreshMode:     "turbo",
	}
	p := Initialize(persisted, columns.Canonical(), columns.Locked())
	if p.ColumnOrder[0] != columns.Delta || !columns.IsPermutation(p.ColumnOrder, columns.Canonical()) {
		t.Errorf("ColumnOrder = %v", p.ColumnOrder)
	}
	if !reflect.DeepEqual(p.HiddenColumns, []types.ColumnKey{columns.Spot}) {
		t.Errorf("HiddenColumns = %v", p.HiddenColumns)
	}
	if !reflect.DeepEqual(p.SelectedTickers, []string{"GAZP", "SBER"}) {
		t.Errorf("SelectedTickers = %v", p.SelectedTickers)
	}
	if p.RefreshMode != types.RefreshFast {
		t.Errorf("RefreshMode = %q", p.RefreshMode)
	}
}

func TestBootstrapLaw(t *testing.T) {
	r := newDefault()
	if r.SelectionState() != Bootstrapping {
		t.Fatalf("initial state = %v", r.SelectionState())
	}
	r.SetTickerUniverse([]string{"A", "B"})
	if got := r.Preferences().SelectedTickers; !reflect.DeepEqual(got, []string{"A", "B"}) {
		t.Fatalf("after universe: selected = %v", got)
	}
	r.ClearTickerSelection()
	if got := r.Preferences().SelectedTickers; len(got) != 0 {
		t.Fatalf("after clear: selected = %v", got)
	}
	r.SetTickerUniverse([]string{"A", "B", "C"})
	if got := r.Preferences().SelectedTickers; len(got) != 0 {
		t.Errorf("selection re-seeded after user control: %v", got)
	}
	if got := r.DeriveView().Universe; !reflect.DeepEqual(got, []string{"A", "B", "C"}) {
		t.Errorf("universe = %v", got)
	}
}

func TestBootstrapFromSnapshotOnce(t *testing.T) {
	r := newDefault()
	r.IngestSnapshot([]types.ScreenRow{row("SBER", "SRU5"), row("GAZP", "GZU5"), row("SBER", "SRZ5")})
	if got := r.Preferences().SelectedTickers; !reflect.DeepEqual(got, []string{"GAZP", "SBER"}) {
		t.Fatalf("selected = %v", got)
	}
	if r.SelectionState() != UserControlled {
		t.Errorf("state = %v after bootstrap", r.SelectionState())
	}
	// Later snapshots never touch the universe or the selection.
	r.IngestSnapshot([]types.ScreenRow{row("LKOH", "LKU5")})
	v := r.DeriveView()
	if !reflect.DeepEqual(v.Universe, []string{"GAZP", "SBER"}) {
		t.Errorf("universe = %v", v.Universe)
	}
	if len(v.Rows) != 0 {
		t.Errorf("unselected row visible: %v", symbols(v.Rows))
	}
}

func TestPersistedSelectionIsNotReseeded(t *testing.T) {
	p := Initialize(&types.ViewPreferences{SelectedTickers: []string{"SBER"}}, columns.Canonical(), columns.Locked())
	r := New(p)
	if r.SelectionState() != UserControlled {
		t.Fatalf("state = %v", r.SelectionState())
	}
	r.SetTickerUniverse([]string{"SBER", "GAZP"})
	if got := r.Preferences().SelectedTickers; !reflect.DeepEqual(got, []string{"SBER"}) {
		t.Errorf("selected = %v", got)
	}
}

func TestUniverseNeverShrinks(t *testing.T) {
	r := newDefault()
	r.SetTickerUniverse([]string{"A", "B"})
	r.SetTickerUniverse([]string{"b"})
	r.SetTickerUniverse(nil)
	if got := r.DeriveView().Universe; !reflect.DeepEqual(got, []string{"A", "B"}) {
		t.Errorf("universe = %v", got)
	}
}

func TestSelectionFilterScenario(t *testing.T) {
	r := newDefault()
	r.SetTickerUniverse([]string{"SBER", "YNDX"})
	r.SelectTickers([]string{"SBER"})
	r.IngestSnapshot([]types.ScreenRow{row("SBER", "SRU5"), row("YNDX", "YDU5")})

	if got := symbols(r.DeriveView().Rows); !reflect.DeepEqual(got, []string{"SBER"}) {
		t.Errorf("visible rows = %v, want [SBER]", got)
	}
	r.ClearTickerSelection()
	if got := symbols(r.DeriveView().Rows); !reflect.DeepEqual(got, []string{"SBER", "YNDX"}) {
		t.Errorf("visible rows after clear = %v", got)
	}
}

func TestToggleAndSelectAll(t *testing.T) {
	r := newDefault()
	r.SetTickerUniverse([]string{"A", "B", "C"})
	r.ToggleTicker("b")
	if got := r.Preferences().SelectedTickers; !reflect.DeepEqual(got, []string{"A", "C"}) {
		t.Fatalf("after toggle off = %v", got)
	}
	r.ToggleTicker("B")
	if got := r.Preferences().SelectedTickers; !reflect.DeepEqual(got, []string{"A", "B", "C"}) {
		t.Fatalf("after toggle on = %v", got)
	}
	r.ClearTickerSelection()
	r.SelectAllTickers()
	if got := r.Preferences().SelectedTickers; !reflect.DeepEqual(got, []string{"A", "B", "C"}) {
		t.Errorf("after select all = %v", got)
	}
}

func TestDeriveViewIdempotent(t *testing.T) {
	r := newDefault()
	r.IngestSnapshot([]types.ScreenRow{row("SBER", "SRU5"), row("GAZP", "GZU5")})
	r.ToggleColumnVisibility(columns.Delta)
	a, b := r.DeriveView(), r.DeriveView()
	if !reflect.DeepEqual(a, b) {
		t.Errorf("DeriveView not idempotent:\n%+v\n%+v", a, b)
	}
}

func TestIngestSnapshotReplacesWholesale(t *testing.T) {
	r := newDefault()
	r.ClearTickerSelection()
	r.IngestSnapshot([]types.ScreenRow{row("SBER", "SRU5"), row("GAZP", "GZU5")})
	r.IngestSnapshot([]types.ScreenRow{row("LKOH", "LKU5"), {InstrumentSymbol: "X"}})
	if got := symbols(r.DeriveView().Rows); !reflect.DeepEqual(got, []string{"LKOH"}) {
		t.Errorf("rows = %v", got)
	}
}

func TestViewIsDetachedFromState(t *testing.T) {
	r := newDefault()
	r.SetTickerUniverse([]string{"A"})
	v := r.DeriveView()
	v.Columns[0] = "mutated"
	v.Selected[0] = "Z"
	w := r.DeriveView()
	if w.Columns[0] != columns.Instrument || w.Selected[0] != "A" {
		t.Errorf("view shares storage with state: %+v", w)
	}
}

func TestSetColumnOrderRejectsNonPermutation(t *testing.T) {
	r := newDefault()
	before := r.Preferences().ColumnOrder

	missing := append([]types.ColumnKey(nil), before[:len(before)-1]...)
	err := r.SetColumnOrder(missing)
	var oe *OrderError
	if !errors.As(err, &oe) || !errors.Is(err, ErrInvalidOrder) {
		t.Fatalf("missing column: err = %v", err)
	}
	if !reflect.DeepEqual(oe.Missing, []types.ColumnKey{before[len(before)-1]}) {
		t.Errorf("Missing = %v", oe.Missing)
	}

	dup := append([]types.ColumnKey(nil), before...)
	dup[len(dup)-1] = dup[len(dup)-2]
	if err := r.SetColumnOrder(dup); !errors.Is(err, ErrInvalidOrder) {
		t.Errorf("duplicate column: err = %v", err)
	}
	if !reflect.DeepEqual(r.Preferences().ColumnOrder, before) {
		t.Errorf("state changed after rejected order")
	}
}

func TestSetColumnOrderApplies(t *testing.T) {
	s := &recordingSaver{}
	r := newDefault(WithSaver(s))
	r.ToggleColumnVisibility(columns.Futures)

	order := r.Preferences().ColumnOrder
	i, j := columns.IndexOf(order, columns.Spot), columns.IndexOf(order, columns.Delta)
	order[i], order[j] = order[j], order[i]
	if err := r.SetColumnOrder(order); err != nil {
		t.Fatal(err)
	}
	got := r.DeriveView().Columns
	if columns.Contains(got, columns.Futures) {
		t.Errorf("hidden column visible: %v", got)
	}
	if columns.IndexOf(got, columns.Delta) > columns.IndexOf(got, columns.Spot) {
		t.Errorf("new order not reflected: %v", got)
	}
	if !reflect.DeepEqual(s.last().ColumnOrder, order) {
		t.Errorf("saved order = %v", s.last().ColumnOrder)
	}
}

func TestLockedColumnsStayPut(t *testing.T) {
	r := newDefault()
	order := r.Preferences().ColumnOrder
	order[0], order[5] = order[5], order[0]
	err := r.SetColumnOrder(order)
	var le *LockedError
	if !errors.As(err, &le) || le.Column != columns.Instrument {
		t.Fatalf("err = %v", err)
	}
	if err := r.MoveColumn(columns.Derivative, columns.Delta); !errors.Is(err, ErrLockedColumn) {
		t.Errorf("move locked: err = %v", err)
	}
	// Dropping a column onto a locked slot would shift the locked column.
	if err := r.MoveColumn(columns.Delta, columns.Instrument); !errors.Is(err, ErrLockedColumn) {
		t.Errorf("move onto locked: err = %v", err)
	}
	if err := r.MoveColumn(columns.Delta, "ghost"); !errors.Is(err, ErrInvalidOrder) {
		t.Errorf("move unknown: err = %v", err)
	}
}

func TestMoveColumn(t *testing.T) {
	r := newDefault()
	if err := r.MoveColumn(columns.IncomeToExpiration, columns.DividendAmount); err != nil {
		t.Fatal(err)
	}
	got := r.Preferences().ColumnOrder
	if got[3] != columns.IncomeToExpiration || got[4] != columns.DividendAmount {
		t.Errorf("order = %v", got)
	}
}

func TestToggleColumnVisibility(t *testing.T) {
	r := newDefault()
	r.ToggleColumnVisibility(columns.Instrument)
	r.ToggleColumnVisibility("ghost")
	if got := r.Preferences().HiddenColumns; len(got) != 0 {
		t.Fatalf("locked or unknown column hidden: %v", got)
	}
	r.ToggleColumnVisibility(columns.Spot)
	if columns.Contains(r.DeriveView().Columns, columns.Spot) {
		t.Errorf("hidden column still visible")
	}
	r.ToggleColumnVisibility(columns.Spot)
	if !columns.Contains(r.DeriveView().Columns, columns.Spot) {
		t.Errorf("column not shown again")
	}
	r.ToggleColumnVisibility(columns.Delta)
	r.ResetColumns()
	if got := r.DeriveView().Columns; !reflect.DeepEqual(got, columns.Canonical()) {
		t.Errorf("after reset = %v", got)
	}
}

func TestSetRefreshMode(t *testing.T) {
	s := &recordingSaver{}
	r := newDefault(WithSaver(s))
	if err := r.SetRefreshMode("turbo"); !errors.Is(err, ErrInvalidMode) {
		t.Errorf("err = %v", err)
	}
	if err := r.SetRefreshMode(types.RefreshSlow); err != nil {
		t.Fatal(err)
	}
	_ = r.SetRefreshMode(types.RefreshSlow)
	if s.count() != 1 || s.last().RefreshMode != types.RefreshSlow {
		t.Errorf("saves = %d, last mode = %q", s.count(), s.last().RefreshMode)
	}
}

func TestSaverOnlyOnPersistedChanges(t *testing.T) {
	s := &recordingSaver{}
	r := newDefault(WithSaver(s))
	r.IngestSnapshot([]types.ScreenRow{row("SBER", "SRU5")}) // seeds selection
	if s.count() != 1 {
		t.Fatalf("saves after bootstrap = %d", s.count())
	}
	r.IngestSnapshot([]types.ScreenRow{row("SBER", "SRU5")})
	r.SetTickerUniverse([]string{"SBER"})
	if s.count() != 1 {
		t.Errorf("snapshot-only changes saved: %d", s.count())
	}
	r.ToggleTicker("GAZP")
	if got := s.last().SelectedTickers; !reflect.DeepEqual(got, []string{"GAZP", "SBER"}) {
		t.Errorf("saved selection = %v", got)
	}
}

func TestSubscribe(t *testing.T) {
	r := newDefault()
	var got []View
	cancel := r.Subscribe(func(v View) { got = append(got, v) })
	r.IngestSnapshot([]types.ScreenRow{row("SBER", "SRU5")})
	r.SetRefreshMode(types.RefreshSlow)
	if len(got) != 2 || got[1].Mode != types.RefreshSlow || len(got[0].Rows) != 1 {
		t.Fatalf("notifications = %+v", got)
	}
	cancel()
	r.ClearTickerSelection()
	if len(got) != 2 {
		t.Errorf("notified after cancel")
	}
}

func TestNotifySkipsSupersededViews(t *testing.T) {
	r := newDefault()
	var got []types.RefreshMode
	r.Subscribe(func(v View) { got = append(got, v.Mode) })
	r.notify(View{Mode: types.RefreshSlow}, 2)
	r.notify(View{Mode: types.RefreshFast}, 1)
	r.notify(View{Mode: types.RefreshSlow}, 2)
	if !reflect.DeepEqual(got, []types.RefreshMode{types.RefreshSlow}) {
		t.Errorf("delivered = %v", got)
	}
}

func TestConcurrentMutatorsNotifyInPublishOrder(t *testing.T) {
	r := newDefault()
	var mu sync.Mutex
	var last []string
	deliveries := 0
	r.Subscribe(func(v View) {
		mu.Lock()
		last = v.Selected
		deliveries++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				r.SelectTickers([]string{string(rune('A'+g)) + string(rune('A'+i%26))})
			}
		}(g)
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if deliveries == 0 {
		t.Fatal("no notifications")
	}
	if want := r.DeriveView().Selected; !reflect.DeepEqual(last, want) {
		t.Errorf("last delivered selection %v, current %v", last, want)
	}
}

func TestConcurrentReadersSeeWholeStates(t *testing.T) {
	r := newDefault()
	r.ClearTickerSelection()
	a := []types.ScreenRow{row("A", "A1"), row("A", "A2")}
	b := []types.ScreenRow{row("B", "B1"), row("B", "B2"), row("B", "B3")}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			if i%2 == 0 {
				r.IngestSnapshot(a)
			} else {
				r.IngestSnapshot(b)
			}
		}
	}()
	for i := 0; i < 500; i++ {
		rows := r.DeriveView().Rows
		if len(rows) == 0 {
			continue
		}
		first := rows[0].InstrumentSymbol
		want := map[string]int{"A": 2, "B": 3}[first]
		if len(rows) != want {
			t.Fatalf("torn snapshot: %v", symbols(rows))
		}
		for _, row := range rows {
			if row.InstrumentSymbol != first {
				t.Fatalf("mixed snapshot: %v", symbols(rows))
			}
		}
	}
	wg.Wait()
}
