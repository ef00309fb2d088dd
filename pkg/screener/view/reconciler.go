// Package view owns the screener's view state: the latest row snapshot, the
// ticker universe and the user's view preferences. It derives the exact
// columns and rows to render.
package view

import (
	"slices"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/komsit37/screener/pkg/screener/columns"
	"github.com/komsit37/screener/pkg/screener/types"
)

// View is the rendering contract: ordered visible columns and the rows that
// pass the ticker filter, plus the context a renderer may show.
type View struct {
	Columns  []types.ColumnKey
	Rows     []types.ScreenRow
	Universe []string
	Selected []string
	Mode     types.RefreshMode
}

// Saver receives preferences after every change to a persisted field. Save
// must not block; failures are the saver's to log.
type Saver interface {
	Save(p types.ViewPreferences)
}

// SaverFunc adapts a function to Saver.
type SaverFunc func(p types.ViewPreferences)

func (f SaverFunc) Save(p types.ViewPreferences) { f(p) }

// SelectionState tells whether the ticker selection may still be seeded
// automatically.
type SelectionState int

const (
	Bootstrapping SelectionState = iota
	UserControlled
)

func (s SelectionState) String() string {
	if s == UserControlled {
		return "user-controlled"
	}
	return "bootstrapping"
}

// state is never modified after it is published.
type state struct {
	rows     []types.ScreenRow
	universe []string
	prefs    types.ViewPreferences

	// bootstrapped is set by the first universe population.
	bootstrapped bool
	// userControlled is set by the first explicit selection change.
	userControlled bool
}

// Reconciler merges snapshots with view preferences. All methods are safe for
// concurrent use; mutators are serialized and readers see whole states only.
type Reconciler struct {
	mu  sync.Mutex
	cur atomic.Pointer[state]

	canonical []types.ColumnKey
	locked    []types.ColumnKey
	saver     Saver
	log       zerolog.Logger

	// version counts published states; guarded by mu.
	version uint64

	subsMu sync.Mutex
	nextID int
	subs   map[int]func(View)

	// dispatchMu orders deliveries; notified is the last version delivered.
	dispatchMu sync.Mutex
	notified   uint64
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithSaver sets the preference sink.
func WithSaver(s Saver) Option { return func(r *Reconciler) { r.saver = s } }

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option { return func(r *Reconciler) { r.log = l } }

// WithLocked overrides the locked column set.
func WithLocked(keys []types.ColumnKey) Option {
	return func(r *Reconciler) { r.locked = append([]types.ColumnKey(nil), keys...) }
}

// New creates a reconciler from preferences produced by Initialize. A
// non-empty persisted selection counts as an explicit user choice.
func New(prefs types.ViewPreferences, opts ...Option) *Reconciler {
	r := &Reconciler{
		canonical: columns.Canonical(),
		locked:    columns.Locked(),
		log:       zerolog.Nop(),
		subs:      make(map[int]func(View)),
	}
	for _, o := range opts {
		o(r)
	}
	p := Initialize(&prefs, r.canonical, r.locked)
	r.cur.Store(&state{
		rows:           []types.ScreenRow{},
		universe:       []string{},
		prefs:          p,
		userControlled: len(p.SelectedTickers) > 0,
	})
	return r
}

// update applies fn to a copy of the current state and publishes it when fn
// reports a change. Slices in the copy are shared with the published state,
// so fn must replace them rather than write through them.
func (r *Reconciler) update(fn func(next *state) (changed, persist bool)) {
	r.mu.Lock()
	next := *r.cur.Load()
	changed, persist := fn(&next)
	if !changed {
		r.mu.Unlock()
		return
	}
	r.cur.Store(&next)
	r.version++
	version := r.version
	if persist && r.saver != nil {
		r.saver.Save(next.prefs.Clone())
	}
	r.mu.Unlock()
	r.notify(next.derive(r.locked), version)
}

// IngestSnapshot replaces the row snapshot. While the universe is empty it is
// derived from the snapshot's instrument symbols, which may seed the ticker
// selection once.
func (r *Reconciler) IngestSnapshot(rows []types.ScreenRow) {
	snap := make([]types.ScreenRow, 0, len(rows))
	for _, row := range rows {
		if row.Valid() {
			snap = append(snap, row)
		}
	}
	r.update(func(next *state) (bool, bool) {
		next.rows = snap
		if len(next.universe) > 0 {
			return true, false
		}
		syms := make([]string, 0, len(snap))
		for _, row := range snap {
			syms = append(syms, row.InstrumentSymbol)
		}
		next.universe = normalizeTickers(syms)
		if len(next.universe) == 0 {
			return true, false
		}
		return true, r.bootstrap(next)
	})
}

// SetTickerUniverse merges an authoritative ticker list into the universe.
// The universe never shrinks.
func (r *Reconciler) SetTickerUniverse(tickers []string) {
	r.update(func(next *state) (bool, bool) {
		merged := union(next.universe, tickers)
		if len(merged) == len(next.universe) {
			return false, false
		}
		first := len(next.universe) == 0
		next.universe = merged
		if !first {
			return true, false
		}
		return true, r.bootstrap(next)
	})
}

// bootstrap seeds an empty, untouched selection with the universe. It runs on
// the first universe population only and reports whether it seeded.
func (r *Reconciler) bootstrap(next *state) bool {
	if next.bootstrapped {
		return false
	}
	next.bootstrapped = true
	if next.userControlled || len(next.prefs.SelectedTickers) > 0 {
		return false
	}
	next.prefs.SelectedTickers = append([]string(nil), next.universe...)
	r.log.Debug().Int("tickers", len(next.universe)).Msg("ticker selection seeded from universe")
	return true
}

// ToggleTicker adds t to the selection or removes it. Removing the last
// ticker leaves the empty selection, which shows every ticker.
func (r *Reconciler) ToggleTicker(t string) {
	t = normalizeTicker(t)
	if t == "" {
		return
	}
	r.update(func(next *state) (bool, bool) {
		cur := next.prefs.SelectedTickers
		sel := make([]string, 0, len(cur)+1)
		for _, s := range cur {
			if s != t {
				sel = append(sel, s)
			}
		}
		if len(sel) == len(cur) {
			sel = normalizeTickers(append(sel, t))
		}
		next.prefs.SelectedTickers = sel
		next.userControlled = true
		return true, true
	})
}

// SelectAllTickers selects every known ticker.
func (r *Reconciler) SelectAllTickers() {
	r.update(func(next *state) (bool, bool) {
		next.prefs.SelectedTickers = append([]string{}, next.universe...)
		next.userControlled = true
		return true, true
	})
}

// ClearTickerSelection sets the empty selection, meaning show all.
func (r *Reconciler) ClearTickerSelection() {
	r.SelectTickers(nil)
}

// SelectTickers replaces the selection with tickers.
func (r *Reconciler) SelectTickers(tickers []string) {
	sel := normalizeTickers(tickers)
	r.update(func(next *state) (bool, bool) {
		next.prefs.SelectedTickers = sel
		next.userControlled = true
		return true, true
	})
}

// SetColumnOrder replaces the column order. The order must be a permutation
// of the known columns that leaves every locked column in place; otherwise
// the state is unchanged and an *OrderError or *LockedError is returned.
func (r *Reconciler) SetColumnOrder(order []types.ColumnKey) error {
	var err error
	r.update(func(next *state) (bool, bool) {
		cur := next.prefs.ColumnOrder
		if err = r.validateOrder(order, cur); err != nil {
			return false, false
		}
		if slices.Equal(order, cur) {
			return false, false
		}
		next.prefs.ColumnOrder = append([]types.ColumnKey(nil), order...)
		return true, true
	})
	if err != nil {
		r.log.Debug().Err(err).Msg("column order rejected")
	}
	return err
}

// MoveColumn moves from to the position of to, shifting the columns between
// them.
func (r *Reconciler) MoveColumn(from, to types.ColumnKey) error {
	cur := r.cur.Load().prefs.ColumnOrder
	var unknown []types.ColumnKey
	for _, k := range []types.ColumnKey{from, to} {
		if !columns.Contains(cur, k) {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		return &OrderError{Unknown: unknown}
	}
	if columns.Contains(r.locked, from) {
		return &LockedError{Column: from}
	}
	return r.SetColumnOrder(columns.Move(cur, from, to))
}

func (r *Reconciler) validateOrder(order, cur []types.ColumnKey) error {
	count := make(map[types.ColumnKey]int, len(cur))
	for _, k := range cur {
		count[k] = 0
	}
	var e OrderError
	for _, k := range order {
		n, ok := count[k]
		if !ok {
			e.Unknown = append(e.Unknown, k)
			continue
		}
		if n == 1 {
			e.Duplicate = append(e.Duplicate, k)
		}
		count[k] = n + 1
	}
	for _, k := range cur {
		if count[k] == 0 {
			e.Missing = append(e.Missing, k)
		}
	}
	if len(e.Missing)+len(e.Duplicate)+len(e.Unknown) > 0 {
		return &e
	}
	for _, k := range r.locked {
		if columns.IndexOf(order, k) != columns.IndexOf(cur, k) {
			return &LockedError{Column: k}
		}
	}
	return nil
}

// ToggleColumnVisibility hides a visible column or shows a hidden one.
// Locked and unknown columns are ignored.
func (r *Reconciler) ToggleColumnVisibility(col types.ColumnKey) {
	if columns.Contains(r.locked, col) || !columns.Contains(r.canonical, col) {
		return
	}
	r.update(func(next *state) (bool, bool) {
		cur := next.prefs.HiddenColumns
		hidden := make([]types.ColumnKey, 0, len(cur)+1)
		for _, k := range cur {
			if k != col {
				hidden = append(hidden, k)
			}
		}
		if len(hidden) == len(cur) {
			hidden = append(hidden, col)
		}
		next.prefs.HiddenColumns = columns.ComputeHidden(hidden, r.canonical, r.locked)
		return true, true
	})
}

// ResetColumns restores the canonical order and shows every column.
func (r *Reconciler) ResetColumns() {
	r.update(func(next *state) (bool, bool) {
		next.prefs.ColumnOrder = append([]types.ColumnKey(nil), r.canonical...)
		next.prefs.HiddenColumns = []types.ColumnKey{}
		return true, true
	})
}

// SetRefreshMode changes the polling cadence.
func (r *Reconciler) SetRefreshMode(mode types.RefreshMode) error {
	if !mode.Valid() {
		return ErrInvalidMode
	}
	r.update(func(next *state) (bool, bool) {
		if next.prefs.RefreshMode == mode {
			return false, false
		}
		next.prefs.RefreshMode = mode
		return true, true
	})
	return nil
}

// DeriveView computes the visible columns and rows from the current state.
func (r *Reconciler) DeriveView() View {
	return r.cur.Load().derive(r.locked)
}

// Preferences returns a copy of the current preferences.
func (r *Reconciler) Preferences() types.ViewPreferences {
	return r.cur.Load().prefs.Clone()
}

// SelectionState reports whether the selection can still be seeded.
func (r *Reconciler) SelectionState() SelectionState {
	s := r.cur.Load()
	if s.userControlled || s.bootstrapped {
		return UserControlled
	}
	return Bootstrapping
}

// Subscribe registers fn to receive the derived view after every change. Views
// arrive in publish order; a view superseded before its delivery started is
// skipped. fn runs synchronously and must not call mutators. The returned
// func cancels the subscription.
func (r *Reconciler) Subscribe(fn func(View)) (cancel func()) {
	r.subsMu.Lock()
	id := r.nextID
	r.nextID++
	r.subs[id] = fn
	r.subsMu.Unlock()
	return func() {
		r.subsMu.Lock()
		delete(r.subs, id)
		r.subsMu.Unlock()
	}
}

func (r *Reconciler) notify(v View, version uint64) {
	r.dispatchMu.Lock()
	defer r.dispatchMu.Unlock()
	if version <= r.notified {
		return
	}
	r.notified = version
	r.subsMu.Lock()
	fns := make([]func(View), 0, len(r.subs))
	for _, fn := range r.subs {
		fns = append(fns, fn)
	}
	r.subsMu.Unlock()
	for _, fn := range fns {
		fn(v)
	}
}

func (s *state) derive(locked []types.ColumnKey) View {
	sel := s.prefs.SelectedTickers
	rows := make([]types.ScreenRow, 0, len(s.rows))
	for _, row := range s.rows {
		if len(sel) == 0 || containsTicker(sel, row.InstrumentSymbol) {
			rows = append(rows, row)
		}
	}
	return View{
		Columns:  columns.Visible(s.prefs.ColumnOrder, s.prefs.HiddenColumns, locked),
		Rows:     rows,
		Universe: append([]string{}, s.universe...),
		Selected: append([]string{}, sel...),
		Mode:     s.prefs.RefreshMode,
	}
}
