package prefs

import (
	"encoding/json"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/komsit37/screener/pkg/screener/types"
)

// Persisted keys.
const (
	KeyTickers = "tickers"
	KeyColumns = "columns"
	KeyHidden  = "hidden"
	KeyMode    = "mode"
)

// Store maps ViewPreferences onto four independent KV keys.
type Store struct {
	kv  KV
	log zerolog.Logger
}

func NewStore(kv KV, log zerolog.Logger) *Store {
	return &Store{kv: kv, log: log}
}

// Load returns the persisted preferences, or nil when none of the keys
// exist. A key that cannot be read or parsed leaves its field at the zero
// value for view.Initialize to default; Load never fails.
func (s *Store) Load() *types.ViewPreferences {
	var p types.ViewPreferences
	found := false

	if raw, ok := s.get(KeyTickers); ok {
		found = true
		var v []string
		if s.parse(KeyTickers, raw, &v) {
			p.SelectedTickers = v
		}
	}
	if raw, ok := s.get(KeyColumns); ok {
		found = true
		var v []types.ColumnKey
		if s.parse(KeyColumns, raw, &v) {
			p.ColumnOrder = v
		}
	}
	if raw, ok := s.get(KeyHidden); ok {
		found = true
		var v []types.ColumnKey
		if s.parse(KeyHidden, raw, &v) {
			p.HiddenColumns = v
		}
	}
	if raw, ok := s.get(KeyMode); ok {
		found = true
		p.RefreshMode = parseMode(raw)
	}
	if !found {
		return nil
	}
	return &p
}

// Save writes all four keys in one Set.
func (s *Store) Save(p types.ViewPreferences) error {
	entries := map[string]string{
		KeyTickers: mustJSON(nonNil(p.SelectedTickers)),
		KeyColumns: mustJSON(nonNil(p.ColumnOrder)),
		KeyHidden:  mustJSON(nonNil(p.HiddenColumns)),
		KeyMode:    string(p.RefreshMode),
	}
	return s.kv.Set(entries)
}

func (s *Store) get(key string) (string, bool) {
	v, ok, err := s.kv.Get(key)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("prefs read failed")
		return "", false
	}
	return v, ok
}

func (s *Store) parse(key, raw string, v any) bool {
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		s.log.Debug().Err(err).Str("key", key).Msg("ignoring malformed prefs value")
		return false
	}
	return true
}

// parseMode accepts the bare literal and a JSON string.
func parseMode(raw string) types.RefreshMode {
	raw = strings.TrimSpace(raw)
	var quoted string
	if json.Unmarshal([]byte(raw), &quoted) == nil {
		raw = quoted
	}
	m := types.RefreshMode(raw)
	if !m.Valid() {
		return ""
	}
	return m
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// mustJSON is only used with string slices, which always marshal.
func mustJSON(v any) string {
	b, _ := json.Marshal(v)
	return string(b)
}

// AsyncSaver writes preferences on a background goroutine. Saves coalesce:
// only the latest pending value is written. It satisfies view.Saver.
type AsyncSaver struct {
	store *Store

	mu      sync.Mutex
	pending *types.ViewPreferences
	closed  bool
	wake    chan struct{}
	done    chan struct{}
}

func NewAsyncSaver(store *Store) *AsyncSaver {
	a := &AsyncSaver{
		store: store,
		wake:  make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
	go a.loop()
	return a
}

// Save queues p and returns immediately. Saves after Close are dropped.
func (a *AsyncSaver) Save(p types.ViewPreferences) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	p = p.Clone()
	a.pending = &p
	select {
	case a.wake <- struct{}{}:
	default:
	}
}

// Close flushes the pending value and stops the writer.
func (a *AsyncSaver) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	close(a.wake)
	a.mu.Unlock()
	<-a.done
	return nil
}

func (a *AsyncSaver) loop() {
	defer close(a.done)
	for range a.wake {
		a.flush()
	}
	a.flush()
}

func (a *AsyncSaver) flush() {
	a.mu.Lock()
	p := a.pending
	a.pending = nil
	a.mu.Unlock()
	if p == nil {
		return
	}
	if err := a.store.Save(*p); err != nil {
		a.store.log.Warn().Err(err).Msg("saving preferences failed")
	}
}
