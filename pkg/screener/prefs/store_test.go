package prefs

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/rs/zerolog"

	"github.com/komsit37/screener/pkg/screener/columns"
	"github.com/komsit37/screener/pkg/screener/types"
	"github.com/komsit37/screener/pkg/screener/view"
)

func samplePrefs() types.ViewPreferences {
	return types.ViewPreferences{
		SelectedTickers: []string{"GAZP", "SBER"},
		ColumnOrder:     columns.Canonical(),
		HiddenColumns:   []types.ColumnKey{columns.Delta},
		RefreshMode:     types.RefreshSlow,
	}
}

func backends(t *testing.T) map[string]func() KV {
	t.Helper()
	dir := t.TempDir()
	return map[string]func() KV{
		"memory": func() KV {
			return NewMemoryKV()
		},
		"file": func() KV {
			kv, err := NewFileKV(filepath.Join(dir, "prefs.yaml"))
			if err != nil {
				t.Fatalf("NewFileKV: %v", err)
			}
			return kv
		},
		"sqlite": func() KV {
			kv, err := NewSQLiteKV(filepath.Join(dir, "prefs.db"))
			if err != nil {
				t.Fatalf("NewSQLiteKV: %v", err)
			}
			return kv
		},
	}
}

func TestStoreRoundTrip(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			kv := open()
			defer kv.Close()
			s := NewStore(kv, zerolog.Nop())
			if got := s.Load(); got != nil {
				t.Fatalf("first run Load = %+v, want nil", got)
			}
			want := samplePrefs()
			if err := s.Save(want); err != nil {
				t.Fatal(err)
			}
			got := s.Load()
			if got == nil || !reflect.DeepEqual(*got, want) {
				t.Errorf("Load = %+v, want %+v", got, want)
			}
		})
	}
}

func TestFileKVPersistsAcrossOpens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "prefs.yaml")
	kv, err := NewFileKV(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := NewStore(kv, zerolog.Nop()).Save(samplePrefs()); err != nil {
		t.Fatal(err)
	}
	kv2, err := NewFileKV(path)
	if err != nil {
		t.Fatal(err)
	}
	got := NewStore(kv2, zerolog.Nop()).Load()
	if got == nil || got.RefreshMode != types.RefreshSlow {
		t.Errorf("reopened Load = %+v", got)
	}
}

func TestFileKVCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.yaml")
	if err := os.WriteFile(path, []byte("::: not yaml\n\t- ["), 0o644); err != nil {
		t.Fatal(err)
	}
	kv, err := Open(BackendFile, path)
	if !errors.Is(err, ErrCorrupt) {
		t.Fatalf("err = %v, want ErrCorrupt", err)
	}
	if kv == nil {
		t.Fatal("corrupt file must still yield a usable store")
	}
	if got := NewStore(kv, zerolog.Nop()).Load(); got != nil {
		t.Errorf("Load = %+v", got)
	}
}

func TestLoadFallsBackPerField(t *testing.T) {
	kv := NewMemoryKV()
	_ = kv.Set(map[string]string{
		KeyTickers: `["SBER"]`,
		KeyColumns: `{not json`,
		KeyHidden:  `["aktsiya","delta","ghost"]`,
		KeyMode:    `"slow"`,
	})
	got := NewStore(kv, zerolog.Nop()).Load()
	if got == nil {
		t.Fatal("Load = nil")
	}
	if !reflect.DeepEqual(got.SelectedTickers, []string{"SBER"}) {
		t.Errorf("SelectedTickers = %v", got.SelectedTickers)
	}
	if got.ColumnOrder != nil {
		t.Errorf("malformed columns not dropped: %v", got.ColumnOrder)
	}
	if got.RefreshMode != types.RefreshSlow {
		t.Errorf("quoted mode not accepted: %q", got.RefreshMode)
	}

	p := view.Initialize(got, columns.Canonical(), columns.Locked())
	if !reflect.DeepEqual(p.ColumnOrder, columns.Canonical()) {
		t.Errorf("ColumnOrder = %v", p.ColumnOrder)
	}
	if !reflect.DeepEqual(p.HiddenColumns, []types.ColumnKey{columns.Delta}) {
		t.Errorf("HiddenColumns = %v", p.HiddenColumns)
	}
}

func TestLoadSubsetOfKeys(t *testing.T) {
	kv := NewMemoryKV()
	_ = kv.Set(map[string]string{KeyMode: "warp"})
	got := NewStore(kv, zerolog.Nop()).Load()
	if got == nil {
		t.Fatal("Load = nil with one key present")
	}
	if got.RefreshMode != "" || got.SelectedTickers != nil {
		t.Errorf("Load = %+v", got)
	}
}

func TestSaveWritesEmptyArrays(t *testing.T) {
	kv := NewMemoryKV()
	if err := NewStore(kv, zerolog.Nop()).Save(types.ViewPreferences{RefreshMode: types.RefreshFast}); err != nil {
		t.Fatal(err)
	}
	for key, want := range map[string]string{KeyTickers: "[]", KeyHidden: "[]", KeyMode: "fast"} {
		if v, _, _ := kv.Get(key); v != want {
			t.Errorf("%s = %q, want %q", key, v, want)
		}
	}
}

type failingKV struct{ *MemoryKV }

func (failingKV) Set(map[string]string) error { return errors.New("disk full") }

func TestAsyncSaverCoalescesAndFlushes(t *testing.T) {
	kv := NewMemoryKV()
	a := NewAsyncSaver(NewStore(kv, zerolog.Nop()))
	p := samplePrefs()
	for _, m := range []types.RefreshMode{types.RefreshFast, types.RefreshSlow, types.RefreshFast} {
		p.RefreshMode = m
		a.Save(p)
	}
	if err := a.Close(); err != nil {
		t.Fatal(err)
	}
	if v, _, _ := kv.Get(KeyMode); v != "fast" {
		t.Errorf("mode = %q, want latest value", v)
	}
	a.Save(samplePrefs())
	if v, _, _ := kv.Get(KeyMode); v != "fast" {
		t.Errorf("save after close was written")
	}
	if err := a.Close(); err != nil {
		t.Errorf("second Close = %v", err)
	}
}

func TestAsyncSaverSwallowsErrors(t *testing.T) {
	a := NewAsyncSaver(NewStore(failingKV{NewMemoryKV()}, zerolog.Nop()))
	a.Save(samplePrefs())
	if err := a.Close(); err != nil {
		t.Errorf("Close = %v", err)
	}
}
