package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoadDefaults(t *testing.T) {
	testChdir(t, t.TempDir())
	t.Setenv("HOME", t.TempDir())
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Feed.Transport != "poll" || cfg.Prefs.Backend != "file" || cfg.UI.Locale != "ru" || cfg.UI.Layout != "auto" {
		t.Errorf("defaults = %+v", cfg)
	}
	if cfg.API.WSURL != "ws://localhost:8000/ws/screener" {
		t.Errorf("derived ws url = %q", cfg.API.WSURL)
	}
	if b := cfg.Feed.Reconnect.Backoff(); b.Initial != time.Second || b.Max != 30*time.Second || b.Factor != 2 {
		t.Errorf("backoff = %+v", b)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	testChdir(t, dir)
	path := writeFile(t, dir, "screener.yaml", `
api:
  base_url: https://screener.example.com/api
feed:
  transport: push
  reconnect:
    initial: 250ms
    max: 5s
prefs:
  backend: sqlite
  path: /tmp/prefs.db
ui:
  layout: cards
`)
	t.Setenv("SCREENER_UI_LOCALE", "en")
	t.Setenv("SCREENER_ORDER_ACCOUNT", "main")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.API.WSURL != "wss://screener.example.com/api/ws/screener" {
		t.Errorf("ws url = %q", cfg.API.WSURL)
	}
	if cfg.Feed.Reconnect.Initial != 250*time.Millisecond || cfg.Feed.Reconnect.Max != 5*time.Second {
		t.Errorf("reconnect = %+v", cfg.Feed.Reconnect)
	}
	if cfg.Prefs.Backend != "sqlite" || cfg.UI.Layout != "cards" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.UI.Locale != "en" || cfg.Order.Account != "main" {
		t.Errorf("env overrides not applied: %+v", cfg)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	testChdir(t, dir)
	t.Setenv("HOME", t.TempDir())
	writeFile(t, dir, ".env", "SCREENER_LOG_LEVEL=debug\n")
	t.Cleanup(func() { os.Unsetenv("SCREENER_LOG_LEVEL") })

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log level = %q", cfg.Log.Level)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	testChdir(t, t.TempDir())
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("missing explicit config accepted")
	}
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()
	testChdir(t, dir)
	path := writeFile(t, dir, "bad.yaml", `
api:
  base_url: localhost
feed:
  transport: carrier
prefs:
  backend: etcd
ui:
  locale: de
  layout: grid
`)
	_, err := Load(path)
	if err == nil {
		t.Fatal("invalid config accepted")
	}
	for _, want := range []string{"api.base_url", "feed.transport", "prefs.backend", "ui.locale", "ui.layout"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error missing %s: %v", want, err)
		}
	}
}
