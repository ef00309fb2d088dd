package main

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/komsit37/screener/pkg/screener/columns"
	"github.com/komsit37/screener/pkg/screener/config"
	"github.com/komsit37/screener/pkg/screener/logging"
	"github.com/komsit37/screener/pkg/screener/prefs"
	"github.com/komsit37/screener/pkg/screener/render"
	"github.com/komsit37/screener/pkg/screener/session"
	"github.com/komsit37/screener/pkg/screener/types"
	"github.com/komsit37/screener/pkg/screener/view"
)

// app carries what every subcommand needs once flags and config are read.
type app struct {
	cfgPath  string
	layout   string
	locale   string
	logLevel string
	noColor  bool

	cfg      *config.Config
	log      zerolog.Logger
	closeLog func() error
	out      io.Writer
}

func main() {
	a := &app{out: os.Stdout, closeLog: func() error { return nil }}
	rootCmd := &cobra.Command{
		Use:           "screener",
		Short:         "Live futures/spot screener",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.closeLog()
		},
	}
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&a.cfgPath, "config", "", "config file (default ~/.config/screener/config.yaml)")
	pf.StringVar(&a.layout, "layout", "", "output layout: auto, table, cards, json, syms")
	pf.StringVar(&a.locale, "locale", "", "label language: ru, en")
	pf.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.BoolVar(&a.noColor, "no-color", false, "disable colours")

	rootCmd.AddCommand(
		newWatchCmd(a),
		newShowCmd(a),
		newColumnsCmd(a),
		newTickersCmd(a),
		newModeCmd(a),
		newOrderCmd(a),
		newDevfeedCmd(a),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func (a *app) init() error {
	cfg, err := config.Load(a.cfgPath)
	if err != nil {
		return err
	}
	if a.layout != "" {
		cfg.UI.Layout = a.layout
	}
	if a.locale != "" {
		cfg.UI.Locale = a.locale
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if a.noColor {
		cfg.UI.Color = false
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg
	a.log, a.closeLog = logging.New(logging.Config{Level: cfg.Log.Level, File: cfg.Log.File, NoColor: !cfg.UI.Color})
	return nil
}

// openStore opens the configured preference backend. A corrupt file is
// reported and replaced by defaults.
func (a *app) openStore() (*prefs.Store, func() error, error) {
	kv, err := prefs.Open(a.cfg.Prefs.Backend, a.cfg.Prefs.Path)
	if err != nil {
		if kv == nil || !errors.Is(err, prefs.ErrCorrupt) {
			return nil, nil, fmt.Errorf("open preferences: %w", err)
		}
		a.log.Warn().Err(err).Msg("ignoring corrupt preferences")
	}
	return prefs.NewStore(kv, a.log), kv.Close, nil
}

// reconciler restores preferences for a one-shot command. Changes are written
// through synchronously.
func (a *app) reconciler(store *prefs.Store) *view.Reconciler {
	saver := view.SaverFunc(func(p types.ViewPreferences) {
		if err := store.Save(p); err != nil {
			a.log.Error().Err(err).Msg("saving preferences failed")
		}
	})
	return session.Restore(store, view.WithSaver(saver), view.WithLogger(a.log))
}

func (a *app) newSession(store *prefs.Store) (*session.Session, error) {
	return session.New(store, session.Config{
		Transport:  a.cfg.Feed.Transport,
		BaseURL:    a.cfg.API.BaseURL,
		WSURL:      a.cfg.API.WSURL,
		Backoff:    a.cfg.Feed.Reconnect.Backoff(),
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
		Logger:     a.log,
	})
}

func (a *app) renderer() (render.Renderer, error) {
	return render.New(a.cfg.UI.Layout, detectTerminalWidth())
}

func (a *app) renderOptions() render.Options {
	return render.Options{
		Locale:     columns.Locale(a.cfg.UI.Locale),
		Color:      a.cfg.UI.Color,
		PrettyJSON: true,
	}
}
