// Package session wires the preference store, the reconciler and exactly one
// data feed together.
package session

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/komsit37/screener/pkg/screener/columns"
	"github.com/komsit37/screener/pkg/screener/feed"
	"github.com/komsit37/screener/pkg/screener/prefs"
	"github.com/komsit37/screener/pkg/screener/view"
)

// Transport names.
const (
	TransportPoll = "poll"
	TransportPush = "push"
)

type Config struct {
	Transport  string
	BaseURL    string
	WSURL      string
	Backoff    feed.Backoff
	HTTPClient *http.Client
	Clock      feed.Clock
	Logger     zerolog.Logger
}

// Session owns one reconciler and at most one running feed.
type Session struct {
	cfg   Config
	log   zerolog.Logger
	saver *prefs.AsyncSaver
	rec   *view.Reconciler

	poller  *feed.Poller
	symbols *feed.SymbolsClient
	active  feed.Feed
}

// Restore builds a reconciler from whatever the store holds.
func Restore(store *prefs.Store, opts ...view.Option) *view.Reconciler {
	p := view.Initialize(store.Load(), columns.Canonical(), columns.Locked())
	return view.New(p, opts...)
}

// New restores preferences from store and prepares the configured feed.
// Preference writes go through an AsyncSaver that Close flushes.
func New(store *prefs.Store, cfg Config) (*Session, error) {
	if cfg.Transport == "" {
		cfg.Transport = TransportPoll
	}
	s := &Session{cfg: cfg, log: cfg.Logger, saver: prefs.NewAsyncSaver(store)}
	s.rec = Restore(store, view.WithSaver(s.saver), view.WithLogger(cfg.Logger))

	p := s.rec.Preferences()
	s.poller = feed.NewPoller(feed.PollerConfig{
		BaseURL: cfg.BaseURL,
		Client:  cfg.HTTPClient,
		Clock:   cfg.Clock,
		Logger:  cfg.Logger.With().Str("feed", TransportPoll).Logger(),
		Tickers: p.SelectedTickers,
		Mode:    p.RefreshMode,
	})
	s.symbols = feed.NewSymbolsClient(cfg.BaseURL, cfg.HTTPClient)

	switch cfg.Transport {
	case TransportPoll:
		s.active = s.poller
	case TransportPush:
		if cfg.WSURL == "" {
			s.saver.Close()
			return nil, fmt.Errorf("push transport requires a websocket url")
		}
		s.active = feed.NewPusher(feed.PusherConfig{
			URL:     cfg.WSURL,
			Backoff: cfg.Backoff,
			Logger:  cfg.Logger.With().Str("feed", TransportPush).Logger(),
		})
	default:
		s.saver.Close()
		return nil, fmt.Errorf("unknown transport %q", cfg.Transport)
	}
	return s, nil
}

// Reconciler returns the session's view state.
func (s *Session) Reconciler() *view.Reconciler { return s.rec }

// Bootstrap loads the ticker universe from /symbols. Failure is logged; the
// universe then comes from the first snapshot.
func (s *Session) Bootstrap(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	syms, err := s.symbols.Symbols(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("symbol bootstrap failed")
		return
	}
	s.rec.SetTickerUniverse(syms)
}

// Run bootstraps the universe and feeds snapshots into the reconciler until
// ctx is done. With polling, selection and mode changes re-parameterize the
// poller.
func (s *Session) Run(ctx context.Context) error {
	s.Bootstrap(ctx)

	if s.cfg.Transport == TransportPoll {
		cancel := s.rec.Subscribe(func(v view.View) {
			s.poller.SetParams(v.Selected, v.Mode)
		})
		defer cancel()
		v := s.rec.DeriveView()
		s.poller.SetParams(v.Selected, v.Mode)
	}

	unsubscribe := s.active.Subscribe(s.rec.IngestSnapshot)
	s.log.Info().Str("transport", s.cfg.Transport).Msg("feed started")
	<-ctx.Done()
	unsubscribe()
	s.log.Info().Msg("feed stopped")
	return nil
}

// Once fetches the universe and a single snapshot over HTTP.
func (s *Session) Once(ctx context.Context) (view.View, error) {
	s.Bootstrap(ctx)
	v := s.rec.DeriveView()
	s.poller.SetParams(v.Selected, v.Mode)
	rows, err := s.poller.FetchOnce(ctx)
	if err != nil {
		return view.View{}, fmt.Errorf("fetch screen: %w", err)
	}
	s.rec.IngestSnapshot(rows)
	return s.rec.DeriveView(), nil
}

// Close flushes pending preference writes.
func (s *Session) Close() error {
	return s.saver.Close()
}
