package feed

import (
	"context"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/komsit37/screener/pkg/screener/decode"
	"github.com/komsit37/screener/pkg/screener/types"
)

// PollerConfig configures a Poller. BaseURL is required.
type PollerConfig struct {
	BaseURL string
	Client  *http.Client
	Clock   Clock
	Logger  zerolog.Logger
	Tickers []string
	Mode    types.RefreshMode
}

// Poller requests GET /screen for the current tickers on the interval of the
// current refresh mode. Exactly one interval ticker exists while subscribed.
//
// Each request records a sequence number and the ticker generation it was
// issued for. A response is applied only if no later request has been
// applied and the ticker set has not changed since; a refresh mode change
// alone does not invalidate in-flight requests.
type Poller struct {
	base   string
	client *http.Client
	clock  Clock
	log    zerolog.Logger

	mu      sync.Mutex
	tickers []string
	mode    types.RefreshMode
	gen     uint64
	seq     uint64
	applied uint64
	running bool
	ticker  Ticker
	stop    chan struct{}
	ctx     context.Context
	cancel  context.CancelFunc
	onSnap  func([]types.ScreenRow)

	// deliver serializes callbacks in applied order.
	deliver sync.Mutex
}

func NewPoller(cfg PollerConfig) *Poller {
	p := &Poller{
		base:    strings.TrimRight(cfg.BaseURL, "/"),
		client:  cfg.Client,
		clock:   cfg.Clock,
		log:     cfg.Logger,
		tickers: slices.Clone(cfg.Tickers),
		mode:    cfg.Mode,
	}
	if p.client == nil {
		p.client = defaultClient()
	}
	if p.clock == nil {
		p.clock = RealClock()
	}
	if !p.mode.Valid() {
		p.mode = types.RefreshFast
	}
	return p
}

// Subscribe fetches immediately and then on every tick. A Poller serves a
// single subscriber; subscribing again replaces the callback.
func (p *Poller) Subscribe(onSnapshot func([]types.ScreenRow)) (unsubscribe func()) {
	p.mu.Lock()
	p.onSnap = onSnapshot
	if !p.running {
		p.running = true
		p.ctx, p.cancel = context.WithCancel(context.Background())
		p.startLocked()
		p.fetchLocked()
	}
	p.mu.Unlock()
	return p.shutdown
}

func (p *Poller) shutdown() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return
	}
	p.running = false
	p.stopLocked()
	p.cancel()
	p.log.Debug().Msg("poller stopped")
}

// SetParams updates the ticker set and refresh mode. Any change tears down
// the current interval and starts a new one; a ticker change also fetches
// immediately and invalidates in-flight requests.
func (p *Poller) SetParams(tickers []string, mode types.RefreshMode) {
	if !mode.Valid() {
		mode = types.RefreshFast
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	tickersChanged := !slices.Equal(tickers, p.tickers)
	modeChanged := mode != p.mode
	if !tickersChanged && !modeChanged {
		return
	}
	p.mode = mode
	if tickersChanged {
		p.tickers = slices.Clone(tickers)
		p.gen++
	}
	if !p.running {
		return
	}
	p.stopLocked()
	p.startLocked()
	if tickersChanged {
		p.fetchLocked()
	}
	p.log.Debug().
		Strs("tickers", p.tickers).
		Str("mode", string(p.mode)).
		Bool("refetch", tickersChanged).
		Msg("poller restarted")
}

func (p *Poller) startLocked() {
	t := p.clock.NewTicker(p.mode.Interval())
	stop := make(chan struct{})
	p.ticker, p.stop = t, stop
	go func() {
		for {
			select {
			case <-t.C():
				p.mu.Lock()
				select {
				case <-stop:
					p.mu.Unlock()
					return
				default:
				}
				p.fetchLocked()
				p.mu.Unlock()
			case <-stop:
				return
			}
		}
	}()
}

func (p *Poller) stopLocked() {
	if p.ticker == nil {
		return
	}
	p.ticker.Stop()
	close(p.stop)
	p.ticker, p.stop = nil, nil
}

// fetchLocked issues one request in the background.
func (p *Poller) fetchLocked() {
	p.seq++
	seq, gen := p.seq, p.gen
	u := p.screenURL(p.tickers)
	ctx := p.ctx
	go p.fetch(ctx, u, seq, gen)
}

func (p *Poller) fetch(ctx context.Context, u string, seq, gen uint64) {
	body, err := get(ctx, p.client, u)
	if err != nil {
		if ctx.Err() == nil {
			p.log.Warn().Err(err).Str("url", u).Msg("screen poll failed")
		}
		return
	}
	rows, err := decode.Rows(body)
	if err != nil {
		p.log.Warn().Err(err).Msg("discarding malformed screen response")
		return
	}

	p.deliver.Lock()
	defer p.deliver.Unlock()
	p.mu.Lock()
	stale := !p.running || gen != p.gen || seq <= p.applied
	if !stale {
		p.applied = seq
	}
	cb := p.onSnap
	p.mu.Unlock()
	if stale {
		p.log.Debug().Uint64("seq", seq).Msg("discarding stale screen response")
		return
	}
	cb(rows)
}

// FetchOnce performs a single request for the current tickers outside the
// interval and sequencing machinery.
func (p *Poller) FetchOnce(ctx context.Context) ([]types.ScreenRow, error) {
	p.mu.Lock()
	u := p.screenURL(p.tickers)
	p.mu.Unlock()
	body, err := get(ctx, p.client, u)
	if err != nil {
		return nil, err
	}
	return decode.Rows(body)
}

func (p *Poller) screenURL(tickers []string) string {
	if len(tickers) == 0 {
		return p.base + "/screen"
	}
	q := url.Values{}
	for _, t := range tickers {
		q.Add("tickers", t)
	}
	return p.base + "/screen?" + q.Encode()
}

// SymbolsClient reads the ticker universe from GET /symbols.
type SymbolsClient struct {
	base   string
	client *http.Client
}

func NewSymbolsClient(baseURL string, client *http.Client) *SymbolsClient {
	if client == nil {
		client = defaultClient()
	}
	return &SymbolsClient{base: strings.TrimRight(baseURL, "/"), client: client}
}

// Symbols returns the upper-cased, deduplicated ticker list.
func (c *SymbolsClient) Symbols(ctx context.Context) ([]string, error) {
	body, err := get(ctx, c.client, c.base+"/symbols")
	if err != nil {
		return nil, err
	}
	return decode.Symbols(body)
}
