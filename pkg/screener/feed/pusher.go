package feed

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/komsit37/screener/pkg/screener/decode"
	"github.com/komsit37/screener/pkg/screener/types"
)

// PusherConfig configures a Pusher. URL is the full ws:// or wss:// address
// of the screener stream.
type PusherConfig struct {
	URL     string
	Backoff Backoff
	Dialer  *websocket.Dialer
	Header  http.Header
	Logger  zerolog.Logger
}

// Pusher keeps one websocket connection open, reconnecting with backoff, and
// forwards every screener message as a snapshot. Malformed messages are
// dropped whole.
type Pusher struct {
	cfg PusherConfig

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewPusher(cfg PusherConfig) *Pusher {
	if cfg.Dialer == nil {
		cfg.Dialer = &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 10 * time.Second,
		}
	}
	return &Pusher{cfg: cfg}
}

// Subscribe starts the connection loop. Unsubscribe closes the connection
// and waits for the loop to exit.
func (p *Pusher) Subscribe(onSnapshot func([]types.ScreenRow)) (unsubscribe func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		p.cancel()
		<-p.done
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	p.cancel, p.done = cancel, done
	go func() {
		defer close(done)
		p.run(ctx, onSnapshot)
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}
}

func (p *Pusher) run(ctx context.Context, on func([]types.ScreenRow)) {
	log := p.cfg.Logger.With().Str("url", p.cfg.URL).Logger()
	attempt := 0
	for {
		conn, _, err := p.cfg.Dialer.DialContext(ctx, p.cfg.URL, p.cfg.Header)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			delay := p.cfg.Backoff.Delay(attempt)
			log.Warn().Err(err).Dur("retry_in", delay).Msg("screener stream connect failed")
			attempt++
			if !sleep(ctx, delay) {
				return
			}
			continue
		}
		log.Info().Msg("screener stream connected")
		start := time.Now()
		delivered, err := p.read(ctx, conn, on)
		if ctx.Err() != nil {
			return
		}
		// a connection only counts as healthy once it produced a snapshot
		// or outlived the longest backoff
		if delivered || time.Since(start) >= p.cfg.Backoff.withDefaults().Max {
			attempt = 0
		}
		delay := p.cfg.Backoff.Delay(attempt)
		attempt++
		log.Warn().Err(err).Dur("retry_in", delay).Msg("screener stream lost")
		if !sleep(ctx, delay) {
			return
		}
	}
}

// read forwards snapshots until the connection fails and reports whether
// any snapshot was delivered.
func (p *Pusher) read(ctx context.Context, conn *websocket.Conn, on func([]types.ScreenRow)) (bool, error) {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			conn.Close()
		case <-stop:
			conn.Close()
		}
	}()

	delivered := false
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return delivered, err
		}
		rows, ok, err := decode.Message(data)
		if err != nil {
			p.cfg.Logger.Debug().Err(err).Msg("discarding malformed stream message")
			continue
		}
		if !ok {
			continue
		}
		on(rows)
		delivered = true
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
