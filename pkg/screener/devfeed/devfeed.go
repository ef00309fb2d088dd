// Package devfeed is a synthetic screener backend for development and tests.
// It serves the same HTTP and websocket surface as the production service
// with prices that drift on every tick.
package devfeed

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/komsit37/screener/pkg/screener/decode"
	"github.com/komsit37/screener/pkg/screener/types"
)

// DefaultSymbols is the universe served when none is configured.
var DefaultSymbols = []string{"SBER", "GAZP", "LKOH", "MOEX", "PLZL", "X5"}

// Dialect selects the wire field names.
type Dialect string

const (
	Latin    Dialect = "latin"
	Cyrillic Dialect = "cyrillic"
)

type Config struct {
	Symbols  []string
	Interval time.Duration
	Dialect  Dialect
	Logger   zerolog.Logger
	// Now overrides the clock used for day counts.
	Now func() time.Time
}

// Server produces snapshots and fans them out to websocket clients.
type Server struct {
	cfg Config

	mu      sync.Mutex
	tick    int
	clients map[*client]struct{}
	orders  []map[string]any
}

type client struct {
	conn *websocket.Conn
	out  chan []byte
	done chan struct{}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

func New(cfg Config) *Server {
	if len(cfg.Symbols) == 0 {
		cfg.Symbols = DefaultSymbols
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	if cfg.Dialect == "" {
		cfg.Dialect = Latin
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Server{cfg: cfg, clients: make(map[*client]struct{})}
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /screen", s.handleScreen)
	mux.HandleFunc("GET /symbols", s.handleSymbols)
	mux.HandleFunc("POST /orders", s.handleOrder)
	mux.HandleFunc("GET /ws/screener", s.handleWS)
	return mux
}

// Run advances the tick and broadcasts a snapshot every interval until ctx
// is done.
func (s *Server) Run(ctx context.Context) {
	t := time.NewTicker(s.cfg.Interval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			s.Advance()
			s.Broadcast()
		case <-ctx.Done():
			return
		}
	}
}

// Advance moves prices one step.
func (s *Server) Advance() {
	s.mu.Lock()
	s.tick++
	s.mu.Unlock()
}

// Broadcast pushes the current full snapshot to every connected client.
func (s *Server) Broadcast() {
	msg := s.envelope()
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		select {
		case c.out <- msg:
		default:
		}
	}
}

// Disconnect drops every websocket client, as a backend restart would.
func (s *Server) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		c.conn.Close()
	}
}

// Clients returns the number of connected websocket clients.
func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// Orders returns the order bodies received so far.
func (s *Server) Orders() []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]map[string]any(nil), s.orders...)
}

// Rows returns the snapshot for tickers; an empty list means every symbol.
// Unknown tickers are skipped.
func (s *Server) Rows(tickers []string) []types.ScreenRow {
	s.mu.Lock()
	tick := s.tick
	s.mu.Unlock()

	idx := make([]int, 0, len(s.cfg.Symbols))
	if len(tickers) == 0 {
		for i := range s.cfg.Symbols {
			idx = append(idx, i)
		}
	}
	for _, t := range tickers {
		t = strings.ToUpper(strings.TrimSpace(t))
		for i, sym := range s.cfg.Symbols {
			if sym == t {
				idx = append(idx, i)
				break
			}
		}
	}
	now := s.cfg.Now()
	rows := make([]types.ScreenRow, 0, len(idx))
	for _, i := range idx {
		rows = append(rows, synth(s.cfg.Symbols[i], i, tick, now))
	}
	return rows
}

func (s *Server) handleScreen(w http.ResponseWriter, r *http.Request) {
	rows := s.Rows(r.URL.Query()["tickers"])
	writeJSON(w, http.StatusOK, s.wire(rows))
}

func (s *Server) handleSymbols(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.cfg.Symbols)
}

func (s *Server) handleOrder(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if t, _ := body["ticker"].(string); t == "" {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": "ticker required"})
		return
	}
	s.mu.Lock()
	s.orders = append(s.orders, body)
	s.mu.Unlock()
	s.cfg.Logger.Info().Interface("order", body).Msg("order received")
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "accepted",
		"order_id":   uuid.NewString(),
		"request_id": r.Header.Get("X-Request-ID"),
		"order":      body,
	})
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	c := &client{conn: conn, out: make(chan []byte, 16), done: make(chan struct{})}

	// greet, then the current snapshot so a new client is never empty
	status, _ := json.Marshal(map[string]string{"type": "status", "text": "connected"})
	c.out <- status
	c.out <- s.envelope()

	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.clients, c)
		s.mu.Unlock()
		close(c.done)
	}()

	go func() {
		ping := time.NewTicker(45 * time.Second)
		defer ping.Stop()
		for {
			select {
			case msg := <-c.out:
				if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
					conn.Close()
					return
				}
			case <-ping.C:
				_ = conn.WriteMessage(websocket.PingMessage, nil)
			case <-c.done:
				return
			}
		}
	}()

	// drain client frames until the connection goes away
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) envelope() []byte {
	b, _ := json.Marshal(map[string]any{
		"type": "screener",
		"data": s.wire(s.Rows(nil)),
	})
	return b
}

// wire encodes rows with the configured dialect.
func (s *Server) wire(rows []types.ScreenRow) []map[string]any {
	out := make([]map[string]any, 0, len(rows))
	for _, r := range rows {
		m := decode.Encode(r)
		if s.cfg.Dialect == Cyrillic {
			m = toCyrillic(m)
		}
		out = append(out, m)
	}
	return out
}

func toCyrillic(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for _, aliases := range decode.Aliases {
		v := m[aliases[0]]
		if len(aliases) > 1 {
			out[aliases[1]] = v
			continue
		}
		out[aliases[0]] = v
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

var basePrices = map[string]int64{
	"SBER": 270, "GAZP": 130, "LKOH": 6900, "MOEX": 190, "PLZL": 15000, "X5": 3000, "YDEX": 5500,
}

// synth builds one row. Symbols at odd universe positions pay no dividend and leave
// the dividend fields absent.
func synth(sym string, idx, tick int, now time.Time) types.ScreenRow {
	base, ok := basePrices[sym]
	if !ok {
		base = 100 + int64(idx)*10
	}
	spot := decimal.NewFromInt(base).Add(decimal.NewFromInt(int64(tick % 5)))
	fut := spot.Mul(decimal.RequireFromString("1.012")).Add(decimal.NewFromInt(int64(tick%11)).Div(decimal.NewFromInt(10)))
	margin := spot.Mul(decimal.RequireFromString("0.15")).Round(2)
	hundred := decimal.NewFromInt(100)

	expiry := time.Date(now.Year(), 12, 18, 0, 0, 0, 0, time.UTC)
	if now.After(expiry) {
		expiry = expiry.AddDate(1, 0, 0)
	}
	daysToExp := int(expiry.Sub(now).Hours() / 24)

	basis := fut.Sub(spot)
	entry := basis.Div(spot).Mul(hundred).Round(2)
	exit := entry.Neg().Div(decimal.NewFromInt(2)).Round(2)
	fair := spot.Mul(decimal.NewFromInt(1).Add(decimal.RequireFromString("0.16").Mul(decimal.NewFromInt(int64(daysToExp))).Div(decimal.NewFromInt(365)))).Round(2)
	delta := fut.Sub(fair).Div(fair).Mul(hundred).Round(2)
	total := basis.Div(margin).Mul(hundred).Round(2)
	incomeExp := total.Mul(decimal.NewFromInt(365)).Div(decimal.NewFromInt(int64(max(daysToExp, 1)))).Round(2)

	r := types.ScreenRow{
		InstrumentSymbol:  sym,
		DerivativeSymbol:  sym + "-12." + expiry.Format("06"),
		SpotPrice:         &spot,
		FuturesPrice:      &fut,
		MarginPerShare:    &margin,
		EntrySpreadPct:    &entry,
		ExitSpreadPct:     &exit,
		FairValue:         &fair,
		DeltaPct:          &delta,
		TotalCapitalPct:   &total,
		DaysToExpiry:      &daysToExp,
		IncomeToExpiryPct: &incomeExp,
	}
	if idx%2 == 0 {
		ex := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 17)
		amount := spot.Mul(decimal.RequireFromString("0.08")).Round(2)
		before := ex.Before(expiry)
		days := int(ex.Sub(now).Hours() / 24)
		income := amount.Div(spot).Mul(hundred).Round(2)
		r.DividendExDate = &ex
		r.DividendAmount = &amount
		r.HasDividendBeforeExpiry = &before
		r.DaysToExDate = &days
		r.IncomeToExPct = &income
	}
	return r
}
