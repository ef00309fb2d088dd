package order

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	yfgo "github.com/komsit37/yf-go"
)

// Quote is a reference price shown next to a ticket. It is informational
// only and never sent with the order.
type Quote struct {
	Symbol    string
	Name      string
	Price     string
	ChangePct string
}

// QuoteService fetches a reference quote for a ticker.
type QuoteService interface {
	Get(ctx context.Context, ticker string) (Quote, error)
}

// YahooSymbol maps a bare exchange ticker to its Yahoo Finance symbol.
// Symbols that already carry a suffix are left alone.
func YahooSymbol(ticker string) string {
	t := strings.ToUpper(strings.TrimSpace(ticker))
	if t == "" || strings.Contains(t, ".") {
		return t
	}
	return t + ".ME"
}

// YFService implements QuoteService using yf-go.
type YFService struct {
	client  *yfgo.Client
	timeout time.Duration
}

func NewYFService(timeout time.Duration) *YFService {
	return &YFService{client: yfgo.NewClient(), timeout: timeout}
}

func (s *YFService) Get(ctx context.Context, ticker string) (Quote, error) {
	sym := YahooSymbol(ticker)
	if sym == "" {
		return Quote{}, nil
	}
	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	res, err := s.client.QuoteSummaryTyped(cctx, sym, []yfgo.QuoteSummaryModule{yfgo.ModulePrice})
	if err != nil {
		return Quote{}, fmt.Errorf("quote %s: %w", sym, err)
	}
	if res.Price == nil {
		return Quote{}, fmt.Errorf("no price for %s", sym)
	}

	q := Quote{Symbol: sym}
	p := res.Price.RegularMarketPrice
	if p.Fmt != "" {
		q.Price = p.Fmt
	} else if p.Raw != nil {
		q.Price = fmt.Sprintf("%.2f", *p.Raw)
	}
	cp := res.Price.RegularMarketChangePercent
	if cp.Fmt != "" {
		q.ChangePct = cp.Fmt
	} else if cp.Raw != nil {
		q.ChangePct = fmt.Sprintf("%.2f%%", *cp.Raw)
	}
	if res.Price.ShortName != "" {
		q.Name = res.Price.ShortName
	} else if res.Price.LongName != "" {
		q.Name = res.Price.LongName
	}
	return q, nil
}

// CacheService decorates a QuoteService with TTL+LRU cache.
type CacheService struct {
	next QuoteService
	ttl  time.Duration
	size int
	now  func() time.Time

	mu    sync.Mutex
	items map[string]cacheEntry
	order []string // oldest at index 0
}

type cacheEntry struct {
	at time.Time
	q  Quote
}

func NewCacheService(next QuoteService, ttl time.Duration, size int) *CacheService {
	if size < 1 {
		size = 1
	}
	return &CacheService{next: next, ttl: ttl, size: size, now: time.Now, items: make(map[string]cacheEntry)}
}

func (c *CacheService) Get(ctx context.Context, ticker string) (Quote, error) {
	k := strings.ToUpper(strings.TrimSpace(ticker))
	if k == "" {
		return Quote{}, nil
	}
	now := c.now()
	c.mu.Lock()
	if ent, ok := c.items[k]; ok {
		if now.Sub(ent.at) <= c.ttl {
			c.touchLocked(k)
			q := ent.q
			c.mu.Unlock()
			return q, nil
		}
		delete(c.items, k)
		c.removeLocked(k)
	}
	c.mu.Unlock()

	q, err := c.next.Get(ctx, k)
	if err != nil {
		return q, err
	}
	c.mu.Lock()
	if _, ok := c.items[k]; ok {
		c.removeLocked(k)
	}
	c.items[k] = cacheEntry{at: now, q: q}
	c.order = append(c.order, k)
	for len(c.items) > c.size && len(c.order) > 0 {
		old := c.order[0]
		c.order = c.order[1:]
		delete(c.items, old)
	}
	c.mu.Unlock()
	return q, nil
}

func (c *CacheService) touchLocked(k string) {
	c.removeLocked(k)
	c.order = append(c.order, k)
}

func (c *CacheService) removeLocked(k string) {
	for i, v := range c.order {
		if v == k {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}
