package order

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// SubmitError is returned when the backend rejects an order.
type SubmitError struct {
	Status int
	Body   string
}

func (e *SubmitError) Error() string {
	return fmt.Sprintf("order rejected: status %d: %s", e.Status, strings.TrimSpace(e.Body))
}

// Client posts tickets to the backend.
type Client struct {
	base string
	http *http.Client
	log  zerolog.Logger
}

func NewClient(baseURL string, httpClient *http.Client, log zerolog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{base: strings.TrimRight(baseURL, "/"), http: httpClient, log: log}
}

type wireTicket struct {
	Account string      `json:"account"`
	Ticker  string      `json:"ticker"`
	Side    Side        `json:"side"`
	Type    Type        `json:"type"`
	Qty     int         `json:"qty"`
	Price   json.Number `json:"price,omitempty"`
}

// Submit validates t and posts it. The acknowledgement body is returned
// verbatim.
func (c *Client) Submit(ctx context.Context, t Ticket) (json.RawMessage, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	w := wireTicket{Account: t.Account, Ticker: t.Ticker, Side: t.Side, Type: t.Type, Qty: t.Qty}
	if t.Price != nil {
		w.Price = json.Number(t.Price.String())
	}
	body, err := json.Marshal(w)
	if err != nil {
		return nil, fmt.Errorf("encode order: %w", err)
	}

	reqID := uuid.NewString()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/orders", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", reqID)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("submit order: %w", err)
	}
	defer resp.Body.Close()
	ack, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read acknowledgement: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &SubmitError{Status: resp.StatusCode, Body: string(ack)}
	}
	c.log.Info().
		Str("request_id", reqID).
		Str("ticket", t.String()).
		RawJSON("ack", ack).
		Msg("order acknowledged")
	return json.RawMessage(ack), nil
}
