// Package order builds, validates and submits order tickets.
package order

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

type Type string

const (
	Market Type = "market"
	Limit  Type = "limit"
)

// ErrInvalidTicket is wrapped by every validation failure.
var ErrInvalidTicket = errors.New("invalid order ticket")

// TicketError names the offending field.
type TicketError struct {
	Field  string
	Reason string
}

func (e *TicketError) Error() string {
	return fmt.Sprintf("invalid order ticket: %s %s", e.Field, e.Reason)
}

func (e *TicketError) Unwrap() error { return ErrInvalidTicket }

// Ticket is one order as submitted to POST /orders. Price is set only for
// limit orders.
type Ticket struct {
	Account string
	Ticker  string
	Side    Side
	Type    Type
	Qty     int
	Price   *decimal.Decimal
}

// NewTicket normalizes the ticker and side and derives the order type from
// the presence of a price.
func NewTicket(account, ticker string, side Side, qty int, price *decimal.Decimal) Ticket {
	t := Ticket{
		Account: strings.TrimSpace(account),
		Ticker:  strings.ToUpper(strings.TrimSpace(ticker)),
		Side:    Side(strings.ToLower(strings.TrimSpace(string(side)))),
		Qty:     qty,
		Price:   price,
		Type:    Market,
	}
	if price != nil {
		t.Type = Limit
	}
	return t
}

func (t Ticket) Validate() error {
	if t.Ticker == "" {
		return &TicketError{Field: "ticker", Reason: "is required"}
	}
	if t.Side != Buy && t.Side != Sell {
		return &TicketError{Field: "side", Reason: fmt.Sprintf("must be buy or sell, got %q", t.Side)}
	}
	if t.Qty < 1 {
		return &TicketError{Field: "qty", Reason: "must be at least 1"}
	}
	switch t.Type {
	case Limit:
		if t.Price == nil || !t.Price.IsPositive() {
			return &TicketError{Field: "price", Reason: "must be positive for a limit order"}
		}
	case Market:
		if t.Price != nil {
			return &TicketError{Field: "price", Reason: "is not allowed on a market order"}
		}
	default:
		return &TicketError{Field: "type", Reason: fmt.Sprintf("must be market or limit, got %q", t.Type)}
	}
	return nil
}

// String is the one-line summary shown before submission.
func (t Ticket) String() string {
	s := fmt.Sprintf("%s %d %s %s", strings.ToUpper(string(t.Side)), t.Qty, t.Ticker, t.Type)
	if t.Price != nil {
		s += " @ " + t.Price.String()
	}
	if t.Account != "" {
		s += " [" + t.Account + "]"
	}
	return s
}
