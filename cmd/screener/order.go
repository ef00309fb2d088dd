package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/komsit37/screener/pkg/screener/order"
)

func newOrderCmd(a *app) *cobra.Command {
	var (
		account string
		side    string
		qty     int
		price   string
		quote   bool
		dryRun  bool
	)
	cmd := &cobra.Command{
		Use:   "order <ticker>",
		Short: "Submit a market or limit order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if account == "" {
				account = a.cfg.Order.Account
			}
			var p *decimal.Decimal
			if price != "" {
				d, err := decimal.NewFromString(price)
				if err != nil {
					return fmt.Errorf("%w: price %q: %v", order.ErrInvalidTicket, price, err)
				}
				p = &d
			}
			t := order.NewTicket(account, args[0], order.Side(side), qty, p)
			if err := t.Validate(); err != nil {
				return err
			}

			if quote {
				a.printQuote(cmd.Context(), t.Ticker)
			}
			fmt.Fprintln(a.out, t.String())
			if dryRun {
				return nil
			}

			ack, err := order.NewClient(a.cfg.API.BaseURL, nil, a.log).Submit(cmd.Context(), t)
			if err != nil {
				return err
			}
			var pretty any
			if json.Unmarshal(ack, &pretty) == nil {
				if b, err := json.MarshalIndent(pretty, "", "  "); err == nil {
					ack = b
				}
			}
			fmt.Fprintln(a.out, string(ack))
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&account, "account", "", "trading account (default order.account)")
	f.StringVar(&side, "side", "buy", "buy or sell")
	f.IntVar(&qty, "qty", 1, "quantity in lots")
	f.StringVar(&price, "price", "", "limit price; omit for a market order")
	f.BoolVar(&quote, "quote", false, "show a reference quote before submitting")
	f.BoolVar(&dryRun, "dry-run", false, "validate and print the ticket without sending it")
	return cmd
}

// printQuote shows a reference price. Lookup failures only warn.
func (a *app) printQuote(ctx context.Context, ticker string) {
	svc := order.NewCacheService(order.NewYFService(5*time.Second), time.Minute, 16)
	q, err := svc.Get(ctx, ticker)
	if err != nil {
		a.log.Warn().Err(err).Str("ticker", ticker).Msg("reference quote unavailable")
		return
	}
	name := q.Name
	if name == "" {
		name = q.Symbol
	}
	fmt.Fprintf(a.out, "%s  %s  %s\n", name, q.Price, q.ChangePct)
}
