package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/komsit37/screener/pkg/screener/devfeed"
)

func newDevfeedCmd(a *app) *cobra.Command {
	var (
		addr     string
		interval time.Duration
		dialect  string
		symbols  string
	)
	cmd := &cobra.Command{
		Use:   "devfeed",
		Short: "Serve a synthetic screener backend for local development",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			var syms []string
			for _, s := range strings.Split(symbols, ",") {
				if s = strings.ToUpper(strings.TrimSpace(s)); s != "" {
					syms = append(syms, s)
				}
			}
			dev := devfeed.New(devfeed.Config{
				Symbols:  syms,
				Interval: interval,
				Dialect:  devfeed.Dialect(dialect),
				Logger:   a.log,
			})
			srv := &http.Server{Addr: addr, Handler: dev.Handler(), ReadHeaderTimeout: 5 * time.Second}

			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				a.log.Info().Str("addr", addr).Str("dialect", dialect).Msg("devfeed listening")
				if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				dev.Run(ctx)
				return nil
			})
			g.Go(func() error {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			})
			return g.Wait()
		},
	}
	f := cmd.Flags()
	f.StringVar(&addr, "addr", "127.0.0.1:8000", "listen address")
	f.DurationVar(&interval, "interval", time.Second, "push interval")
	f.StringVar(&dialect, "dialect", string(devfeed.Latin), "wire field names: latin or cyrillic")
	f.StringVar(&symbols, "symbols", strings.Join(devfeed.DefaultSymbols, ","), "comma-separated ticker universe")
	return cmd
}
