package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/komsit37/screener/pkg/screener/render"
	"github.com/komsit37/screener/pkg/screener/view"
)

const clearScreen = "\033[H\033[2J"

func newWatchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Stream the screener and redraw on every change",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			store, closeStore, err := a.openStore()
			if err != nil {
				return err
			}
			defer closeStore()
			sess, err := a.newSession(store)
			if err != nil {
				return err
			}
			defer sess.Close()
			r, err := a.renderer()
			if err != nil {
				return err
			}

			rec := sess.Reconciler()
			dirty := make(chan struct{}, 1)
			cancel := rec.Subscribe(func(view.View) {
				select {
				case dirty <- struct{}{}:
				default:
				}
			})
			defer cancel()

			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error { return sess.Run(ctx) })
			g.Go(func() error { return a.redraw(ctx, r, rec, dirty) })
			return g.Wait()
		},
	}
}

// redraw renders the latest view whenever dirty fires. Bursts of changes
// coalesce into one frame.
func (a *app) redraw(ctx context.Context, r render.Renderer, rec *view.Reconciler, dirty <-chan struct{}) error {
	_, stream := r.(*render.JSONRenderer)
	opts := a.renderOptions()
	if stream {
		opts.PrettyJSON = false
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-dirty:
		}
		v := rec.DeriveView()
		if !stream {
			fmt.Fprint(a.out, clearScreen)
			fmt.Fprintf(a.out, "%d/%d tickers · %s\n", len(v.Selected), len(v.Universe), v.Mode)
		}
		if err := r.Render(a.out, v, opts); err != nil {
			return fmt.Errorf("render: %w", err)
		}
	}
}

func newShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Fetch one snapshot and render it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeStore, err := a.openStore()
			if err != nil {
				return err
			}
			defer closeStore()
			sess, err := a.newSession(store)
			if err != nil {
				return err
			}
			defer sess.Close()
			r, err := a.renderer()
			if err != nil {
				return err
			}
			v, err := sess.Once(cmd.Context())
			if err != nil {
				return err
			}
			return r.Render(a.out, v, a.renderOptions())
		},
	}
}
