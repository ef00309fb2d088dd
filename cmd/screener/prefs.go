package main

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/komsit37/screener/pkg/screener/columns"
	"github.com/komsit37/screener/pkg/screener/feed"
	"github.com/komsit37/screener/pkg/screener/filter"
	"github.com/komsit37/screener/pkg/screener/types"
	"github.com/komsit37/screener/pkg/screener/view"
)

// withReconciler runs fn against the persisted view state.
func (a *app) withReconciler(fn func(rec *view.Reconciler) error) error {
	store, closeStore, err := a.openStore()
	if err != nil {
		return err
	}
	defer closeStore()
	return fn(a.reconciler(store))
}

func newColumnsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "columns",
		Short: "List, reorder, hide and show columns",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withReconciler(a.printColumns)
		},
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "Show every column with its position and visibility",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.withReconciler(a.printColumns)
			},
		},
		&cobra.Command{
			Use:   "hide <column|set>...",
			Short: "Hide columns",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.setVisibility(args, false)
			},
		},
		&cobra.Command{
			Use:   "show <column|set>...",
			Short: "Show hidden columns",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.setVisibility(args, true)
			},
		},
		&cobra.Command{
			Use:   "move <column> <target>",
			Short: "Move a column to the position of another",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.withReconciler(func(rec *view.Reconciler) error {
					if err := rec.MoveColumn(types.ColumnKey(args[0]), types.ColumnKey(args[1])); err != nil {
						return err
					}
					return a.printColumns(rec)
				})
			},
		},
		&cobra.Command{
			Use:   "order <column|set>...",
			Short: "Put the named columns first, after the locked ones",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				keys, err := columns.ExpandSets(args)
				if err != nil {
					return err
				}
				return a.withReconciler(func(rec *view.Reconciler) error {
					if err := rec.SetColumnOrder(promote(rec.Preferences().ColumnOrder, keys)); err != nil {
						return err
					}
					return a.printColumns(rec)
				})
			},
		},
		&cobra.Command{
			Use:   "reset",
			Short: "Restore canonical order and show every column",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.withReconciler(func(rec *view.Reconciler) error {
					rec.ResetColumns()
					return a.printColumns(rec)
				})
			},
		},
	)
	return cmd
}

// promote returns order with keys moved directly behind the locked prefix.
// Locked columns keep their positions.
func promote(order, keys []types.ColumnKey) []types.ColumnKey {
	locked := columns.Locked()
	out := make([]types.ColumnKey, 0, len(order))
	for _, k := range order {
		if columns.Contains(locked, k) {
			out = append(out, k)
		}
	}
	for _, k := range keys {
		if !columns.Contains(locked, k) && columns.Contains(order, k) && !columns.Contains(out, k) {
			out = append(out, k)
		}
	}
	for _, k := range order {
		if !columns.Contains(out, k) {
			out = append(out, k)
		}
	}
	return out
}

func (a *app) setVisibility(names []string, visible bool) error {
	keys, err := columns.ExpandSets(names)
	if err != nil {
		return err
	}
	return a.withReconciler(func(rec *view.Reconciler) error {
		locked := columns.Locked()
		for _, k := range keys {
			if columns.Contains(locked, k) {
				if !visible {
					return &view.LockedError{Column: k}
				}
				continue
			}
			hidden := columns.Contains(rec.Preferences().HiddenColumns, k)
			if hidden == visible {
				rec.ToggleColumnVisibility(k)
			}
		}
		return a.printColumns(rec)
	})
}

func (a *app) printColumns(rec *view.Reconciler) error {
	p := rec.Preferences()
	loc := columns.Locale(a.cfg.UI.Locale)
	tw := table.NewWriter()
	tw.SetOutputMirror(a.out)
	tw.SetStyle(table.StyleLight)
	tw.Style().Options.DrawBorder = false
	tw.Style().Options.SeparateColumns = false
	tw.AppendHeader(table.Row{"#", "KEY", "LABEL", "STATE"})
	for i, k := range p.ColumnOrder {
		state := "shown"
		switch {
		case columns.Contains(columns.Locked(), k):
			state = "locked"
		case columns.Contains(p.HiddenColumns, k):
			state = "hidden"
		}
		tw.AppendRow(table.Row{i + 1, k, columns.Label(k, loc), state})
	}
	tw.Render()
	return nil
}

func newTickersCmd(a *app) *cobra.Command {
	run := func(fn func(rec *view.Reconciler, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			return a.withReconciler(func(rec *view.Reconciler) error {
				a.loadUniverse(cmd.Context(), rec)
				if err := fn(rec, args); err != nil {
					return err
				}
				return a.printTickers(rec)
			})
		}
	}
	noop := func(*view.Reconciler, []string) error { return nil }

	cmd := &cobra.Command{
		Use:   "tickers",
		Short: "List and select the tickers shown",
		Args:  cobra.NoArgs,
		RunE:  run(noop),
	}
	cmd.AddCommand(
		&cobra.Command{Use: "list", Short: "Show the universe and the selection", Args: cobra.NoArgs, RunE: run(noop)},
		&cobra.Command{
			Use:   "toggle <ticker>...",
			Short: "Flip tickers in or out of the selection",
			Args:  cobra.MinimumNArgs(1),
			RunE: run(func(rec *view.Reconciler, args []string) error {
				for _, t := range args {
					rec.ToggleTicker(t)
				}
				return nil
			}),
		},
		&cobra.Command{
			Use:   "all",
			Short: "Select every known ticker",
			Args:  cobra.NoArgs,
			RunE: run(func(rec *view.Reconciler, _ []string) error {
				rec.SelectAllTickers()
				return nil
			}),
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Empty the selection",
			Args:  cobra.NoArgs,
			RunE: run(func(rec *view.Reconciler, _ []string) error {
				rec.ClearTickerSelection()
				return nil
			}),
		},
		&cobra.Command{
			Use:   "select <expr>",
			Short: `Select tickers matching "SBER,GAZP", a glob like "S*" or "/regex/"`,
			Args:  cobra.ExactArgs(1),
			RunE: run(func(rec *view.Reconciler, args []string) error {
				f, err := filter.Parse(args[0])
				if err != nil {
					return err
				}
				matched := filter.Select(rec.DeriveView().Universe, f)
				if len(matched) == 0 {
					return fmt.Errorf("no ticker matches %q", args[0])
				}
				rec.SelectTickers(matched)
				return nil
			}),
		},
	)
	return cmd
}

// loadUniverse asks the backend for the ticker universe. The command still
// works offline against the persisted selection.
func (a *app) loadUniverse(ctx context.Context, rec *view.Reconciler) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	syms, err := feed.NewSymbolsClient(a.cfg.API.BaseURL, nil).Symbols(ctx)
	if err != nil {
		a.log.Warn().Err(err).Msg("ticker universe unavailable")
		return
	}
	rec.SetTickerUniverse(syms)
}

func (a *app) printTickers(rec *view.Reconciler) error {
	v := rec.DeriveView()
	all := slices.Clone(v.Universe)
	for _, s := range v.Selected {
		if !slices.Contains(all, s) {
			all = append(all, s)
		}
	}
	marks := make([]string, 0, len(all))
	for _, t := range all {
		mark := "[ ]"
		if slices.Contains(v.Selected, t) {
			mark = "[x]"
		}
		marks = append(marks, mark+" "+t)
	}
	if len(marks) > 0 {
		fmt.Fprintln(a.out, strings.Join(marks, "\n"))
	}
	fmt.Fprintf(a.out, "%d selected, %s\n", len(v.Selected), rec.SelectionState())
	return nil
}

func newModeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:       "mode [fast|slow]",
		Short:     "Show or set the refresh cadence",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{string(types.RefreshFast), string(types.RefreshSlow)},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withReconciler(func(rec *view.Reconciler) error {
				if len(args) == 1 {
					if err := rec.SetRefreshMode(types.RefreshMode(strings.ToLower(args[0]))); err != nil {
						return err
					}
				}
				m := rec.Preferences().RefreshMode
				fmt.Fprintf(a.out, "%s (every %s)\n", m, m.Interval())
				return nil
			})
		},
	}
}
