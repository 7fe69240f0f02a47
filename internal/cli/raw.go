package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"tasklist-cli/internal/format"
	"tasklist-cli/internal/model"
	"tasklist-cli/internal/remote"
)

func newGetCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "get PATH",
		Short: "Print the list stored at PATH (e.g. projects, tasks/Home)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := app.commandContext(cmd)
			defer cancel()

			st, err := app.openStore(ctx)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer st.Close()

			items, err := getOnce(ctx, st, args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, format.List{Path: args[0], Items: items})
		},
	}
}

// getOnce subscribes, takes the initial value and unsubscribes.
func getOnce(ctx context.Context, st remote.Store, path string) ([]string, error) {
	got := make(chan []string, 1)
	sub, err := st.Subscribe(ctx, path, func(items []string) {
		select {
		case got <- model.CloneList(items):
		default:
		}
	})
	if err != nil {
		return nil, err
	}
	defer sub.Close()

	select {
	case items := <-got:
		return items, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func newSetCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "set PATH [ITEM...]",
		Short: "Overwrite the list stored at PATH",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := app.commandContext(cmd)
			defer cancel()

			st, err := app.openStore(ctx)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer st.Close()

			path, items := args[0], model.CloneList(args[1:])
			if err := st.Set(ctx, path, items); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, format.Change{Op: "set", Path: path, Items: items})
		},
	}
}

func newWatchCmd(app *App) *cobra.Command {
	var count int

	cmd := &cobra.Command{
		Use:   "watch [PATH...]",
		Short: "Print every value pushed for PATH (default: projects), one line each",
		RunE: func(cmd *cobra.Command, args []string) error {
			paths := args
			if len(paths) == 0 {
				paths = []string{model.ProjectsPath}
			}

			sigCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			ctx, cancel := context.WithCancel(sigCtx)

			st, err := app.openStore(ctx)
			if err != nil {
				cancel()
				return writeErr(cmd, err)
			}
			defer st.Close()

			var subs []remote.Subscription
			defer func() {
				// Unblock listeners before their subscriptions are closed.
				cancel()
				for _, sub := range subs {
					_ = sub.Close()
				}
			}()

			pushes := make(chan format.Push, 64)
			for _, p := range paths {
				path := p
				sub, err := st.Subscribe(ctx, path, func(items []string) {
					select {
					case pushes <- format.Push{Path: path, Items: model.CloneList(items)}:
					case <-ctx.Done():
					}
				})
				if err != nil {
					return writeErr(cmd, err)
				}
				subs = append(subs, sub)
			}

			// watch streams, so it never uses the {"data": ...} envelope.
			seq := 0
			for {
				select {
				case <-ctx.Done():
					if errors.Is(ctx.Err(), context.Canceled) {
						return nil
					}
					return ctx.Err()
				case p := <-pushes:
					seq++
					p.Seq = seq
					if err := format.Write(cmd.OutOrStdout(), p, app.Format, false); err != nil {
						return writeErr(cmd, err)
					}
					if count > 0 && seq >= count {
						return nil
					}
				}
			}
		},
	}
	cmd.Flags().IntVar(&count, "count", 0, "Exit after this many pushes (0: run until interrupted)")
	return cmd
}
