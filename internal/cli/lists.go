package cli

import (
	"context"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"tasklist-cli/internal/controller"
	"tasklist-cli/internal/format"
	"tasklist-cli/internal/model"
)

// listKind binds the shared list verbs to either the projects list or the
// current project's tasks.
type listKind struct {
	noun string

	// prepare opens the session and waits until the list is ready.
	prepare func(ctx context.Context, s *session) (model.State, error)
	path    func(st model.State) string
	items   func(st model.State) []string

	add    func(c *controller.Controller, name string) error
	up     func(c *controller.Controller, i int) error
	down   func(c *controller.Controller, i int) error
	move   func(c *controller.Controller, from, to int) error
	delete func(c *controller.Controller, i int) error
}

func addListVerbs(cmd *cobra.Command, app *App, k listKind) {
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List " + k.noun + "s",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runListOp(cmd, app, k, "list", func(_ context.Context, _ *session, st model.State) (model.State, error) {
				return st, nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "add NAME",
		Short: "Append a " + k.noun,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			return runListOp(cmd, app, k, "add", func(ctx context.Context, s *session, _ model.State) (model.State, error) {
				return s.do(ctx, func(c *controller.Controller) error { return k.add(c, name) })
			})
		},
	})

	indexVerb := func(use, short, op string, apply func(c *controller.Controller, i int) error) *cobra.Command {
		return &cobra.Command{
			Use:   use + " INDEX",
			Short: short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				i, err := parseIndex(args[0])
				if err != nil {
					return writeErr(cmd, err)
				}
				return runListOp(cmd, app, k, op, func(ctx context.Context, s *session, st model.State) (model.State, error) {
					if i >= len(k.items(st)) {
						return st, errNotFound(k.noun, args[0])
					}
					return s.do(ctx, func(c *controller.Controller) error { return apply(c, i) })
				})
			},
		}
	}
	cmd.AddCommand(indexVerb("up", "Move a "+k.noun+" up one row", "up", k.up))
	cmd.AddCommand(indexVerb("down", "Move a "+k.noun+" down one row", "down", k.down))
	cmd.AddCommand(indexVerb("delete", "Delete a "+k.noun, "delete", k.delete))

	cmd.AddCommand(&cobra.Command{
		Use:   "move FROM TO",
		Short: "Move a " + k.noun + " to another position",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			from, err := parseIndex(args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			to, err := parseIndex(args[1])
			if err != nil {
				return writeErr(cmd, err)
			}
			return runListOp(cmd, app, k, "move", func(ctx context.Context, s *session, st model.State) (model.State, error) {
				n := len(k.items(st))
				if from >= n {
					return st, errNotFound(k.noun, args[0])
				}
				if to >= n {
					return st, errNotFound(k.noun, args[1])
				}
				return s.do(ctx, func(c *controller.Controller) error { return k.move(c, from, to) })
			})
		},
	})
}

// runListOp opens a session, applies op and prints the list it left behind.
// The session is closed (and writes drained) before anything is printed.
func runListOp(cmd *cobra.Command, app *App, k listKind, op string, apply func(ctx context.Context, s *session, st model.State) (model.State, error)) error {
	ctx, cancel := app.commandContext(cmd)
	defer cancel()

	s, err := app.openSession(ctx)
	if err != nil {
		return writeErr(cmd, err)
	}
	st, err := k.prepare(ctx, s)
	if err == nil {
		st, err = apply(ctx, s, st)
	}

	closeCtx, cancelClose := context.WithTimeout(context.Background(), closeTimeout)
	defer cancelClose()
	if cerr := s.close(closeCtx); err == nil {
		err = cerr
	}
	if err != nil {
		return writeErr(cmd, err)
	}

	if op == "list" {
		return writeOut(cmd, app, format.List{Path: k.path(st), Items: model.CloneList(k.items(st))})
	}
	return writeOut(cmd, app, format.Change{Op: k.noun + "." + op, Path: k.path(st), Items: model.CloneList(k.items(st))})
}

func parseIndex(s string) (int, error) {
	i, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || i < 0 {
		return 0, badIndexError{arg: s}
	}
	return i, nil
}
